/*
Copyright 2025 The lmsdeploy authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sequencer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxcd/pkg/ssa"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

type fakeCluster struct {
	calls     []string
	waits     int
	gones     int
	applyErr  map[string]error
	deleteErr map[string]error
	absent    map[string]bool
	waitErr   error
}

func (f *fakeCluster) Apply(ctx context.Context, object *unstructured.Unstructured, force bool) (Action, error) {
	id := ssa.FmtUnstructured(object)
	f.calls = append(f.calls, "apply "+id)
	if err := f.applyErr[id]; err != nil {
		return "", err
	}
	return CreatedAction, nil
}

func (f *fakeCluster) Delete(ctx context.Context, object *unstructured.Unstructured) (Action, error) {
	id := ssa.FmtUnstructured(object)
	f.calls = append(f.calls, "delete "+id)
	if err := f.deleteErr[id]; err != nil {
		return "", err
	}
	if f.absent[id] {
		return SkippedAction, nil
	}
	return DeletedAction, nil
}

func (f *fakeCluster) Wait(objects []*unstructured.Unstructured, timeout time.Duration) error {
	f.waits++
	return f.waitErr
}

func (f *fakeCluster) WaitForTermination(objects []*unstructured.Unstructured, timeout time.Duration) error {
	f.gones++
	return nil
}

func configMapYAML(name string) string {
	return fmt.Sprintf(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: %[1]s
  namespace: moodle
data:
  step: %[1]s
`, name)
}

// makeStackPlan writes one single-object manifest per step name and
// resolves the plan, leaving out the names listed in missing.
func makeStackPlan(t *testing.T, names []string, missing ...string) *Plan {
	t.Helper()
	g := NewWithT(t)

	skip := map[string]bool{}
	for _, name := range missing {
		skip[name] = true
	}

	dir := t.TempDir()
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		if !skip[name] {
			err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(configMapYAML(name)), 0644)
			g.Expect(err).NotTo(HaveOccurred())
		}
		steps = append(steps, Step{Name: name, Path: name + ".yaml"})
	}

	plan, err := NewPlan(dir, steps)
	g.Expect(err).NotTo(HaveOccurred())
	return plan
}

var stackOrder = []string{"secret", "pvc", "db", "app", "ingress"}

func TestApplyOrder(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{}

	changeSet, err := New(cluster, DefaultOptions()).Apply(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(cluster.calls).To(Equal([]string{
		"apply ConfigMap/moodle/secret",
		"apply ConfigMap/moodle/pvc",
		"apply ConfigMap/moodle/db",
		"apply ConfigMap/moodle/app",
		"apply ConfigMap/moodle/ingress",
	}))

	g.Expect(changeSet.Entries).To(HaveLen(5))
	for i, entry := range changeSet.Entries {
		g.Expect(entry.Step).To(Equal(stackOrder[i]))
		g.Expect(entry.Action).To(Equal(CreatedAction))
	}
}

func TestTeardownReverseOrder(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{}

	changeSet, err := New(cluster, DefaultOptions()).Teardown(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(cluster.calls).To(Equal([]string{
		"delete ConfigMap/moodle/ingress",
		"delete ConfigMap/moodle/app",
		"delete ConfigMap/moodle/db",
		"delete ConfigMap/moodle/pvc",
		"delete ConfigMap/moodle/secret",
	}))

	steps := []string{}
	for _, entry := range changeSet.Entries {
		g.Expect(entry.Action).To(Equal(DeletedAction))
		steps = append(steps, entry.Step)
	}
	g.Expect(steps).To(Equal([]string{"ingress", "app", "db", "pvc", "secret"}))
}

func TestMissingStepSkippedBothWays(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder, "pvc")
	g.Expect(plan.Missing()).To(Equal([]string{"pvc"}))

	cluster := &fakeCluster{}
	seq := New(cluster, DefaultOptions())

	_, err := seq.Teardown(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())

	_, err = seq.Apply(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(cluster.calls).To(Equal([]string{
		"delete ConfigMap/moodle/ingress",
		"delete ConfigMap/moodle/app",
		"delete ConfigMap/moodle/db",
		"delete ConfigMap/moodle/secret",
		"apply ConfigMap/moodle/secret",
		"apply ConfigMap/moodle/db",
		"apply ConfigMap/moodle/app",
		"apply ConfigMap/moodle/ingress",
	}))
}

func TestApplyFailFast(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{
		applyErr: map[string]error{
			"ConfigMap/moodle/db": fmt.Errorf("admission denied"),
		},
	}

	changeSet, err := New(cluster, DefaultOptions()).Apply(context.Background(), plan)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("step 'db' apply failed"))

	// secret and pvc went through, app and ingress never ran
	g.Expect(cluster.calls).To(HaveLen(3))
	g.Expect(changeSet.Entries).To(HaveLen(2))
	g.Expect(changeSet.Entries[0].Step).To(Equal("secret"))
	g.Expect(changeSet.Entries[1].Step).To(Equal("pvc"))
}

func TestApplyAggregatesWithoutFailFast(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{
		applyErr: map[string]error{
			"ConfigMap/moodle/pvc": fmt.Errorf("quota exceeded"),
			"ConfigMap/moodle/app": fmt.Errorf("admission denied"),
		},
	}

	opts := DefaultOptions()
	opts.FailFast = false

	changeSet, err := New(cluster, opts).Apply(context.Background(), plan)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("step 'pvc'"))
	g.Expect(err.Error()).To(ContainSubstring("step 'app'"))

	g.Expect(cluster.calls).To(HaveLen(5))
	g.Expect(changeSet.Entries).To(HaveLen(3))
}

func TestTeardownSkipsAbsentObjects(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{
		absent: map[string]bool{
			"ConfigMap/moodle/db": true,
		},
	}

	changeSet, err := New(cluster, DefaultOptions()).Teardown(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cluster.calls).To(HaveLen(5))

	actions := map[string]Action{}
	for _, entry := range changeSet.Entries {
		actions[entry.Step] = entry.Action
	}
	g.Expect(actions["db"]).To(Equal(SkippedAction))
	g.Expect(actions["secret"]).To(Equal(DeletedAction))
	g.Expect(actions["ingress"]).To(Equal(DeletedAction))
}

func TestTeardownStopsOnRealFailure(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder)
	cluster := &fakeCluster{
		deleteErr: map[string]error{
			"ConfigMap/moodle/app": fmt.Errorf("webhook unavailable"),
		},
	}

	_, err := New(cluster, DefaultOptions()).Teardown(context.Background(), plan)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("step 'app' delete failed"))

	// ingress was deleted first, then app failed and aborted the rest
	g.Expect(cluster.calls).To(Equal([]string{
		"delete ConfigMap/moodle/ingress",
		"delete ConfigMap/moodle/app",
	}))
}

func TestApplySortsObjectsWithinStep(t *testing.T) {
	g := NewWithT(t)

	dir := t.TempDir()
	manifest := `---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: moodle
  namespace: moodle
spec:
  selector:
    matchLabels:
      app: moodle
  template:
    metadata:
      labels:
        app: moodle
    spec:
      containers:
        - name: moodle
          image: moodle:4.1
---
apiVersion: v1
kind: Secret
metadata:
  name: moodle-env
  namespace: moodle
stringData:
  db: moodle
`
	g.Expect(os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(manifest), 0644)).To(Succeed())

	plan, err := NewPlan(dir, []Step{{Name: "app", Path: "app.yaml"}})
	g.Expect(err).NotTo(HaveOccurred())

	cluster := &fakeCluster{}
	seq := New(cluster, DefaultOptions())

	_, err = seq.Apply(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cluster.calls).To(Equal([]string{
		"apply Secret/moodle/moodle-env",
		"apply Deployment/moodle/moodle",
	}))

	cluster.calls = nil
	_, err = seq.Teardown(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cluster.calls).To(Equal([]string{
		"delete Deployment/moodle/moodle",
		"delete Secret/moodle/moodle-env",
	}))
}

func TestApplyWaitsEachStep(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, []string{"db", "app"})
	cluster := &fakeCluster{}

	opts := DefaultOptions()
	opts.WaitEachStep = true

	_, err := New(cluster, opts).Apply(context.Background(), plan)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cluster.waits).To(Equal(2))

	cluster.waits = 0
	cluster.waitErr = fmt.Errorf("timeout waiting for ready state")

	_, err = New(cluster, opts).Apply(context.Background(), plan)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("step 'db' not ready"))
	g.Expect(cluster.waits).To(Equal(1))
}

func TestPlanObjects(t *testing.T) {
	g := NewWithT(t)

	plan := makeStackPlan(t, stackOrder, "app")

	objects := plan.Objects()
	g.Expect(objects).To(HaveLen(4))
	g.Expect(objects[0].GetName()).To(Equal("secret"))
	g.Expect(objects[3].GetName()).To(Equal("ingress"))
}
