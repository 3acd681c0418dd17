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

package ledger

import (
	"strings"
	"testing"

	"github.com/fluxcd/pkg/ssa"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func readObjects(g *WithT, manifest string) []*unstructured.Unstructured {
	objects, err := ssa.ReadObjects(strings.NewReader(manifest))
	g.Expect(err).NotTo(HaveOccurred())
	return objects
}

const stackManifest = `
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: moodle-env
  namespace: moodle
data: {}
---
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
`

func TestAddObjects(t *testing.T) {
	g := NewWithT(t)

	release := NewRelease("moodle", "moodle")
	g.Expect(release.AddObjects(readObjects(g, stackManifest))).To(Succeed())

	g.Expect(release.Entries).To(HaveLen(2))
	// entries are sorted by subject
	g.Expect(release.Entries[0].Subject).To(Equal("moodle_moodle-env__ConfigMap"))
	g.Expect(release.Entries[0].Version).To(Equal("v1"))
	g.Expect(release.Entries[1].Subject).To(Equal("moodle_moodle_apps_Deployment"))
	g.Expect(release.Entries[1].Version).To(Equal("v1"))
}

func TestListObjectsRoundtrip(t *testing.T) {
	g := NewWithT(t)

	release := NewRelease("moodle", "moodle")
	g.Expect(release.AddObjects(readObjects(g, stackManifest))).To(Succeed())

	objects, err := release.ListObjects()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(objects).To(HaveLen(2))

	g.Expect(objects[0].GetKind()).To(Equal("ConfigMap"))
	g.Expect(objects[0].GetAPIVersion()).To(Equal("v1"))
	g.Expect(objects[0].GetName()).To(Equal("moodle-env"))
	g.Expect(objects[0].GetNamespace()).To(Equal("moodle"))

	g.Expect(objects[1].GetKind()).To(Equal("Deployment"))
	g.Expect(objects[1].GetAPIVersion()).To(Equal("apps/v1"))
}

func TestDiff(t *testing.T) {
	g := NewWithT(t)

	previous := NewRelease("moodle", "moodle")
	g.Expect(previous.AddObjects(readObjects(g, stackManifest))).To(Succeed())

	next := NewRelease("moodle", "moodle")
	g.Expect(next.AddObjects(readObjects(g, `
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
          image: moodle:4.2
`))).To(Succeed())

	stale, err := previous.Diff(next)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(stale).To(HaveLen(1))
	g.Expect(stale[0].GetKind()).To(Equal("ConfigMap"))
	g.Expect(stale[0].GetName()).To(Equal("moodle-env"))
	g.Expect(stale[0].GetAPIVersion()).To(Equal("v1"))

	// an identical release has nothing to prune
	same, err := previous.Diff(previous)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(same).To(BeEmpty())
}
