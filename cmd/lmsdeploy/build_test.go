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

package main

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/layducky/lmsdeploy/pkg/config"
)

func TestBuild(t *testing.T) {
	g := NewWithT(t)
	id := "build-" + randStringRunes(5)

	dir, err := makeTestDir(id, stackFiles(id, id))
	g.Expect(err).NotTo(HaveOccurred())

	cfgDir, err := makeTestDir(id+"-cfg", nil)
	g.Expect(err).NotTo(HaveOccurred())
	cfgPath, err := writeTestConfig(cfgDir, testConfig(id, id, stackSteps()...))
	g.Expect(err).NotTo(HaveOccurred())

	t.Run("renders the steps in apply order", func(t *testing.T) {
		output, err := executeCommand(fmt.Sprintf(
			"build --config %s --source %s -o yaml",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		t.Logf("\n%s", output)
		g.Expect(output).To(ContainSubstring("kind: Secret"))
		g.Expect(output).To(ContainSubstring(id + "-db"))

		g.Expect(strings.Index(output, id+"-secrets")).To(BeNumerically("<", strings.Index(output, id+"-db")))
		g.Expect(strings.Index(output, id+"-db")).To(BeNumerically("<", strings.Index(output, id+"-app")))
	})

	t.Run("renders JSON output", func(t *testing.T) {
		output, err := executeCommand(fmt.Sprintf(
			"build --config %s --source %s -o json",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(output).To(ContainSubstring(`"kind": "Secret"`))
	})

	t.Run("rejects unknown output formats", func(t *testing.T) {
		_, err := executeCommand(fmt.Sprintf(
			"build --config %s --source %s -o toml",
			cfgPath,
			dir,
		))

		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("unsupported output"))
	})

	t.Run("notes missing steps", func(t *testing.T) {
		c := testConfig(id, id, append(stackSteps(), config.Step{Name: "absent", Path: "absent.yaml"})...)
		cfgPath, err := writeTestConfig(cfgDir, c)
		g.Expect(err).NotTo(HaveOccurred())

		output, err := executeCommand(fmt.Sprintf(
			"build --config %s --source %s -o yaml",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(output).To(ContainSubstring("step 'absent' skipped, manifest not found"))
	})
}

func TestBuildKustomizeStep(t *testing.T) {
	g := NewWithT(t)
	id := "build-k-" + randStringRunes(5)

	files := append(stackFiles(id, id), TestFile{
		Name: "kustomization.yaml",
		Body: `---
apiVersion: kustomize.config.k8s.io/v1beta1
kind: Kustomization
resources:
  - db.yaml
commonAnnotations:
  stack/tier: database
`,
	})
	dir, err := makeTestDir(id, files)
	g.Expect(err).NotTo(HaveOccurred())

	steps := []config.Step{
		{Name: "secret", Path: "secret.yaml"},
		{Name: "db", Path: "."},
	}
	cfgDir, err := makeTestDir(id+"-cfg", nil)
	g.Expect(err).NotTo(HaveOccurred())
	cfgPath, err := writeTestConfig(cfgDir, testConfig(id, id, steps...))
	g.Expect(err).NotTo(HaveOccurred())

	output, err := executeCommand(fmt.Sprintf(
		"build --config %s --source %s -o yaml",
		cfgPath,
		dir,
	))

	g.Expect(err).NotTo(HaveOccurred())
	t.Logf("\n%s", output)
	g.Expect(output).To(ContainSubstring("stack/tier: database"))
}
