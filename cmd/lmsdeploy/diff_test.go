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
	"testing"

	. "github.com/onsi/gomega"
)

func TestDiff(t *testing.T) {
	g := NewWithT(t)
	id := "diff-" + randStringRunes(5)

	// the server-side dry-run needs the target namespace to exist
	err := createNamespace(id)
	g.Expect(err).NotTo(HaveOccurred())

	dir, err := makeTestDir(id, stackFiles(id, id))
	g.Expect(err).NotTo(HaveOccurred())

	cfgDir, err := makeTestDir(id+"-cfg", nil)
	g.Expect(err).NotTo(HaveOccurred())
	cfgPath, err := writeTestConfig(cfgDir, testConfig(id, id, stackSteps()...))
	g.Expect(err).NotTo(HaveOccurred())

	t.Run("shows objects to be created", func(t *testing.T) {
		output, err := executeCommand(fmt.Sprintf(
			"diff --config %s --source %s",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		t.Logf("\n%s", output)
		g.Expect(output).To(ContainSubstring(fmt.Sprintf("Secret/%s/%s-secrets created", id, id)))
		g.Expect(output).To(ContainSubstring(fmt.Sprintf("ConfigMap/%s/%s-app created", id, id)))
	})

	t.Run("generates empty diff after deploy", func(t *testing.T) {
		_, err := executeCommand(fmt.Sprintf(
			"deploy --config %s --source %s --skip-ingress-check",
			cfgPath,
			dir,
		))
		g.Expect(err).NotTo(HaveOccurred())

		output, err := executeCommand(fmt.Sprintf(
			"diff --config %s --source %s",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(output).To(BeEmpty())
	})

	t.Run("shows drift after a manifest change", func(t *testing.T) {
		dir, err := makeTestDir(id, stackFiles(id, id))
		g.Expect(err).NotTo(HaveOccurred())

		output, err := executeCommand(fmt.Sprintf(
			"diff --config %s --source %s",
			cfgPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		t.Logf("\n%s", output)
		g.Expect(output).To(ContainSubstring(fmt.Sprintf("ConfigMap/%s/%s-db drifted", id, id)))
		g.Expect(output).To(ContainSubstring("marker"))
	})

	t.Run("shows stale objects as deleted", func(t *testing.T) {
		shrunk := testConfig(id, id, stackSteps()[:2]...)
		shrunkDir, err := makeTestDir(id+"-cfg2", nil)
		g.Expect(err).NotTo(HaveOccurred())
		shrunkPath, err := writeTestConfig(shrunkDir, shrunk)
		g.Expect(err).NotTo(HaveOccurred())

		output, err := executeCommand(fmt.Sprintf(
			"diff --config %s --source %s",
			shrunkPath,
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		t.Logf("\n%s", output)
		g.Expect(output).To(ContainSubstring(fmt.Sprintf("ConfigMap/%s/%s-app deleted", id, id)))
	})
}
