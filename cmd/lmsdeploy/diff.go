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
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/layducky/lmsdeploy/pkg/ledger"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Diff compares the configured steps with the cluster state and prints the YAML diff.",
	Long: `The diff command performs a server-side dry-run apply of every step
object and prints what would change, including the objects recorded by
the previous deploy that would become stale.`,
	Example: `  lmsdeploy diff --source ./deploy
`,
	RunE: runDiffCmd,
}

type diffFlags struct {
	source string
}

var diffArgs diffFlags

func init() {
	diffCmd.Flags().StringVarP(&diffArgs.source, "source", "s", ".",
		"Path to the directory that the step manifest paths are resolved against.")

	rootCmd.AddCommand(diffCmd)
}

func runDiffCmd(cmd *cobra.Command, args []string) error {
	if _, err := exec.LookPath("diff"); err != nil {
		return fmt.Errorf("diff binary not found in PATH, error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	plan, err := planFromSource(diffArgs.source)
	if err != nil {
		return err
	}

	for _, name := range plan.Missing() {
		logger.Println(fmt.Sprintf("step '%s' skipped, manifest not found", name))
	}
	objects := plan.Objects()

	m, err := newKubeManager()
	if err != nil {
		return err
	}
	resMgr := m.ResourceManager()
	resMgr.SetOwnerLabels(objects, cfg.Release, cfg.Namespace)

	tmpDir, err := os.MkdirTemp("", cfg.Release)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	invalid := false
	for _, object := range objects {
		change, liveObject, mergedObject, err := resMgr.Diff(ctx, object, ssa.DefaultDiffOptions())
		if err != nil {
			logger.Println(`✗`, err)
			invalid = true
			continue
		}

		if change.Action == string(ssa.CreatedAction) {
			rootCmd.Println(`►`, change.Subject, "created")
		}

		if change.Action == string(ssa.ConfiguredAction) {
			rootCmd.Println(`►`, change.Subject, "drifted")

			liveYAML, _ := yaml.Marshal(liveObject)
			liveFile := filepath.Join(tmpDir, "live.yaml")
			if err := os.WriteFile(liveFile, liveYAML, 0644); err != nil {
				return err
			}

			mergedYAML, _ := yaml.Marshal(mergedObject)
			mergedFile := filepath.Join(tmpDir, "merged.yaml")
			if err := os.WriteFile(mergedFile, mergedYAML, 0644); err != nil {
				return err
			}

			out, _ := exec.Command("diff", "-N", "-u", liveFile, mergedFile).Output()
			for i, line := range strings.Split(string(out), "\n") {
				if i > 1 && len(line) > 0 {
					rootCmd.Println(line)
				}
			}
		}
	}

	if !invalid {
		release := ledger.NewRelease(cfg.Release, cfg.Namespace)
		if err := release.AddObjects(objects); err != nil {
			return err
		}

		storage := newLedgerStorage(m)
		staleObjects, err := storage.StaleObjects(ctx, release)
		if err != nil {
			return fmt.Errorf("ledger query failed: %w", err)
		}

		for _, object := range staleObjects {
			rootCmd.Println(`►`, fmt.Sprintf("%s deleted", ssa.FmtUnstructured(object)))
		}
	}

	if invalid {
		os.Exit(1)
	}
	return nil
}
