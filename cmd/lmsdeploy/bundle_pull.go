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
	"path/filepath"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/layducky/lmsdeploy/pkg/bundle"
)

var bundlePullCmd = &cobra.Command{
	Use:   "pull OCIURL",
	Short: "Pull downloads a bundle and prints its steps to stdout.",
	Long: `The pull command downloads the bundle from the container registry,
verifies its checksum and prints the step manifests in their original
order. With --output the steps are written as files into the given
directory instead.`,
	Example: `  # Print the bundled steps as multi-doc YAML
  lmsdeploy bundle pull oci://ghcr.io/org/moodle-stack:v1.0.0

  # Decrypt an encrypted bundle
  lmsdeploy bundle pull oci://ghcr.io/org/moodle-stack:v1.0.0 --age-identities ./id.txt

  # Write the steps into a directory
  lmsdeploy bundle pull oci://ghcr.io/org/moodle-stack:v1.0.0 --output ./manifests
`,
	RunE: runBundlePullCmd,
}

type bundlePullFlags struct {
	ageIdentities string
	output        string
}

var bundlePullArgs bundlePullFlags

func init() {
	bundlePullCmd.Flags().StringVar(&bundlePullArgs.ageIdentities, "age-identities", "",
		"Path to a file containing age identities (private keys) for decrypting the bundle.")
	bundlePullCmd.Flags().StringVarP(&bundlePullArgs.output, "output", "o", "",
		"Path to a directory where the step manifests are written, one file per step.")

	bundleCmd.AddCommand(bundlePullCmd)
}

func runBundlePullCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact name e.g. 'oci://docker.io/user/repo:tag'")
	}

	url, err := bundle.ParseURL(args[0])
	if err != nil {
		return err
	}

	var identities []age.Identity
	if bundlePullArgs.ageIdentities != "" {
		identities, err = bundle.ParseAgeIdentities(bundlePullArgs.ageIdentities)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	logger.Println("pulling", url)
	steps, meta, err := bundle.Pull(ctx, url, identities)
	if err != nil {
		return fmt.Errorf("pulling %s failed: %w", url, err)
	}
	logger.Println("verified checksum", meta.Checksum)

	if bundlePullArgs.output != "" {
		if err := os.MkdirAll(bundlePullArgs.output, 0755); err != nil {
			return err
		}
		for i, step := range steps {
			fileName := filepath.Join(bundlePullArgs.output, fmt.Sprintf("%03d-%s.yaml", i, step.Name))
			if err := os.WriteFile(fileName, step.Manifest, 0644); err != nil {
				return err
			}
			logger.Println("written", fileName)
		}
		return nil
	}

	for _, step := range steps {
		rootCmd.Println(fmt.Sprintf("# step: %s", step.Name))
		rootCmd.Println(string(step.Manifest))
	}

	return nil
}
