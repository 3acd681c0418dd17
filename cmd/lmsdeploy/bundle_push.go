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

	"filippo.io/age"
	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"

	"github.com/layducky/lmsdeploy/pkg/bundle"
)

var bundlePushCmd = &cobra.Command{
	Use:   "push OCIURL",
	Short: "Push packages the configured steps and uploads them to a container registry.",
	Long: `The push command renders the step manifests, packages them as an OCI
artifact preserving the step order and pushes the artifact to the
container registry. With --age-recipients the step manifests are
encrypted before packaging.`,
	Example: `  # Push the stack to GitHub Container Registry
  lmsdeploy bundle push oci://ghcr.io/org/moodle-stack:v1.0.0 --source ./deploy

  # Push an encrypted bundle
  lmsdeploy bundle push oci://ghcr.io/org/moodle-stack:v1.0.0 --age-recipients ./recipients.txt

  # Push to a local registry
  lmsdeploy bundle push oci://localhost:5000/moodle-stack:latest
`,
	RunE: runBundlePushCmd,
}

type bundlePushFlags struct {
	source        string
	ageRecipients string
}

var bundlePushArgs bundlePushFlags

func init() {
	bundlePushCmd.Flags().StringVarP(&bundlePushArgs.source, "source", "s", ".",
		"Path to the directory that the step manifest paths are resolved against.")
	bundlePushCmd.Flags().StringVar(&bundlePushArgs.ageRecipients, "age-recipients", "",
		"Path to a file containing age recipients (public keys) for encrypting the bundle.")

	bundleCmd.AddCommand(bundlePushCmd)
}

func runBundlePushCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact name e.g. 'oci://docker.io/user/repo:tag'")
	}

	url, err := bundle.ParseURL(args[0])
	if err != nil {
		return err
	}

	logger.Println("building steps...")
	plan, err := planFromSource(bundlePushArgs.source)
	if err != nil {
		return err
	}

	for _, name := range plan.Missing() {
		logger.Println(fmt.Sprintf("step '%s' skipped, manifest not found", name))
	}

	for _, object := range plan.Objects() {
		rootCmd.Println(ssa.FmtUnstructured(object))
	}

	steps, err := bundleSteps(plan)
	if err != nil {
		return err
	}

	var recipients []age.Recipient
	if bundlePushArgs.ageRecipients != "" {
		recipients, err = bundle.ParseAgeRecipients(bundlePushArgs.ageRecipients)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	logger.Println("pushing bundle", url)
	digest, err := bundle.Push(ctx, url, steps, &bundle.Metadata{Version: VERSION}, recipients)
	if err != nil {
		return fmt.Errorf("pushing bundle failed: %w", err)
	}

	logger.Println("published digest", digest)

	return nil
}
