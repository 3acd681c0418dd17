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

	"github.com/spf13/cobra"

	"github.com/layducky/lmsdeploy/pkg/bundle"
)

var bundleTagCmd = &cobra.Command{
	Use:   "tag OCIURL TAG",
	Short: "Tag adds a tag to an existing bundle without changing its content.",
	Example: `  # Mark the bundle deployed from staging as the production candidate
  lmsdeploy bundle tag oci://ghcr.io/org/moodle-stack:v1.0.0 production
`,
	RunE: runBundleTagCmd,
}

func init() {
	bundleCmd.AddCommand(bundleTagCmd)
}

func runBundleTagCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("you must specify an artifact name and tag e.g. 'oci://docker.io/user/repo:tag latest'")
	}

	url, err := bundle.ParseURL(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	res, err := bundle.Tag(ctx, url, args[1])
	if err != nil {
		return fmt.Errorf("tagging %s failed: %w", url, err)
	}

	logger.Println("tagged", res)

	return nil
}
