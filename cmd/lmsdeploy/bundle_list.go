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
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/layducky/lmsdeploy/pkg/bundle"
)

var bundleListCmd = &cobra.Command{
	Use:   "list OCIURL",
	Short: "List the versions of a bundle stored in a container registry.",
	Long: `The list command fetches the tags of the specified bundle from its image
repository. If a semantic version condition is specified, the tags are
filtered and ordered by semver.`,
	Example: `  # List all versions ordered by semver
  lmsdeploy bundle list oci://ghcr.io/org/moodle-stack --semver="*"

  # List all versions in the 1.0 range
  lmsdeploy bundle list oci://ghcr.io/org/moodle-stack --semver="~1.0"
`,
	RunE: runBundleListCmd,
}

type bundleListFlags struct {
	semverExp string
}

var bundleListArgs bundleListFlags

func init() {
	bundleListCmd.Flags().StringVar(&bundleListArgs.semverExp, "semver", "",
		"Filter the results based on a semantic version constraint e.g. '1.x'.")

	bundleCmd.AddCommand(bundleListCmd)
}

func runBundleListCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify a bundle repository e.g. 'oci://docker.io/user/repo'")
	}

	url, err := bundle.ParseRepositoryURL(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	tags, err := bundle.List(ctx, url)
	if err != nil {
		return fmt.Errorf("listing %s failed: %w", url, err)
	}

	var rows [][]string

	if exp := bundleListArgs.semverExp; exp != "" {
		c, err := semver.NewConstraint(exp)
		if err != nil {
			return fmt.Errorf("semver '%s' parse error: %w", exp, err)
		}

		var matchingVersions []*semver.Version
		for _, t := range tags {
			v, err := semver.NewVersion(t)
			if err != nil {
				continue
			}

			if !c.Check(v) {
				continue
			}

			matchingVersions = append(matchingVersions, v)
		}

		sort.Sort(sort.Reverse(semver.Collection(matchingVersions)))

		for _, ver := range matchingVersions {
			rows = append(rows, []string{ver.String(), fmt.Sprintf("%s:%s", url, ver.Original())})
		}
	} else {
		for _, tag := range tags {
			rows = append(rows, []string{tag, fmt.Sprintf("%s:%s", url, tag)})
		}
	}

	printTable(rootCmd.OutOrStdout(), []string{"version", "url"}, rows)

	return nil
}
