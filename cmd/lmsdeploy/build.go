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

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build renders the configured steps in apply order and prints them to stdout.",
	Long: `The build command resolves the step manifests, including kustomize
overlays, in the order they would be applied and prints the result
without touching the cluster.`,
	Example: `  # Print the stack as multi-doc YAML
  lmsdeploy build --source ./deploy

  # Print the stack as a JSON list
  lmsdeploy build --source ./deploy -o json
`,
	RunE: runBuildCmd,
}

type buildFlags struct {
	source string
	output string
}

var buildArgs buildFlags

func init() {
	buildCmd.Flags().StringVarP(&buildArgs.source, "source", "s", ".",
		"Path to the directory that the step manifest paths are resolved against.")
	buildCmd.Flags().StringVarP(&buildArgs.output, "output", "o", "yaml",
		"Write manifests to stdout in YAML or JSON format.")

	rootCmd.AddCommand(buildCmd)
}

func runBuildCmd(cmd *cobra.Command, args []string) error {
	plan, err := planFromSource(buildArgs.source)
	if err != nil {
		return err
	}

	for _, name := range plan.Missing() {
		logger.Println(fmt.Sprintf("step '%s' skipped, manifest not found", name))
	}

	objects := plan.Objects()

	switch buildArgs.output {
	case "yaml":
		yml, err := ssa.ObjectsToYAML(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(yml)
	case "json":
		json, err := ssa.ObjectsToJSON(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(json)
	default:
		return fmt.Errorf("unsupported output, can be yaml or json")
	}

	return nil
}
