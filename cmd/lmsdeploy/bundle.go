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
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Distribute the deployment steps as OCI artifacts.",
	Long: `The bundle commands package the rendered step manifests as an OCI
artifact, keeping the step order, and move it between registries and
clusters. For private registries the credentials are read from
'~/.docker/config.json'.`,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
}
