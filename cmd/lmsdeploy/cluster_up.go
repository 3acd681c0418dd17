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
)

var clusterUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Up provisions the configured cluster and its ingress controller.",
	Long: `The up command brings the configured cluster to a deployable state:
it creates the resource group and the cluster when they are absent,
points the current kubeconfig context at the cluster and enables the
ingress controller. Resources that already exist are left untouched,
so the command can be re-run after a partial failure.

Cluster creation can take longer than the default timeout, raise it
with --timeout when needed.`,
	Example: `  lmsdeploy cluster up --timeout 20m
`,
	RunE: runClusterUpCmd,
}

func init() {
	clusterCmd.AddCommand(clusterUpCmd)
}

func runClusterUpCmd(cmd *cobra.Command, args []string) error {
	p, err := newProvisioner()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if err := p.Preflight(ctx); err != nil {
		return err
	}

	checks, err := p.EnsureCluster(ctx)
	for _, check := range checks {
		logger.Println(check.String())
	}
	if err != nil {
		return err
	}

	if err := p.Credentials(ctx); err != nil {
		return err
	}
	logger.Println(fmt.Sprintf("kubeconfig context set to cluster '%s'", cfg.Cluster.Name))

	check, err := p.EnsureIngressController(ctx)
	if err != nil {
		return err
	}
	logger.Println(check.String())

	logger.Println("cluster is ready")
	return nil
}
