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

var clusterDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Down deletes the configured cluster and everything deployed on it.",
	Long: `The down command deletes the cluster. On AKS the resource group is
deleted with it and the deletion continues in the background after
the command returns.`,
	Example: `  lmsdeploy cluster down
`,
	RunE: runClusterDownCmd,
}

func init() {
	clusterCmd.AddCommand(clusterDownCmd)
}

func runClusterDownCmd(cmd *cobra.Command, args []string) error {
	p, err := newProvisioner()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if err := p.Preflight(ctx); err != nil {
		return err
	}

	if err := p.Teardown(ctx); err != nil {
		return err
	}

	logger.Println(fmt.Sprintf("cluster '%s' teardown requested", cfg.Cluster.Name))
	return nil
}
