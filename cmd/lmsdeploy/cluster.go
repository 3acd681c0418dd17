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

	"github.com/spf13/cobra"

	"github.com/layducky/lmsdeploy/pkg/cluster"
	"github.com/layducky/lmsdeploy/pkg/config"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the cluster prerequisites of the deployment.",
}

// clusterRunner executes the provisioning tools, swapped for a
// scripted implementation in tests.
var clusterRunner cluster.Runner = cluster.ExecRunner{}

func init() {
	rootCmd.AddCommand(clusterCmd)
}

func newProvisioner() (cluster.Provisioner, error) {
	if cfg.Cluster == nil {
		return nil, fmt.Errorf("no cluster defined, add a 'cluster' section to %s", config.DefaultConfigFileName)
	}

	return cluster.New(cfg.Cluster.Provider, clusterRunner, cluster.Spec{
		Name:          cfg.Cluster.Name,
		ResourceGroup: cfg.Cluster.ResourceGroup,
		Region:        cfg.Cluster.Region,
		NodeCount:     cfg.Cluster.NodeCount,
		NodeSize:      cfg.Cluster.NodeSize,
	})
}
