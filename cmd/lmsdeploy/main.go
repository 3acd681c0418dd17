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
	"os"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/layducky/lmsdeploy/pkg/config"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "lmsdeploy"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility that deploys the Moodle LMS stack on Kubernetes in a fixed step order.",
	Long: `Lmsdeploy reconciles an ordered list of Kubernetes manifests against a cluster.

Provision the cluster prerequisites:

- lmsdeploy cluster up
- lmsdeploy cluster down

Deploy and operate the stack:

- lmsdeploy deploy [--source <dir>] [--bundle <oci url>] --wait --prune
- lmsdeploy delete [--from-ledger] --wait
- lmsdeploy diff [--source <dir>]
- lmsdeploy status
- lmsdeploy build [-o yaml|json]

Distribute the rendered manifests as OCI artifacts:

- lmsdeploy bundle push oci://<image-url>:<tag>
- lmsdeploy bundle pull oci://<image-url>:<tag>
- lmsdeploy bundle tag oci://<image-url>:<tag> <new-tag>
- lmsdeploy bundle list oci://<image-url>
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

type rootFlags struct {
	timeout    time.Duration
	configPath string
}

var (
	rootArgs     = rootFlags{}
	logger       = stderrLogger{stderr: os.Stderr}
	cfg          = config.NewConfig()
	releaseOwner = ssa.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 5*time.Minute,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", "",
		"Path to the config file. Defaults to 'lmsdeploy.yaml' in the working directory.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	defaultNamespace := ""
	kubeconfigArgs.Namespace = &defaultNamespace
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n", *kubeconfigArgs.Namespace,
		"The release namespace. Overrides the namespace from the config file.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

func loadConfig() error {
	c, err := config.Read(rootArgs.configPath)
	if err != nil {
		return fmt.Errorf("loading the config failed, error: %w", err)
	}
	cfg = c

	if *kubeconfigArgs.Namespace != "" {
		cfg.Namespace = *kubeconfigArgs.Namespace
	}

	ssa.ReconcileOrder = ssa.KindOrder{
		First: cfg.ApplyOrder.First,
		Last:  cfg.ApplyOrder.Last,
	}
	releaseOwner = ssa.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
	return nil
}
