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

package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	minAzVersion = "2.30.0"

	// ingressAddon is the AKS managed ingress controller add-on.
	ingressAddon = "http_application_routing"
)

// AKS provisions Azure managed clusters through the az CLI.
type AKS struct {
	runner Runner
	spec   Spec
}

func NewAKS(runner Runner, spec Spec) *AKS {
	return &AKS{runner: runner, spec: spec}
}

func (a *AKS) Preflight(ctx context.Context) error {
	if _, err := a.runner.LookPath("az"); err != nil {
		return fmt.Errorf("az not found in PATH, install the Azure CLI: %w", err)
	}

	out, err := a.runner.Run(ctx, "az", "version", "--output", "json")
	if err != nil {
		return fmt.Errorf("az version query failed: %w", err)
	}

	var v struct {
		CLI string `json:"azure-cli"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return fmt.Errorf("az version output can't be parsed: %w", err)
	}

	return checkVersion("az", v.CLI, minAzVersion)
}

func (a *AKS) EnsureCluster(ctx context.Context) ([]Check, error) {
	var checks []Check

	out, err := a.runner.Run(ctx, "az", "group", "exists", "--name", a.spec.ResourceGroup)
	if err != nil {
		return nil, fmt.Errorf("resource group query failed: %w", err)
	}

	group := Check{Subject: "group/" + a.spec.ResourceGroup, Outcome: OutcomeExists}
	if out != "true" {
		_, err := a.runner.Run(ctx, "az", "group", "create",
			"--name", a.spec.ResourceGroup,
			"--location", a.spec.Region,
			"--output", "none")
		if err != nil {
			return nil, fmt.Errorf("resource group creation failed: %w", err)
		}
		group.Outcome = OutcomeCreated
	}
	checks = append(checks, group)

	cluster := Check{Subject: "cluster/" + a.spec.Name, Outcome: OutcomeExists}

	// a failing show is treated as absence, the create surfaces any real problem
	if _, err := a.runner.Run(ctx, "az", "aks", "show",
		"--resource-group", a.spec.ResourceGroup,
		"--name", a.spec.Name,
		"--output", "none"); err != nil {
		count := a.spec.NodeCount
		if count < 1 {
			count = 1
		}

		args := []string{"aks", "create",
			"--resource-group", a.spec.ResourceGroup,
			"--name", a.spec.Name,
			"--node-count", strconv.Itoa(count),
			"--generate-ssh-keys",
			"--output", "none",
		}
		if a.spec.NodeSize != "" {
			args = append(args, "--node-vm-size", a.spec.NodeSize)
		}

		if _, err := a.runner.Run(ctx, "az", args...); err != nil {
			return nil, fmt.Errorf("cluster creation failed: %w", err)
		}
		cluster.Outcome = OutcomeCreated
	}
	checks = append(checks, cluster)

	return checks, nil
}

func (a *AKS) Credentials(ctx context.Context) error {
	_, err := a.runner.Run(ctx, "az", "aks", "get-credentials",
		"--resource-group", a.spec.ResourceGroup,
		"--name", a.spec.Name,
		"--overwrite-existing")
	if err != nil {
		return fmt.Errorf("credentials merge failed: %w", err)
	}
	return nil
}

func (a *AKS) EnsureIngressController(ctx context.Context) (Check, error) {
	check := Check{Subject: "addon/" + ingressAddon, Outcome: OutcomeExists}

	if _, err := a.runner.Run(ctx, "az", "aks", "addon", "show",
		"--resource-group", a.spec.ResourceGroup,
		"--name", a.spec.Name,
		"--addon", ingressAddon); err != nil {
		_, err := a.runner.Run(ctx, "az", "aks", "enable-addons",
			"--resource-group", a.spec.ResourceGroup,
			"--name", a.spec.Name,
			"--addons", ingressAddon,
			"--output", "none")
		if err != nil {
			return check, fmt.Errorf("ingress add-on enable failed: %w", err)
		}
		check.Outcome = OutcomeCreated
	}

	return check, nil
}

func (a *AKS) Teardown(ctx context.Context) error {
	_, err := a.runner.Run(ctx, "az", "group", "delete",
		"--name", a.spec.ResourceGroup,
		"--yes", "--no-wait")
	if err != nil {
		return fmt.Errorf("resource group delete failed: %w", err)
	}
	return nil
}
