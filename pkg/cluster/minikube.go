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

const minMinikubeVersion = "1.24.0"

// Minikube provisions local clusters through the minikube CLI,
// one profile per cluster.
type Minikube struct {
	runner Runner
	spec   Spec
}

func NewMinikube(runner Runner, spec Spec) *Minikube {
	return &Minikube{runner: runner, spec: spec}
}

func (m *Minikube) Preflight(ctx context.Context) error {
	if _, err := m.runner.LookPath("minikube"); err != nil {
		return fmt.Errorf("minikube not found in PATH: %w", err)
	}

	out, err := m.runner.Run(ctx, "minikube", "version", "--short")
	if err != nil {
		return fmt.Errorf("minikube version query failed: %w", err)
	}

	return checkVersion("minikube", out, minMinikubeVersion)
}

func (m *Minikube) EnsureCluster(ctx context.Context) ([]Check, error) {
	check := Check{Subject: "profile/" + m.spec.Name, Outcome: OutcomeExists}

	// status exits non-zero when the profile does not exist or is stopped
	if _, err := m.runner.Run(ctx, "minikube", "status", "-p", m.spec.Name); err != nil {
		args := []string{"start", "-p", m.spec.Name}
		if m.spec.NodeCount > 1 {
			args = append(args, "--nodes", strconv.Itoa(m.spec.NodeCount))
		}

		if _, err := m.runner.Run(ctx, "minikube", args...); err != nil {
			return nil, fmt.Errorf("profile start failed: %w", err)
		}
		check.Outcome = OutcomeCreated
	}

	return []Check{check}, nil
}

func (m *Minikube) Credentials(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "minikube", "update-context", "-p", m.spec.Name)
	if err != nil {
		return fmt.Errorf("kubeconfig context update failed: %w", err)
	}
	return nil
}

func (m *Minikube) EnsureIngressController(ctx context.Context) (Check, error) {
	check := Check{Subject: "addon/ingress", Outcome: OutcomeExists}

	out, err := m.runner.Run(ctx, "minikube", "addons", "list", "-p", m.spec.Name, "--output", "json")
	if err != nil {
		return check, fmt.Errorf("addon query failed: %w", err)
	}

	var addons map[string]struct {
		Status string `json:"Status"`
	}
	if err := json.Unmarshal([]byte(out), &addons); err != nil {
		return check, fmt.Errorf("addon list can't be parsed: %w", err)
	}

	if addons["ingress"].Status != "enabled" {
		if _, err := m.runner.Run(ctx, "minikube", "addons", "enable", "ingress", "-p", m.spec.Name); err != nil {
			return check, fmt.Errorf("ingress addon enable failed: %w", err)
		}
		check.Outcome = OutcomeCreated
	}

	return check, nil
}

func (m *Minikube) Teardown(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "minikube", "delete", "-p", m.spec.Name)
	if err != nil {
		return fmt.Errorf("profile delete failed: %w", err)
	}
	return nil
}
