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
	"fmt"
)

// Spec describes the cluster the provisioner manages.
type Spec struct {
	Name          string
	ResourceGroup string
	Region        string
	NodeCount     int
	NodeSize      string
}

// Outcome reports what an idempotent precondition check did.
type Outcome string

const (
	OutcomeExists  Outcome = "exists"
	OutcomeCreated Outcome = "created"
)

// Check is the result of one precondition: the subject that was
// queried and whether it had to be created.
type Check struct {
	Subject string
	Outcome Outcome
}

func (c Check) String() string {
	return fmt.Sprintf("%s %s", c.Subject, c.Outcome)
}

// Provisioner manages cluster-level prerequisites. Every Ensure
// method queries existence first and creates only on absence, so
// running it any number of times changes nothing after the first
// successful run.
type Provisioner interface {
	// Preflight verifies the provisioning tool is installed and
	// recent enough. It must be called before any mutation.
	Preflight(ctx context.Context) error

	// EnsureCluster brings up the cluster and whatever it needs to
	// exist (resource group, profile), reporting one check per subject.
	EnsureCluster(ctx context.Context) ([]Check, error)

	// Credentials points the current kubeconfig context at the cluster.
	Credentials(ctx context.Context) error

	// EnsureIngressController makes sure an ingress controller
	// answers in the cluster.
	EnsureIngressController(ctx context.Context) (Check, error)

	// Teardown removes the cluster and the resources under it.
	Teardown(ctx context.Context) error
}

// New returns the provisioner for the given provider name.
func New(provider string, runner Runner, spec Spec) (Provisioner, error) {
	switch provider {
	case "aks":
		return NewAKS(runner, spec), nil
	case "minikube":
		return NewMinikube(runner, spec), nil
	default:
		return nil, fmt.Errorf("unsupported cluster provider '%s', must be aks or minikube", provider)
	}
}
