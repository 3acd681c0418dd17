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
	"errors"
	"fmt"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/layducky/lmsdeploy/pkg/kube"
	"github.com/layducky/lmsdeploy/pkg/ledger"
	"github.com/layducky/lmsdeploy/pkg/poll"
	"github.com/layducky/lmsdeploy/pkg/sequencer"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy reconciles the configured steps against the cluster in order.",
	Long: `The deploy command creates the release namespace if needed, verifies that
an ingress controller is registered, tears down the previous objects in
reverse step order and applies the steps in order using server-side apply.
Steps whose manifest source is absent are skipped. After a successful
apply, the applied objects are recorded in the release ledger and the
ingress is polled until the load balancer address is assigned. A deploy
that runs out of polling attempts still succeeds, the address can be
queried later with 'lmsdeploy status'.`,
	Example: `  # Redeploy the stack from the local manifests
  lmsdeploy deploy --source ./deploy

  # Reconcile on top of the running stack instead of recreating it
  lmsdeploy deploy --keep-existing --prune --wait

  # Deploy a versioned bundle
  lmsdeploy deploy --bundle oci://ghcr.io/org/moodle-stack:v1.0.0

  # Deploy an encrypted bundle
  lmsdeploy deploy --bundle oci://ghcr.io/org/moodle-stack:v1.0.0 --age-identities ./id.txt
`,
	RunE: runDeployCmd,
}

type deployFlags struct {
	source           string
	bundleURL        string
	ageIdentities    string
	revision         string
	wait             bool
	waitEachStep     bool
	force            bool
	prune            bool
	keepExisting     bool
	skipIngressCheck bool
}

var deployArgs deployFlags

func init() {
	deployCmd.Flags().StringVarP(&deployArgs.source, "source", "s", ".",
		"Path to the directory that the step manifest paths are resolved against.")
	deployCmd.Flags().StringVarP(&deployArgs.bundleURL, "bundle", "b", "",
		"Deploy from an OCI artifact in the format 'oci://registry/org/repo:tag' instead of local files.")
	deployCmd.Flags().StringVar(&deployArgs.ageIdentities, "age-identities", "",
		"Path to a file containing age identities (private keys) for decrypting an encrypted bundle.")
	deployCmd.Flags().StringVar(&deployArgs.revision, "revision", "",
		"The revision identifier recorded in the release ledger.")
	deployCmd.Flags().BoolVar(&deployArgs.wait, "wait", false,
		"Wait for the applied objects to become ready.")
	deployCmd.Flags().BoolVar(&deployArgs.waitEachStep, "wait-each-step", false,
		"Wait for each step to become ready before applying the next one.")
	deployCmd.Flags().BoolVar(&deployArgs.force, "force", false,
		"Recreate objects that contain immutable fields changes.")
	deployCmd.Flags().BoolVar(&deployArgs.prune, "prune", false,
		"Delete the objects recorded by the previous deploy that are no longer part of any step.")
	deployCmd.Flags().BoolVar(&deployArgs.keepExisting, "keep-existing", false,
		"Skip the teardown phase and reconcile on top of the existing objects.")
	deployCmd.Flags().BoolVar(&deployArgs.skipIngressCheck, "skip-ingress-check", false,
		"Skip the ingress controller precondition check.")

	rootCmd.AddCommand(deployCmd)
}

func runDeployCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	plan, source, err := loadPlan(ctx, deployArgs.source, deployArgs.bundleURL, deployArgs.ageIdentities)
	if err != nil {
		return err
	}

	for _, name := range plan.Missing() {
		logger.Println(fmt.Sprintf("step '%s' skipped, manifest not found", name))
	}

	objects := plan.Objects()
	if len(objects) == 0 {
		return fmt.Errorf("nothing to deploy, none of the configured steps produced objects")
	}

	m, err := newKubeManager()
	if err != nil {
		return err
	}

	nsCreated, err := m.EnsureNamespace(ctx, cfg.Namespace)
	if err != nil {
		return fmt.Errorf("namespace init failed: %w", err)
	}
	if nsCreated {
		logger.Println(fmt.Sprintf("Namespace/%s created", cfg.Namespace))
	} else {
		logger.Println(fmt.Sprintf("Namespace/%s unchanged", cfg.Namespace))
	}

	if !deployArgs.skipIngressCheck {
		found, err := m.HasIngressController(ctx)
		if err != nil {
			return fmt.Errorf("ingress controller lookup failed: %w", err)
		}
		if !found {
			return fmt.Errorf("no ingress controller registered with the cluster, " +
				"run 'lmsdeploy cluster up' to install one or pass --skip-ingress-check")
		}
	}

	m.SetOwnerLabels(objects, cfg.Release, cfg.Namespace)

	opts := sequencer.DefaultOptions()
	opts.Force = deployArgs.force
	opts.WaitEachStep = deployArgs.waitEachStep
	opts.WaitTimeout = rootArgs.timeout
	seq := sequencer.New(m, opts)

	if !deployArgs.keepExisting {
		logger.Println(fmt.Sprintf("deleting %v previous object(s)...", len(objects)))
		changeSet, err := seq.Teardown(ctx, plan)
		printChangeSet(changeSet)
		if err != nil {
			return err
		}

		if err := m.WaitForTermination(objects, rootArgs.timeout); err != nil {
			return fmt.Errorf("waiting for termination failed: %w", err)
		}
	}

	logger.Println(fmt.Sprintf("applying %v object(s)...", len(objects)))
	changeSet, err := seq.Apply(ctx, plan)
	printChangeSet(changeSet)
	if err != nil {
		return err
	}

	release := ledger.NewRelease(cfg.Release, cfg.Namespace)
	release.SetSource(source, deployArgs.revision)
	if err := release.AddObjects(objects); err != nil {
		return fmt.Errorf("recording the release failed: %w", err)
	}

	storage := newLedgerStorage(m)

	staleObjects, err := storage.StaleObjects(ctx, release)
	if err != nil {
		return fmt.Errorf("ledger query failed: %w", err)
	}

	if err := storage.Apply(ctx, release); err != nil {
		return fmt.Errorf("ledger apply failed: %w", err)
	}

	if deployArgs.prune && len(staleObjects) > 0 {
		for _, object := range staleObjects {
			action, err := m.Delete(ctx, object)
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}
			logger.Println(fmt.Sprintf("%s %s", ssa.FmtUnstructured(object), action))
		}
	}

	if deployArgs.wait {
		logger.Println("waiting for resources to become ready...")
		if err := m.Wait(objects, rootArgs.timeout); err != nil {
			return err
		}

		if deployArgs.prune && len(staleObjects) > 0 {
			if err := m.WaitForTermination(staleObjects, rootArgs.timeout); err != nil {
				return fmt.Errorf("waiting for termination failed: %w", err)
			}
		}
		logger.Println("all resources are ready")
	}

	return reportIngressAddress(m)
}

// reportIngressAddress polls the configured ingress until its load
// balancer address shows up. Running out of attempts is not an error,
// address assignment can take longer than the polling budget.
func reportIngressAddress(m *kube.Manager) error {
	if cfg.Readiness == nil || cfg.Readiness.Ingress == "" {
		return nil
	}

	logger.Println(fmt.Sprintf("polling Ingress/%s/%s for the public address...",
		cfg.Namespace, cfg.Readiness.Ingress))

	var address string
	p := poll.New(cfg.Readiness.Attempts, cfg.Readiness.Interval.Duration)
	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		addr, err := m.IngressAddress(ctx, cfg.Namespace, cfg.Readiness.Ingress)
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		address = addr
		return addr != "", nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrPending) {
			logger.Println(fmt.Sprintf("ingress address not yet assigned after %v attempts, "+
				"check later with 'lmsdeploy status'", cfg.Readiness.Attempts))
			return nil
		}
		return fmt.Errorf("ingress polling failed: %w", err)
	}

	logger.Println(fmt.Sprintf("Moodle is available at http://%s/", address))
	return nil
}
