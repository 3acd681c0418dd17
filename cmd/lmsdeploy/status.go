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

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/layducky/lmsdeploy/pkg/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Status reports the readiness of the recorded release objects and the ingress address.",
	Long: `The status command reads the release ledger, computes the readiness of
every recorded object from its live state and prints the ingress load
balancer address when one is assigned.`,
	Example: `  lmsdeploy status
  lmsdeploy status -n moodle
`,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	m, err := newKubeManager()
	if err != nil {
		return err
	}

	storage := newLedgerStorage(m)
	release := ledger.NewRelease(cfg.Release, cfg.Namespace)
	if err := storage.Get(ctx, release); err != nil {
		if apierrors.IsNotFound(err) {
			if releases, listErr := storage.List(ctx, cfg.Namespace); listErr == nil {
				for _, r := range releases {
					logger.Println(fmt.Sprintf("found release '%s' last applied at %s", r.Name, r.LastAppliedAt))
				}
			}
			return fmt.Errorf("release '%s' not found in namespace '%s', deploy it first", cfg.Release, cfg.Namespace)
		}
		return err
	}

	rootCmd.Println(fmt.Sprintf("Release: %s/%s", release.Namespace, release.Name))
	rootCmd.Println(fmt.Sprintf("Source: %s", release.Source))
	if release.Revision != "" {
		rootCmd.Println(fmt.Sprintf("Revision: %s", release.Revision))
	}
	rootCmd.Println(fmt.Sprintf("Last applied: %s", release.LastAppliedAt))

	objects, err := release.ListObjects()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, object := range objects {
		rows = append(rows, []string{ssa.FmtUnstructured(object), objectStatus(ctx, m.Client(), object)})
	}
	printTable(rootCmd.OutOrStdout(), []string{"object", "status"}, rows)

	if cfg.Readiness == nil || cfg.Readiness.Ingress == "" {
		return nil
	}

	address, err := m.IngressAddress(ctx, cfg.Namespace, cfg.Readiness.Ingress)
	if err != nil {
		if apierrors.IsNotFound(err) {
			rootCmd.Println(fmt.Sprintf("Ingress/%s/%s not found", cfg.Namespace, cfg.Readiness.Ingress))
			return nil
		}
		return err
	}
	if address == "" {
		rootCmd.Println("Ingress address not yet assigned")
		return nil
	}
	rootCmd.Println(fmt.Sprintf("Moodle is available at http://%s/", address))

	return nil
}

// objectStatus computes the kstatus readiness of the live object.
func objectStatus(ctx context.Context, kubeClient client.Client, object *unstructured.Unstructured) string {
	live := object.DeepCopy()
	if err := kubeClient.Get(ctx, client.ObjectKeyFromObject(object), live); err != nil {
		if apierrors.IsNotFound(err) {
			return status.NotFoundStatus.String()
		}
		return fmt.Sprintf("query failed: %s", err.Error())
	}

	res, err := status.Compute(live)
	if err != nil {
		return status.UnknownStatus.String()
	}
	return res.Status.String()
}
