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
	"sort"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/layducky/lmsdeploy/pkg/ledger"
	"github.com/layducky/lmsdeploy/pkg/sequencer"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete removes the release objects from the cluster in reverse step order.",
	Long: `The delete command removes the deployed objects in the reverse of the
apply order and deletes the release ledger. Objects that are already
gone are reported as skipped. With --from-ledger the objects to delete
are read from the release ledger instead of the local manifests, which
works without a copy of the sources. The release namespace is left in
place.`,
	Example: `  # Delete the stack described by the local manifests
  lmsdeploy delete --source ./deploy --wait

  # Delete whatever the last deploy recorded
  lmsdeploy delete --from-ledger
`,
	RunE: runDeleteCmd,
}

type deleteFlags struct {
	source     string
	fromLedger bool
	wait       bool
}

var deleteArgs deleteFlags

func init() {
	deleteCmd.Flags().StringVarP(&deleteArgs.source, "source", "s", ".",
		"Path to the directory that the step manifest paths are resolved against.")
	deleteCmd.Flags().BoolVar(&deleteArgs.fromLedger, "from-ledger", false,
		"Delete the objects recorded in the release ledger instead of the local manifests.")
	deleteCmd.Flags().BoolVar(&deleteArgs.wait, "wait", false,
		"Wait for the deleted objects to be finalized.")

	rootCmd.AddCommand(deleteCmd)
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	m, err := newKubeManager()
	if err != nil {
		return err
	}

	storage := newLedgerStorage(m)
	release := ledger.NewRelease(cfg.Release, cfg.Namespace)

	var objects []*unstructured.Unstructured
	if deleteArgs.fromLedger {
		objects, err = deleteFromLedger(ctx, m, storage, release)
	} else {
		objects, err = deleteFromSource(ctx, m)
	}
	if err != nil {
		return err
	}

	if err := storage.Delete(ctx, release); err != nil {
		return err
	}
	logger.Println(fmt.Sprintf("ConfigMap/%s/%s%s deleted", cfg.Namespace, ledger.ReleasePrefix, cfg.Release))

	if deleteArgs.wait && len(objects) > 0 {
		logger.Println("waiting for resources to be terminated...")
		if err := m.WaitForTermination(objects, rootArgs.timeout); err != nil {
			return fmt.Errorf("waiting for termination failed: %w", err)
		}
		logger.Println("all resources have been deleted")
	}

	return nil
}

func deleteFromSource(ctx context.Context, m sequencer.Cluster) ([]*unstructured.Unstructured, error) {
	plan, err := planFromSource(deleteArgs.source)
	if err != nil {
		return nil, err
	}

	for _, name := range plan.Missing() {
		logger.Println(fmt.Sprintf("step '%s' skipped, manifest not found", name))
	}

	objects := plan.Objects()
	logger.Println(fmt.Sprintf("deleting %v object(s)...", len(objects)))

	seq := sequencer.New(m, sequencer.DefaultOptions())
	changeSet, err := seq.Teardown(ctx, plan)
	printChangeSet(changeSet)
	if err != nil {
		return nil, err
	}

	return objects, nil
}

// deleteFromLedger removes the recorded objects in reverse apply
// order, the recovery path for when the manifest sources are gone.
func deleteFromLedger(ctx context.Context, m sequencer.Cluster, storage *ledger.Storage, release *ledger.Release) ([]*unstructured.Unstructured, error) {
	logger.Println("retrieving the release ledger...")
	if err := storage.Get(ctx, release); err != nil {
		return nil, fmt.Errorf("release '%s' not found in namespace '%s': %w", release.Name, release.Namespace, err)
	}

	objects, err := release.ListObjects()
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(ssa.SortableUnstructureds(objects)))

	logger.Println(fmt.Sprintf("deleting %v object(s)...", len(objects)))
	for _, object := range objects {
		action, err := m.Delete(ctx, object)
		if err != nil {
			return nil, err
		}
		logger.Println(fmt.Sprintf("%s %s", ssa.FmtUnstructured(object), action))
	}

	return objects, nil
}
