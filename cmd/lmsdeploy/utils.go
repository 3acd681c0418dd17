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
	"io"

	"filippo.io/age"
	"github.com/fluxcd/pkg/ssa"
	"github.com/olekukonko/tablewriter"

	"github.com/layducky/lmsdeploy/pkg/bundle"
	"github.com/layducky/lmsdeploy/pkg/config"
	"github.com/layducky/lmsdeploy/pkg/kube"
	"github.com/layducky/lmsdeploy/pkg/ledger"
	"github.com/layducky/lmsdeploy/pkg/sequencer"
)

func stepsFromConfig(steps []config.Step) []sequencer.Step {
	result := make([]sequencer.Step, len(steps))
	for i, step := range steps {
		result[i] = sequencer.Step{Name: step.Name, Path: step.Path}
	}
	return result
}

// planFromSource resolves the configured steps against the given dir.
func planFromSource(sourceDir string) (*sequencer.Plan, error) {
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("no steps defined in the config")
	}
	return sequencer.NewPlan(sourceDir, stepsFromConfig(cfg.Steps))
}

// planFromBundle pulls the artifact and rebuilds the plan from its
// steps, preserving the order they were pushed in.
func planFromBundle(ctx context.Context, ociURL, identitiesPath string) (*sequencer.Plan, *bundle.Metadata, error) {
	url, err := bundle.ParseURL(ociURL)
	if err != nil {
		return nil, nil, err
	}

	var identities []age.Identity
	if identitiesPath != "" {
		identities, err = bundle.ParseAgeIdentities(identitiesPath)
		if err != nil {
			return nil, nil, err
		}
	}

	logger.Println("pulling", url)
	steps, meta, err := bundle.Pull(ctx, url, identities)
	if err != nil {
		return nil, nil, fmt.Errorf("pulling %s failed: %w", url, err)
	}

	manifests := make([]sequencer.Manifest, len(steps))
	for i, step := range steps {
		manifests[i] = sequencer.Manifest{Name: step.Name, Data: step.Manifest}
	}

	plan, err := sequencer.NewPlanFromManifests(manifests)
	if err != nil {
		return nil, nil, err
	}
	return plan, meta, nil
}

// loadPlan builds the plan from a bundle when an OCI URL is given,
// from the local source dir otherwise. The returned string identifies
// the manifest source for the release ledger.
func loadPlan(ctx context.Context, sourceDir, bundleURL, identitiesPath string) (*sequencer.Plan, string, error) {
	if bundleURL != "" {
		plan, _, err := planFromBundle(ctx, bundleURL, identitiesPath)
		return plan, bundleURL, err
	}

	plan, err := planFromSource(sourceDir)
	return plan, sourceDir, err
}

// bundleSteps renders the present plan steps back into multi-doc YAML
// for pushing.
func bundleSteps(plan *sequencer.Plan) ([]bundle.Step, error) {
	var steps []bundle.Step
	for _, step := range plan.Steps {
		if step.Missing {
			continue
		}
		yml, err := ssa.ObjectsToYAML(step.Objects)
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", step.Name, err)
		}
		steps = append(steps, bundle.Step{Name: step.Name, Manifest: []byte(yml)})
	}
	return steps, nil
}

func printChangeSet(changeSet *sequencer.ChangeSet) {
	if changeSet == nil {
		return
	}
	for _, entry := range changeSet.Entries {
		logger.Println(entry.String())
	}
}

func newLedgerStorage(m *kube.Manager) *ledger.Storage {
	return &ledger.Storage{
		Manager: m.ResourceManager(),
		Owner:   releaseOwner,
	}
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
