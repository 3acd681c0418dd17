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

package sequencer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fluxcd/pkg/ssa"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Step is one named manifest in the deployment order. Path points at
// a multi-doc YAML file or at a directory holding a kustomization.yaml.
type Step struct {
	Name string
	Path string
}

// Manifest pairs a step name with its rendered multi-doc YAML, the
// form steps take when they come out of a bundle instead of the
// filesystem.
type Manifest struct {
	Name string
	Data []byte
}

// PlanStep is a step resolved against the manifest source: either the
// parsed objects or a missing marker when the file is absent.
type PlanStep struct {
	Step

	// Missing is set when the manifest file does not exist. Missing
	// steps are skipped in both directions without failing the run.
	Missing bool

	// Objects holds the step's objects sorted in apply order.
	Objects []*unstructured.Unstructured
}

// Plan is the ordered list of resolved steps. Apply walks it top to
// bottom, Teardown bottom to top. A plan is read-only once built so
// the same plan can drive a teardown followed by an apply.
type Plan struct {
	Steps []PlanStep
}

// NewPlan resolves the given steps against baseDir. A step path that
// is a directory is rendered as a kustomize overlay. A step whose
// manifest source is missing is kept in the plan and marked, any other
// read or parse failure aborts plan construction.
func NewPlan(baseDir string, steps []Step) (*Plan, error) {
	plan := &Plan{}

	for _, step := range steps {
		path := step.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		resolved := PlanStep{Step: step}

		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			resolved.Missing = true
			plan.Steps = append(plan.Steps, resolved)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", step.Name, err)
		}

		var data []byte
		if fi.IsDir() {
			data, err = buildKustomization(path)
			if err != nil {
				return nil, fmt.Errorf("step '%s': %w", step.Name, err)
			}
		} else {
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("step '%s': %w", step.Name, err)
			}
		}

		objects, err := ssa.ReadObjects(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("step '%s': parsing %s failed: %w", step.Name, path, err)
		}

		sort.Sort(ssa.SortableUnstructureds(objects))
		resolved.Objects = objects
		plan.Steps = append(plan.Steps, resolved)
	}

	return plan, nil
}

// NewPlanFromManifests builds a plan from already rendered manifests,
// preserving their order.
func NewPlanFromManifests(manifests []Manifest) (*Plan, error) {
	plan := &Plan{}

	for _, m := range manifests {
		objects, err := ssa.ReadObjects(bytes.NewReader(m.Data))
		if err != nil {
			return nil, fmt.Errorf("step '%s': %w", m.Name, err)
		}

		sort.Sort(ssa.SortableUnstructureds(objects))
		plan.Steps = append(plan.Steps, PlanStep{
			Step:    Step{Name: m.Name},
			Objects: objects,
		})
	}

	return plan, nil
}

// Objects returns the objects of all present steps in apply order.
func (p *Plan) Objects() []*unstructured.Unstructured {
	var objects []*unstructured.Unstructured
	for _, step := range p.Steps {
		if step.Missing {
			continue
		}
		objects = append(objects, step.Objects...)
	}
	return objects
}

// Missing returns the names of steps whose manifest file is absent.
func (p *Plan) Missing() []string {
	var names []string
	for _, step := range p.Steps {
		if step.Missing {
			names = append(names, step.Name)
		}
	}
	return names
}
