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
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Cluster is the control plane surface the sequencer drives. It is
// implemented by kube.Manager and by scripted fakes in tests.
type Cluster interface {
	// Apply reconciles the object and reports the action taken.
	Apply(ctx context.Context, object *unstructured.Unstructured, force bool) (Action, error)

	// Delete removes the object. An object that is already absent
	// reports SkippedAction instead of an error.
	Delete(ctx context.Context, object *unstructured.Unstructured) (Action, error)

	// Wait blocks until the objects are ready or the timeout expires.
	Wait(objects []*unstructured.Unstructured, timeout time.Duration) error

	// WaitForTermination blocks until the objects are gone from the
	// cluster or the timeout expires.
	WaitForTermination(objects []*unstructured.Unstructured, timeout time.Duration) error
}

// Options make the sequencing policies explicit instead of burying
// them in the run loop.
type Options struct {
	// FailFast aborts the sequence at the first failing step. When
	// unset, remaining steps still run and the errors are aggregated.
	FailFast bool

	// WaitEachStep gates every step on the previous one: apply waits
	// for readiness, teardown waits for termination, before moving on.
	WaitEachStep bool

	// Force recreates objects with immutable field changes.
	Force bool

	// WaitTimeout bounds each readiness or termination wait.
	WaitTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		FailFast:    true,
		WaitTimeout: 5 * time.Minute,
	}
}

// Sequencer applies an ordered plan forward and tears it down in
// exact reverse order.
type Sequencer struct {
	cluster Cluster
	opts    Options
}

func New(cluster Cluster, opts Options) *Sequencer {
	return &Sequencer{cluster: cluster, opts: opts}
}

// Apply reconciles the plan's present steps in forward order, one
// object at a time. Missing steps are skipped. The returned change
// set holds everything done so far even when an error aborts the run.
func (s *Sequencer) Apply(ctx context.Context, plan *Plan) (*ChangeSet, error) {
	changeSet := NewChangeSet()
	var failures []string

	for _, step := range plan.Steps {
		if step.Missing {
			continue
		}

		if err := s.applyStep(ctx, step, changeSet); err != nil {
			err = fmt.Errorf("step '%s' apply failed: %w", step.Name, err)
			if s.opts.FailFast {
				return changeSet, err
			}
			failures = append(failures, err.Error())
			continue
		}

		if s.opts.WaitEachStep && len(step.Objects) > 0 {
			if err := s.cluster.Wait(step.Objects, s.opts.WaitTimeout); err != nil {
				err = fmt.Errorf("step '%s' not ready: %w", step.Name, err)
				if s.opts.FailFast {
					return changeSet, err
				}
				failures = append(failures, err.Error())
			}
		}
	}

	if len(failures) > 0 {
		return changeSet, fmt.Errorf("apply failed: %s", strings.Join(failures, "; "))
	}

	return changeSet, nil
}

func (s *Sequencer) applyStep(ctx context.Context, step PlanStep, changeSet *ChangeSet) error {
	for _, object := range step.Objects {
		action, err := s.cluster.Apply(ctx, object, s.opts.Force)
		if err != nil {
			return fmt.Errorf("%s apply failed: %w", ssa.FmtUnstructured(object), err)
		}
		changeSet.Add(ChangeSetEntry{
			Subject: ssa.FmtUnstructured(object),
			Action:  action,
			Step:    step.Name,
		})
	}
	return nil
}

// Teardown deletes the plan's present steps in exact reverse step
// order, objects within a step in reverse apply order. Objects that
// are already gone are recorded as skipped and never fail the run,
// any other delete failure does.
func (s *Sequencer) Teardown(ctx context.Context, plan *Plan) (*ChangeSet, error) {
	changeSet := NewChangeSet()
	var failures []string

	for i := len(plan.Steps) - 1; i >= 0; i-- {
		step := plan.Steps[i]
		if step.Missing {
			continue
		}

		if err := s.deleteStep(ctx, step, changeSet); err != nil {
			err = fmt.Errorf("step '%s' delete failed: %w", step.Name, err)
			if s.opts.FailFast {
				return changeSet, err
			}
			failures = append(failures, err.Error())
			continue
		}

		if s.opts.WaitEachStep && len(step.Objects) > 0 {
			if err := s.cluster.WaitForTermination(step.Objects, s.opts.WaitTimeout); err != nil {
				err = fmt.Errorf("step '%s' termination: %w", step.Name, err)
				if s.opts.FailFast {
					return changeSet, err
				}
				failures = append(failures, err.Error())
			}
		}
	}

	if len(failures) > 0 {
		return changeSet, fmt.Errorf("teardown failed: %s", strings.Join(failures, "; "))
	}

	return changeSet, nil
}

func (s *Sequencer) deleteStep(ctx context.Context, step PlanStep, changeSet *ChangeSet) error {
	objects := make([]*unstructured.Unstructured, len(step.Objects))
	copy(objects, step.Objects)
	sort.Sort(sort.Reverse(ssa.SortableUnstructureds(objects)))

	for _, object := range objects {
		action, err := s.cluster.Delete(ctx, object)
		if err != nil {
			return fmt.Errorf("%s delete failed: %w", ssa.FmtUnstructured(object), err)
		}
		changeSet.Add(ChangeSetEntry{
			Subject: ssa.FmtUnstructured(object),
			Action:  action,
			Step:    step.Name,
		})
	}
	return nil
}
