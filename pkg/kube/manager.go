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

package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxcd/pkg/ssa"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/cli-utils/pkg/kstatus/polling"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/layducky/lmsdeploy/pkg/sequencer"
)

const createdByLabelKey = "app.kubernetes.io/created-by"

// Manager implements the control plane operations of the deploy
// sequence on top of server-side apply: ordered applies, deletes that
// tell an absent object apart from a failing one, readiness waits and
// idempotent namespace creation.
type Manager struct {
	client client.WithWatch
	resMgr *ssa.ResourceManager
	owner  ssa.Owner
}

func NewManager(kubeClient client.WithWatch, statusPoller *polling.StatusPoller, owner ssa.Owner) *Manager {
	return &Manager{
		client: kubeClient,
		resMgr: ssa.NewResourceManager(kubeClient, statusPoller, owner),
		owner:  owner,
	}
}

// ResourceManager exposes the underlying server-side apply engine.
func (m *Manager) ResourceManager() *ssa.ResourceManager {
	return m.resMgr
}

// Client exposes the underlying Kubernetes client.
func (m *Manager) Client() client.WithWatch {
	return m.client
}

// SetOwnerLabels labels the objects with the release name and namespace
// so a later deploy can find and prune the ones that left the plan.
func (m *Manager) SetOwnerLabels(objects []*unstructured.Unstructured, release, namespace string) {
	m.resMgr.SetOwnerLabels(objects, release, namespace)
}

// Apply reconciles the object using server-side apply and reports the
// action taken.
func (m *Manager) Apply(ctx context.Context, object *unstructured.Unstructured, force bool) (sequencer.Action, error) {
	opts := ssa.DefaultApplyOptions()
	opts.Force = force

	entry, err := m.resMgr.Apply(ctx, object, opts)
	if err != nil {
		return "", err
	}

	return sequencer.Action(entry.Action), nil
}

// Delete removes the object from the cluster. An object that is
// already gone reports SkippedAction, every other failure surfaces.
func (m *Manager) Delete(ctx context.Context, object *unstructured.Unstructured) (sequencer.Action, error) {
	existing := object.DeepCopy()
	if err := m.client.Get(ctx, client.ObjectKeyFromObject(object), existing); err != nil {
		if apierrors.IsNotFound(err) {
			return sequencer.SkippedAction, nil
		}
		return "", fmt.Errorf("%s query failed: %w", ssa.FmtUnstructured(object), err)
	}

	if err := m.client.Delete(ctx, existing); err != nil {
		if apierrors.IsNotFound(err) {
			return sequencer.SkippedAction, nil
		}
		return "", fmt.Errorf("%s delete failed: %w", ssa.FmtUnstructured(object), err)
	}

	return sequencer.DeletedAction, nil
}

// Wait blocks until the objects pass their kstatus readiness checks.
func (m *Manager) Wait(objects []*unstructured.Unstructured, timeout time.Duration) error {
	opts := ssa.DefaultWaitOptions()
	opts.Timeout = timeout
	return m.resMgr.Wait(objects, opts)
}

// WaitForTermination blocks until the objects are gone from the cluster.
func (m *Manager) WaitForTermination(objects []*unstructured.Unstructured, timeout time.Duration) error {
	opts := ssa.DefaultWaitOptions()
	opts.Timeout = timeout
	return m.resMgr.WaitForTermination(objects, opts)
}

// EnsureNamespace creates the namespace if not present and reports
// whether it did. Safe to call any number of times.
func (m *Manager) EnsureNamespace(ctx context.Context, name string) (bool, error) {
	ns := &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Namespace",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				createdByLabelKey: m.owner.Field,
			},
		},
	}

	if err := m.client.Get(ctx, client.ObjectKeyFromObject(ns), ns); err != nil {
		if !apierrors.IsNotFound(err) {
			return false, err
		}

		opts := []client.PatchOption{
			client.ForceOwnership,
			client.FieldOwner(m.owner.Field),
		}
		if err := m.client.Patch(ctx, ns, client.Apply, opts...); err != nil {
			return false, fmt.Errorf("namespace/%s creation failed: %w", name, err)
		}
		return true, nil
	}

	return false, nil
}
