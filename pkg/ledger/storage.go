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

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxcd/pkg/ssa"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/json"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	ReleaseKindName   = "release"
	ReleasePrefix     = "release-"
	nameLabelKey      = "app.kubernetes.io/name"
	componentLabelKey = "app.kubernetes.io/component"
	createdByLabelKey = "app.kubernetes.io/created-by"
)

// Storage keeps release records in ConfigMaps on the cluster.
type Storage struct {
	Manager *ssa.ResourceManager
	Owner   ssa.Owner
}

// GetOwnerLabels returns the labels shared by all release records.
func (s *Storage) GetOwnerLabels() client.MatchingLabels {
	return client.MatchingLabels{
		componentLabelKey: ReleaseKindName,
		createdByLabelKey: s.Owner.Field,
	}
}

// Apply creates or updates the record for the given release.
func (s *Storage) Apply(ctx context.Context, r *Release) error {
	data, err := json.Marshal(r.Entries)
	if err != nil {
		return err
	}

	cm := s.newConfigMap(r.Name, r.Namespace)
	cm.Annotations = map[string]string{
		s.Owner.Group + "/last-applied-time": time.Now().UTC().Format(time.RFC3339),
	}
	if r.Source != "" {
		cm.Annotations[s.Owner.Group+"/source"] = r.Source
	}
	if r.Revision != "" {
		cm.Annotations[s.Owner.Group+"/revision"] = r.Revision
	}

	cm.Data = map[string]string{
		ReleaseKindName: string(data),
	}

	opts := []client.PatchOption{
		client.ForceOwnership,
		client.FieldOwner(s.Owner.Field),
	}
	return s.Manager.Client().Patch(ctx, cm, client.Apply, opts...)
}

// Get retrieves the record for the given release name and namespace.
func (s *Storage) Get(ctx context.Context, r *Release) error {
	cm := s.newConfigMap(r.Name, r.Namespace)

	cmKey := client.ObjectKeyFromObject(cm)
	if err := s.Manager.Client().Get(ctx, cmKey, cm); err != nil {
		return err
	}

	if _, ok := cm.Data[ReleaseKindName]; !ok {
		return fmt.Errorf("release data not found in ConfigMap/%s", cmKey)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(cm.Data[ReleaseKindName]), &entries); err != nil {
		return err
	}
	r.Entries = entries

	for k, v := range cm.GetAnnotations() {
		switch k {
		case s.Owner.Group + "/source":
			r.Source = v
		case s.Owner.Group + "/revision":
			r.Revision = v
		case s.Owner.Group + "/last-applied-time":
			r.LastAppliedAt = v
		}
	}

	return nil
}

// Delete removes the record for the given release.
func (s *Storage) Delete(ctx context.Context, r *Release) error {
	cm := s.newConfigMap(r.Name, r.Namespace)

	cmKey := client.ObjectKeyFromObject(cm)
	err := s.Manager.Client().Delete(ctx, cm)
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap/%s, error: %w", cmKey, err)
	}
	return nil
}

// StaleObjects returns the objects recorded by the previous deploy
// that the given release no longer contains.
func (s *Storage) StaleObjects(ctx context.Context, r *Release) ([]*unstructured.Unstructured, error) {
	objects := make([]*unstructured.Unstructured, 0)

	existing := NewRelease(r.Name, r.Namespace)
	if err := s.Get(ctx, existing); err != nil {
		if apierrors.IsNotFound(err) {
			return objects, nil
		}
		return nil, err
	}

	return existing.Diff(r)
}

// List returns all release records in the given namespace.
func (s *Storage) List(ctx context.Context, namespace string) ([]*Release, error) {
	cmList := &corev1.ConfigMapList{}
	err := s.Manager.Client().List(ctx, cmList, client.InNamespace(namespace), s.GetOwnerLabels())
	if err != nil {
		return nil, err
	}

	releases := make([]*Release, 0, len(cmList.Items))
	for i := range cmList.Items {
		cm := cmList.Items[i]

		r := NewRelease(cm.Labels[nameLabelKey], namespace)
		if data, ok := cm.Data[ReleaseKindName]; ok {
			var entries []Entry
			if err := json.Unmarshal([]byte(data), &entries); err != nil {
				return nil, fmt.Errorf("release data in ConfigMap/%s/%s can't be parsed: %w", namespace, cm.Name, err)
			}
			r.Entries = entries
		}

		for k, v := range cm.GetAnnotations() {
			switch k {
			case s.Owner.Group + "/source":
				r.Source = v
			case s.Owner.Group + "/revision":
				r.Revision = v
			case s.Owner.Group + "/last-applied-time":
				r.LastAppliedAt = v
			}
		}

		releases = append(releases, r)
	}

	return releases, nil
}

func (s *Storage) newConfigMap(name, namespace string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      ReleasePrefix + name,
			Namespace: namespace,
			Labels: map[string]string{
				nameLabelKey:      name,
				componentLabelKey: ReleaseKindName,
				createdByLabelKey: s.Owner.Field,
			},
		},
	}
}
