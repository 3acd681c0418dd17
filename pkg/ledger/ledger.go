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
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cli-utils/pkg/object"
)

// Release records the objects a deploy applied, so a later run can
// report status, prune stale objects or tear everything down without
// the local manifests.
type Release struct {
	// Name is the release name, the in-cluster record is the
	// ConfigMap 'release-<name>'.
	Name string `json:"name"`

	// Namespace is where the record lives.
	Namespace string `json:"namespace"`

	// Source is the manifest origin: a directory, an overlay or a
	// bundle URL.
	Source string `json:"source,omitempty"`

	// Revision identifies the deployed version.
	Revision string `json:"revision,omitempty"`

	// LastAppliedAt is the timestamp of the last successful deploy,
	// filled in when the record is read back.
	LastAppliedAt string `json:"lastAppliedAt,omitempty"`

	Entries []Entry `json:"entries"`
}

// Entry is one recorded object reference.
type Entry struct {
	// Subject holds the object reference in the format
	// 'namespace_name_group_kind'.
	Subject string `json:"subject"`

	// Version holds the API version of the object.
	Version string `json:"version"`
}

func NewRelease(name, namespace string) *Release {
	return &Release{
		Name:      name,
		Namespace: namespace,
		Entries:   []Entry{},
	}
}

// SetSource records where the deployed manifests came from.
func (r *Release) SetSource(source, revision string) {
	r.Source = source
	r.Revision = revision
}

// AddObjects appends the objects to the release record and keeps the
// entries sorted for a stable in-cluster representation.
func (r *Release) AddObjects(objects []*unstructured.Unstructured) error {
	for _, om := range objects {
		objMetadata := object.UnstructuredToObjMetadata(om)
		gv, err := schema.ParseGroupVersion(om.GetAPIVersion())
		if err != nil {
			return err
		}
		r.Entries = append(r.Entries, Entry{
			Subject: objMetadata.String(),
			Version: gv.Version,
		})
	}

	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].Subject < r.Entries[j].Subject
	})

	return nil
}

// ListObjects restores the recorded references as unstructured
// objects suitable for delete and wait calls.
func (r *Release) ListObjects() ([]*unstructured.Unstructured, error) {
	objects := make([]*unstructured.Unstructured, 0, len(r.Entries))

	for _, entry := range r.Entries {
		objMetadata, err := object.ParseObjMetadata(entry.Subject)
		if err != nil {
			return nil, err
		}

		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(schema.GroupVersionKind{
			Group:   objMetadata.GroupKind.Group,
			Kind:    objMetadata.GroupKind.Kind,
			Version: entry.Version,
		})
		u.SetName(objMetadata.Name)
		u.SetNamespace(objMetadata.Namespace)
		objects = append(objects, u)
	}

	return objects, nil
}

// ListMeta returns the recorded references as object metadata.
func (r *Release) ListMeta() ([]object.ObjMetadata, error) {
	var metas []object.ObjMetadata
	for _, entry := range r.Entries {
		m, err := object.ParseObjMetadata(entry.Subject)
		if err != nil {
			return metas, err
		}
		metas = append(metas, m)
	}

	return metas, nil
}

// Diff returns the objects recorded here that are absent from the
// target release, the candidates for pruning.
func (r *Release) Diff(target *Release) ([]*unstructured.Unstructured, error) {
	objects := make([]*unstructured.Unstructured, 0)

	aList, err := r.ListMeta()
	if err != nil {
		return nil, err
	}

	bList, err := target.ListMeta()
	if err != nil {
		return nil, err
	}

	versions := map[string]string{}
	for _, entry := range r.Entries {
		versions[entry.Subject] = entry.Version
	}

	for _, metadata := range object.ObjMetadataSet(aList).Diff(object.ObjMetadataSet(bList)) {
		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(schema.GroupVersionKind{
			Group:   metadata.GroupKind.Group,
			Kind:    metadata.GroupKind.Kind,
			Version: versions[metadata.String()],
		})
		u.SetName(metadata.Name)
		u.SetNamespace(metadata.Namespace)
		objects = append(objects, u)
	}

	return objects, nil
}
