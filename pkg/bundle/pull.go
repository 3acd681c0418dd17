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

package bundle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// Pull downloads the artifact from the container registry and restores
// the deployment steps in their original apply order. The content is
// verified against the checksum annotation, after decryption when the
// bundle was pushed encrypted.
func Pull(ctx context.Context, url string, identities []age.Identity) ([]Step, *Metadata, error) {
	ref, err := name.ParseReference(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing reference failed: %w", err)
	}

	img, err := crane.Pull(url, craneOptions(ctx)...)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, nil, err
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing digest failed: %w", err)
	}

	meta, err := GetMetadata(manifest.Annotations)
	if err != nil {
		return nil, nil, err
	}
	meta.Digest = ref.Context().Digest(digest.String()).String()

	if meta.Encrypted != "" && len(identities) < 1 {
		return nil, meta, fmt.Errorf("encrypted bundle, you need to supply a private key for decryption")
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, nil, err
	}

	if len(layers) < 1 {
		return nil, nil, fmt.Errorf("no layers found in image")
	}

	blob, err := layers[0].Uncompressed()
	if err != nil {
		return nil, nil, err
	}

	files, err := untarFiles(blob)
	if err != nil {
		return nil, nil, err
	}

	// the index prefix in the file names encodes the apply order
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	steps := make([]Step, 0, len(files))
	for _, f := range files {
		stepName, err := parseStepFileName(f.name)
		if err != nil {
			return nil, nil, err
		}

		data := f.data
		if meta.Encrypted == AgeEncryptionVersion && strings.HasSuffix(f.name, ".age") {
			plainData, err := decrypt(data, identities)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to decrypt step '%s': %w", stepName, err)
			}
			data = plainData
		}

		steps = append(steps, Step{Name: stepName, Manifest: data})
	}

	if meta.Checksum != Checksum(steps) {
		return nil, nil, fmt.Errorf("checksum mismatch")
	}

	return steps, meta, nil
}
