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
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
)

// Push packages the steps as an OCI artifact and uploads it to the
// container registry. The checksum, step index and creation time are
// recorded as image annotations. When recipients are given, each step
// manifest is encrypted with age before packaging.
func Push(ctx context.Context, url string, steps []Step, meta *Metadata, recipients []age.Recipient) (string, error) {
	ref, err := name.ParseReference(url)
	if err != nil {
		return "", fmt.Errorf("parsing reference failed: %w", err)
	}

	if len(steps) == 0 {
		return "", fmt.Errorf("nothing to push, the bundle has no steps")
	}

	tmpDir, err := os.MkdirTemp("", "oci")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	meta.Checksum = Checksum(steps)
	meta.Steps = stepNames(steps)
	if meta.Created == "" {
		meta.Created = time.Now().UTC().Format(time.RFC3339)
	}

	files := make([]file, len(steps))
	for i, step := range steps {
		data := step.Manifest
		if len(recipients) > 0 {
			encData, err := encrypt(data, recipients)
			if err != nil {
				return "", fmt.Errorf("failed to encrypt step '%s' with age: %w", step.Name, err)
			}
			data = encData
		}
		files[i] = file{name: stepFileName(i, step.Name, len(recipients) > 0), data: data}
	}

	if len(recipients) > 0 {
		meta.Encrypted = AgeEncryptionVersion
	}

	tarPath := filepath.Join(tmpDir, "bundle.tar")
	if err := tarFiles(tarPath, files); err != nil {
		return "", err
	}

	img, err := crane.Append(empty.Image, tarPath)
	if err != nil {
		return "", fmt.Errorf("appending content failed: %w", err)
	}

	img = mutate.Annotations(img, meta.ToAnnotations()).(gcrv1.Image)

	if err := crane.Push(img, url, craneOptions(ctx)...); err != nil {
		return "", fmt.Errorf("pushing image failed: %w", err)
	}

	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("parsing digest failed: %w", err)
	}

	return ref.Context().Digest(digest.String()).String(), nil
}
