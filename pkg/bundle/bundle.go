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

// Package bundle packages the rendered manifests of a release as an OCI
// artifact. Each deployment step becomes one file inside the artifact's
// layer, named after its position so that pulling a bundle restores the
// original apply order.
package bundle

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Step holds the multi-doc YAML of a single deployment step.
type Step struct {
	Name     string
	Manifest []byte
}

// Checksum returns the hex encoded SHA256 of the step manifests,
// hashed in apply order.
func Checksum(steps []Step) string {
	h := sha256.New()
	for _, step := range steps {
		h.Write(step.Manifest)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Name
	}
	return names
}

func stepFileName(index int, name string, encrypted bool) string {
	fileName := fmt.Sprintf("%03d-%s.yaml", index, name)
	if encrypted {
		fileName += ".age"
	}
	return fileName
}

func parseStepFileName(fileName string) (string, error) {
	name := strings.TrimSuffix(fileName, ".age")
	name = strings.TrimSuffix(name, ".yaml")
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("'%s' is not a bundle step file", fileName)
	}
	return parts[1], nil
}
