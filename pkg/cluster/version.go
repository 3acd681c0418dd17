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

package cluster

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// checkVersion gates a tool on a minimum version so provisioning
// fails before any mutation instead of halfway through.
func checkVersion(tool, version, minimum string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s version '%s' can't be parsed: %w", tool, version, err)
	}

	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return err
	}

	if !constraint.Check(v) {
		return fmt.Errorf("%s %s is older than the minimum supported version %s", tool, version, minimum)
	}

	return nil
}
