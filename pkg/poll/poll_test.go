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

package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestUntilShortCircuits(t *testing.T) {
	g := NewWithT(t)

	calls := 0
	err := New(30, time.Millisecond).Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 5, nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(calls).To(Equal(5))
}

func TestUntilExhaustsBudget(t *testing.T) {
	g := NewWithT(t)

	calls := 0
	err := New(4, time.Millisecond).Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, ErrPending)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("4 attempts"))
	g.Expect(calls).To(Equal(4))
}

func TestUntilSingleAttempt(t *testing.T) {
	g := NewWithT(t)

	calls := 0
	err := New(1, time.Minute).Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	g.Expect(errors.Is(err, ErrPending)).To(BeTrue())
	g.Expect(calls).To(Equal(1))
}

func TestUntilPropagatesConditionError(t *testing.T) {
	g := NewWithT(t)

	calls := 0
	boom := fmt.Errorf("status query failed")
	err := New(10, time.Millisecond).Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, boom
		}
		return false, nil
	})

	g.Expect(err).To(MatchError(boom))
	g.Expect(errors.Is(err, ErrPending)).To(BeFalse())
	g.Expect(calls).To(Equal(2))
}

func TestUntilHonorsContext(t *testing.T) {
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := New(30, time.Minute).Until(ctx, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})

	g.Expect(err).To(MatchError(context.Canceled))
	g.Expect(calls).To(Equal(1))
}
