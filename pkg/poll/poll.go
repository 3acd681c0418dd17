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
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrPending is returned by Until when the attempt budget runs out
// before the condition reports true. Callers treat it as an
// observation, not a failure.
var ErrPending = errors.New("condition pending")

// Condition reports whether the polled state has been reached.
// Returning an error aborts the poll immediately.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates a condition at a fixed interval with a bounded
// number of attempts. The budget caps evaluations, not elapsed time:
// a condition that turns true on attempt k is evaluated exactly k times.
type Poll struct {
	// Attempts is the maximum number of condition evaluations.
	Attempts int

	// Interval is the pause between two evaluations.
	Interval time.Duration
}

func New(attempts int, interval time.Duration) Poll {
	return Poll{Attempts: attempts, Interval: interval}
}

// Until evaluates the condition until it reports true, errors out,
// the attempt budget is exhausted or the context is cancelled.
// The first evaluation runs immediately, the interval applies only
// between evaluations. Exhaustion returns an error wrapping ErrPending.
func (p Poll) Until(ctx context.Context, condition Condition) error {
	backoff := wait.Backoff{
		Duration: p.Interval,
		Factor:   1.0,
		Steps:    p.Attempts,
	}

	err := wait.ExponentialBackoffWithContext(ctx, backoff, func() (bool, error) {
		return condition(ctx)
	})
	if err != nil {
		if errors.Is(err, wait.ErrWaitTimeout) {
			return fmt.Errorf("%w after %d attempts", ErrPending, p.Attempts)
		}
		return err
	}

	return nil
}
