// Copyright 2025 Gavel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testutil provides deterministic synchronization helpers for tests
// that wait on engine activity, replacing ad-hoc time.Sleep patterns.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Polling interval for condition checks. Tight enough to keep dev-mode
// scenario tests fast without spinning
const pollInterval = 10 * time.Millisecond

// WaitForCondition polls the given condition function until it returns true
// or the timeout expires
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(t, condition, timeout, pollInterval, msg)
}

// RequireReceive returns the next value from the channel, failing the test
// if none arrives before the timeout
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("timeout waiting for channel receive: %s", msg)
	}
	var zero T
	return zero
}

// RequireNoReceive fails the test if the channel yields a value within the
// given duration. Use it for events that must not have been published, not
// for racing against ones that merely have not been published yet.
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	duration time.Duration,
	msg string,
) {
	t.Helper()
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value received on channel: %v: %s", v, msg)
	case <-timer.C:
	}
}
