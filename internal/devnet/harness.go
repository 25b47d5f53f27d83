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

//go:build devnet

// Package devnet provides a test harness for running governance scenario
// tests against a full engine in dev mode, where the tip advances on a
// local timer and wall-clock time stands in for ledger height.
package devnet

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/gavelhq/gavel"
	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/event"
	"github.com/gavelhq/gavel/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// DefaultTickInterval is how often the harness engine advances the tip.
// At 5ms per height, a 200-height voting window spans about one second of
// wall-clock time.
const DefaultTickInterval = 5 * time.Millisecond

// RecordingExecutor captures proposal calls released by the timelock so
// scenarios can assert on what was dispatched.
type RecordingExecutor struct {
	mu    sync.Mutex
	calls []core.Call
}

func (e *RecordingExecutor) ExecuteCall(call core.Call) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return nil
}

// Calls returns a copy of the dispatched calls in dispatch order
func (e *RecordingExecutor) Calls() []core.Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// UpgradeSwap is one recorded implementation swap
type UpgradeSwap struct {
	Resource          core.Address
	NewImplementation core.Address
	InitPayload       []byte
}

// RecordingUpgradeExecutor captures implementation swaps performed by the
// timelock upgrade gate.
type RecordingUpgradeExecutor struct {
	mu    sync.Mutex
	swaps []UpgradeSwap
}

func (e *RecordingUpgradeExecutor) ExecuteUpgrade(
	resource core.Address,
	newImplementation core.Address,
	initPayload []byte,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.swaps = append(e.swaps, UpgradeSwap{
		Resource:          resource,
		NewImplementation: newImplementation,
		InitPayload:       initPayload,
	})
	return nil
}

// Swaps returns a copy of the recorded swaps in dispatch order
func (e *RecordingUpgradeExecutor) Swaps() []UpgradeSwap {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]UpgradeSwap, len(e.swaps))
	copy(out, e.swaps)
	return out
}

// Harness runs a dev-mode engine for the lifetime of a test. The engine is
// stopped and verified clean via t.Cleanup.
type Harness struct {
	t               *testing.T
	engine          *gavel.Engine
	Executor        *RecordingExecutor
	UpgradeExecutor *RecordingUpgradeExecutor
	runErr          chan error
}

// NewHarness boots an engine in dev mode with recording executors and
// in-memory storage. Extra options are applied after the harness defaults,
// so scenarios can override windows, quorum, and delays.
func NewHarness(t *testing.T, opts ...gavel.ConfigOptionFunc) *Harness {
	t.Helper()
	h := &Harness{
		t:               t,
		Executor:        &RecordingExecutor{},
		UpgradeExecutor: &RecordingUpgradeExecutor{},
		runErr:          make(chan error, 1),
	}
	baseOpts := []gavel.ConfigOptionFunc{
		gavel.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		gavel.WithPrometheusRegistry(prometheus.NewRegistry()),
		gavel.WithRunMode("dev"),
		gavel.WithDevTickInterval(DefaultTickInterval),
		gavel.WithCallExecutor(h.Executor),
		gavel.WithUpgradeExecutor(h.UpgradeExecutor),
	}
	engine, err := gavel.New(gavel.NewConfig(append(baseOpts, opts...)...))
	require.NoError(t, err)
	h.engine = engine

	// Receiving the first dev tick doubles as the startup barrier
	_, tipCh := engine.EventBus().Subscribe(event.TipAdvancedEventType)
	go func() {
		h.runErr <- engine.Run()
	}()
	testutil.RequireReceive(t, tipCh, 30*time.Second, "first dev tip advance")

	t.Cleanup(func() {
		require.NoError(t, engine.Stop())
		err := testutil.RequireReceive(
			t,
			h.runErr,
			30*time.Second,
			"engine shutdown",
		)
		require.NoError(t, err)
	})
	return h
}

// Engine returns the running engine
func (h *Harness) Engine() *gavel.Engine {
	return h.engine
}

// Height returns the engine's current tip height
func (h *Harness) Height() uint64 {
	h.t.Helper()
	tip, err := h.engine.Tip()
	require.NoError(h.t, err)
	return tip.Height
}

// WaitForHeight blocks until the dev ticker carries the tip to or past the
// target height
func (h *Harness) WaitForHeight(target uint64, timeout time.Duration) {
	h.t.Helper()
	testutil.WaitForCondition(
		h.t,
		func() bool {
			return h.Height() >= target
		},
		timeout,
		fmt.Sprintf("tip did not reach height %d", target),
	)
}

// SeedWeight records a voting weight for a subject at the current height.
// Seeds are visible to any snapshot taken at a later height.
func (h *Harness) SeedWeight(subject core.Address, weight int64) {
	h.t.Helper()
	require.NoError(
		h.t,
		h.engine.Ledger().Record(subject, big.NewInt(weight), h.Height()),
	)
}

// Subscribe returns a receive channel for engine events of the given type
func (h *Harness) Subscribe(eventType event.EventType) <-chan event.Event {
	_, ch := h.engine.EventBus().Subscribe(eventType)
	return ch
}

// AwaitEvent waits for the next event on a subscription channel
func (h *Harness) AwaitEvent(
	ch <-chan event.Event,
	timeout time.Duration,
	msg string,
) event.Event {
	h.t.Helper()
	return testutil.RequireReceive(h.t, ch, timeout, msg)
}
