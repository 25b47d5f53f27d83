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

// Package timelock implements the delayed execution gate. Operations are
// content-addressed call batches that become executable once their delay
// has elapsed and execute at most once; the upgrade sub-ledger adds an
// expiring execution window per controlled resource.
package timelock

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default delays and windows in heights, assuming a 12 second height
// interval. The standard minimum must stay above the emergency minimum,
// which must stay above zero.
const (
	DefaultMinDelay               = 7200
	DefaultEmergencyMinDelay      = 50
	DefaultUpgradeDelay           = 14400
	DefaultEmergencyUpgradeDelay  = 50
	DefaultUpgradeExecutionWindow = 14400
)

// ErrUnknownOperation is returned when an operation ID has never been
// scheduled
var ErrUnknownOperation = core.NewStateViolation(
	"unknown timelock operation",
)

// ErrOperationExists is returned when scheduling an operation that is
// already scheduled or already done
var ErrOperationExists = core.NewStateViolation(
	"timelock operation already scheduled",
)

// ErrAlreadyExecuted is returned when executing an operation that is done.
// It is distinct from ErrUnknownOperation so callers can tell a lost race
// from a genuine mistake.
var ErrAlreadyExecuted = core.NewStateViolation(
	"timelock operation already executed",
)

// ErrPredecessorNotDone is returned when executing an operation whose
// predecessor has not executed yet
var ErrPredecessorNotDone = core.NewStateViolation(
	"predecessor operation not executed",
)

// ErrNotReady is returned when executing an operation before its delay has
// elapsed
var ErrNotReady = core.NewTemporalViolation(
	"timelock delay has not elapsed",
)

// ErrDelayTooShort is returned when scheduling with a delay below the
// configured minimum
var ErrDelayTooShort = core.NewTemporalViolation(
	"delay below configured minimum",
)

// ErrUpgradePending is returned when scheduling an upgrade for a resource
// that already has a live pending upgrade
var ErrUpgradePending = core.NewStateViolation(
	"live pending upgrade exists for resource",
)

// ErrUpgradeNotReady is returned when executing an upgrade before its
// execution window opens
var ErrUpgradeNotReady = core.NewTemporalViolation(
	"upgrade execution window not open",
)

// ErrUpgradeExpired is returned when executing an upgrade after its
// execution window has closed
var ErrUpgradeExpired = core.NewTemporalViolation(
	"upgrade execution window has closed",
)

// Executor dispatches a single governance call against the embedding
// environment once its operation clears the gate
type Executor interface {
	ExecuteCall(call core.Call) error
}

// UpgradeExecutor performs the implementation swap for a controlled
// resource
type UpgradeExecutor interface {
	ExecuteUpgrade(
		resource core.Address,
		newImplementation core.Address,
		initPayload []byte,
	) error
}

// OperationState is the lifecycle state of a timelock operation
type OperationState uint8

const (
	StateUnset OperationState = iota
	StateScheduled
	StateDone
)

func (s OperationState) String() string {
	switch s {
	case StateUnset:
		return "UNSET"
	case StateScheduled:
		return "SCHEDULED"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("OperationState(%d)", uint8(s))
	}
}

type TimelockConfig struct {
	Logger          *slog.Logger
	Database        *database.Database
	EventBus        *event.EventBus
	PromRegistry    prometheus.Registerer
	Executor        Executor
	UpgradeExecutor UpgradeExecutor
	// MinDelay and EmergencyMinDelay bound the delay argument of Schedule
	MinDelay          uint64
	EmergencyMinDelay uint64
	// UpgradeDelay and EmergencyUpgradeDelay are applied by ScheduleUpgrade
	UpgradeDelay          uint64
	EmergencyUpgradeDelay uint64
	// UpgradeExecutionWindow is the number of heights after ReadyHeight
	// during which an upgrade may still execute
	UpgradeExecutionWindow uint64
}

// Timelock is the execution gate for delayed call batches and resource
// upgrades
type Timelock struct {
	config  TimelockConfig
	metrics struct {
		scheduled         prometheus.Counter
		executed          prometheus.Counter
		upgradesScheduled prometheus.Counter
		upgradesExecuted  prometheus.Counter
		upgradesExpired   prometheus.Counter
	}
	logger   *slog.Logger
	db       *database.Database
	eventBus *event.EventBus
	sync.Mutex
}

func NewTimelock(config TimelockConfig) *Timelock {
	if config.MinDelay == 0 {
		config.MinDelay = DefaultMinDelay
	}
	if config.EmergencyMinDelay == 0 {
		config.EmergencyMinDelay = DefaultEmergencyMinDelay
	}
	if config.UpgradeDelay == 0 {
		config.UpgradeDelay = DefaultUpgradeDelay
	}
	if config.EmergencyUpgradeDelay == 0 {
		config.EmergencyUpgradeDelay = DefaultEmergencyUpgradeDelay
	}
	if config.UpgradeExecutionWindow == 0 {
		config.UpgradeExecutionWindow = DefaultUpgradeExecutionWindow
	}
	t := &Timelock{
		config:   config,
		db:       config.Database,
		eventBus: config.EventBus,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		t.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		t.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	t.metrics.scheduled = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "timelock_operations_scheduled_total",
		Help: "total operations scheduled into the timelock",
	})
	t.metrics.executed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "timelock_operations_executed_total",
		Help: "total operations executed through the timelock",
	})
	t.metrics.upgradesScheduled = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "timelock_upgrades_scheduled_total",
			Help: "total resource upgrades scheduled",
		},
	)
	t.metrics.upgradesExecuted = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "timelock_upgrades_executed_total",
			Help: "total resource upgrades executed",
		},
	)
	t.metrics.upgradesExpired = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "timelock_upgrades_expired_total",
			Help: "total expired resource upgrades swept",
		},
	)
	return t
}

// Schedule places a call batch behind the gate. The operation ID is derived
// from the batch, the predecessor, and the salt; scheduling the same triple
// twice is rejected, including after execution.
func (t *Timelock) Schedule(
	calls []core.Call,
	predecessor core.Hash,
	salt core.Hash,
	delay uint64,
	emergency bool,
) (core.Hash, error) {
	operationID := core.HashOperation(calls, predecessor, salt)
	// Enforce the minimum delay
	minDelay := t.config.MinDelay
	if emergency {
		minDelay = t.config.EmergencyMinDelay
	}
	if delay < minDelay {
		return operationID, ErrDelayTooShort
	}
	t.Lock()
	defer t.Unlock()
	// Reject a duplicate operation
	_, err := t.db.GetTimelockOperation(operationID.Bytes(), nil)
	if err == nil {
		return operationID, ErrOperationExists
	}
	if !errors.Is(err, models.ErrTimelockOperationNotFound) {
		return operationID, err
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return operationID, err
	}
	operation := models.TimelockOperation{
		OperationID:     operationID.Bytes(),
		Emergency:       emergency,
		ScheduledHeight: tip.Height,
		ReadyHeight:     tip.Height + delay,
	}
	if !predecessor.IsZero() {
		operation.Predecessor = predecessor.Bytes()
	}
	if !salt.IsZero() {
		operation.Salt = salt.Bytes()
	}
	// Persist the row and the call batch blob in one transaction
	txn := t.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		if err := t.db.SetTimelockOperation(operation, txn); err != nil {
			return err
		}
		return t.db.SetOperationCalls(operationID.Bytes(), calls, txn)
	})
	if err != nil {
		return operationID, err
	}
	t.metrics.scheduled.Inc()
	t.logger.Debug(
		"scheduled operation",
		"component", "timelock",
		"operation_id", operationID.String(),
		"ready_height", operation.ReadyHeight,
		"emergency", emergency,
	)
	if t.eventBus != nil {
		t.eventBus.Publish(
			event.TimelockScheduledEventType,
			event.NewEvent(
				event.TimelockScheduledEventType,
				event.TimelockScheduledEvent{
					OperationID:     operationID.Bytes(),
					Predecessor:     operation.Predecessor,
					ScheduledHeight: operation.ScheduledHeight,
					ReadyHeight:     operation.ReadyHeight,
					Emergency:       emergency,
				},
			),
		)
	}
	return operationID, nil
}

// Execute dispatches an operation's call batch. The done marker is
// persisted before any call is dispatched, so a batch can never run twice;
// a dispatch failure leaves the operation done with the error surfaced to
// the caller.
func (t *Timelock) Execute(id core.Hash) error {
	t.Lock()
	defer t.Unlock()
	operation, err := t.db.GetTimelockOperation(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrTimelockOperationNotFound) {
			return ErrUnknownOperation
		}
		return err
	}
	if operation.DoneHeight != nil {
		return ErrAlreadyExecuted
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return err
	}
	if tip.Height < operation.ReadyHeight {
		return ErrNotReady
	}
	// A predecessor must have executed first
	if len(operation.Predecessor) > 0 {
		predecessor, err := t.db.GetTimelockOperation(
			operation.Predecessor,
			nil,
		)
		if err != nil {
			if errors.Is(err, models.ErrTimelockOperationNotFound) {
				return ErrPredecessorNotDone
			}
			return err
		}
		if predecessor.DoneHeight == nil {
			return ErrPredecessorNotDone
		}
	}
	calls, err := t.db.GetOperationCalls(id.Bytes(), nil)
	if err != nil {
		return err
	}
	// Mark done before dispatching
	doneHeight := tip.Height
	operation.DoneHeight = &doneHeight
	if err := t.db.SetTimelockOperation(*operation, nil); err != nil {
		return err
	}
	t.metrics.executed.Inc()
	t.logger.Info(
		"executed operation",
		"component", "timelock",
		"operation_id", id.String(),
		"calls", len(calls),
	)
	if t.eventBus != nil {
		t.eventBus.Publish(
			event.TimelockExecutedEventType,
			event.NewEvent(
				event.TimelockExecutedEventType,
				event.TimelockExecutedEvent{
					OperationID:    id.Bytes(),
					ExecutedHeight: doneHeight,
					CallCount:      len(calls),
				},
			),
		)
	}
	if t.config.Executor != nil {
		for callIdx, call := range calls {
			if err := t.config.Executor.ExecuteCall(call); err != nil {
				return fmt.Errorf(
					"dispatch call %d of operation %s: %w",
					callIdx,
					id.String(),
					err,
				)
			}
		}
	}
	return nil
}

// Operation returns the stored operation row, or
// models.ErrTimelockOperationNotFound for an unset ID
func (t *Timelock) Operation(
	id core.Hash,
) (*models.TimelockOperation, error) {
	return t.db.GetTimelockOperation(id.Bytes(), nil)
}

// State returns the lifecycle state of an operation ID
func (t *Timelock) State(id core.Hash) (OperationState, error) {
	operation, err := t.db.GetTimelockOperation(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrTimelockOperationNotFound) {
			return StateUnset, nil
		}
		return StateUnset, err
	}
	if operation.DoneHeight != nil {
		return StateDone, nil
	}
	return StateScheduled, nil
}

// IsReady reports whether an operation is scheduled and past its delay
func (t *Timelock) IsReady(id core.Hash) (bool, error) {
	operation, err := t.db.GetTimelockOperation(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrTimelockOperationNotFound) {
			return false, nil
		}
		return false, err
	}
	if operation.DoneHeight != nil {
		return false, nil
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return false, err
	}
	return tip.Height >= operation.ReadyHeight, nil
}
