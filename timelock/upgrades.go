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

package timelock

import (
	"errors"
	"fmt"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/event"
)

// ScheduleUpgrade registers an implementation swap for a resource. A live
// pending upgrade blocks a second schedule; an expired one is swept first
// so the slot can be reused without a separate cleanup call.
func (t *Timelock) ScheduleUpgrade(
	resource core.Address,
	newImplementation core.Address,
	initPayload []byte,
	emergency bool,
) error {
	t.Lock()
	defer t.Unlock()
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return err
	}
	existing, err := t.db.GetPendingUpgrade(resource.Bytes(), nil)
	if err != nil && !errors.Is(err, models.ErrPendingUpgradeNotFound) {
		return err
	}
	if existing != nil {
		if !t.upgradeExpired(existing, tip.Height) {
			return ErrUpgradePending
		}
		if err := t.sweepExpiredUpgrade(existing, tip.Height); err != nil {
			return err
		}
	}
	delay := t.config.UpgradeDelay
	if emergency {
		delay = t.config.EmergencyUpgradeDelay
	}
	upgrade := models.PendingUpgrade{
		Resource:          resource.Bytes(),
		NewImplementation: newImplementation.Bytes(),
		InitPayload:       initPayload,
		Emergency:         emergency,
		ScheduledHeight:   tip.Height,
		ReadyHeight:       tip.Height + delay,
	}
	if err := t.db.SetPendingUpgrade(upgrade, nil); err != nil {
		return err
	}
	t.metrics.upgradesScheduled.Inc()
	t.logger.Info(
		"scheduled upgrade",
		"component", "timelock",
		"resource", resource.String(),
		"new_implementation", newImplementation.String(),
		"ready_height", upgrade.ReadyHeight,
		"emergency", emergency,
	)
	if t.eventBus != nil {
		t.eventBus.Publish(
			event.UpgradeScheduledEventType,
			event.NewEvent(
				event.UpgradeScheduledEventType,
				event.UpgradeScheduledEvent{
					Resource:          resource.Bytes(),
					NewImplementation: newImplementation.Bytes(),
					ScheduledHeight:   upgrade.ScheduledHeight,
					ReadyHeight:       upgrade.ReadyHeight,
					Emergency:         emergency,
				},
			),
		)
	}
	return nil
}

// IsUpgradeReady reports whether a resource's pending upgrade is inside
// its execution window. A resource with no pending upgrade is not ready.
func (t *Timelock) IsUpgradeReady(resource core.Address) (bool, error) {
	upgrade, err := t.db.GetPendingUpgrade(resource.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrPendingUpgradeNotFound) {
			return false, nil
		}
		return false, err
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return false, err
	}
	return upgrade.ReadyHeight <= tip.Height &&
		tip.Height <= t.UpgradeDeadline(upgrade), nil
}

// PendingUpgrade returns the live pending upgrade row for a resource, or
// models.ErrPendingUpgradeNotFound
func (t *Timelock) PendingUpgrade(
	resource core.Address,
) (*models.PendingUpgrade, error) {
	return t.db.GetPendingUpgrade(resource.Bytes(), nil)
}

// ExecuteUpgrade performs the implementation swap for a resource inside
// its execution window, then clears the pending record. A failed dispatch
// leaves the record live so the swap can be retried within the window.
func (t *Timelock) ExecuteUpgrade(resource core.Address) error {
	t.Lock()
	defer t.Unlock()
	upgrade, err := t.db.GetPendingUpgrade(resource.Bytes(), nil)
	if err != nil {
		return err
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return err
	}
	if tip.Height < upgrade.ReadyHeight {
		return ErrUpgradeNotReady
	}
	if tip.Height > t.UpgradeDeadline(upgrade) {
		return ErrUpgradeExpired
	}
	var newImplementation core.Address
	copy(newImplementation[:], upgrade.NewImplementation)
	if t.config.UpgradeExecutor != nil {
		if err := t.config.UpgradeExecutor.ExecuteUpgrade(
			resource,
			newImplementation,
			upgrade.InitPayload,
		); err != nil {
			return fmt.Errorf(
				"dispatch upgrade for %s: %w",
				resource.String(),
				err,
			)
		}
	}
	if err := t.db.DeletePendingUpgrade(resource.Bytes(), nil); err != nil {
		return err
	}
	t.metrics.upgradesExecuted.Inc()
	t.logger.Info(
		"executed upgrade",
		"component", "timelock",
		"resource", resource.String(),
		"new_implementation", newImplementation.String(),
	)
	if t.eventBus != nil {
		t.eventBus.Publish(
			event.UpgradeExecutedEventType,
			event.NewEvent(
				event.UpgradeExecutedEventType,
				event.UpgradeExecutedEvent{
					Resource:          resource.Bytes(),
					NewImplementation: newImplementation[:],
					ExecutedHeight:    tip.Height,
				},
			),
		)
	}
	return nil
}

// CleanupExpiredUpgrade sweeps a resource's pending upgrade once its
// execution window has closed. It reports true exactly once per expired
// upgrade; a clean slot or a still-live upgrade is an idempotent no-op.
func (t *Timelock) CleanupExpiredUpgrade(
	resource core.Address,
) (bool, error) {
	t.Lock()
	defer t.Unlock()
	upgrade, err := t.db.GetPendingUpgrade(resource.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrPendingUpgradeNotFound) {
			return false, nil
		}
		return false, err
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return false, err
	}
	if !t.upgradeExpired(upgrade, tip.Height) {
		return false, nil
	}
	if err := t.sweepExpiredUpgrade(upgrade, tip.Height); err != nil {
		return false, err
	}
	return true, nil
}

// SweepExpiredUpgrades runs CleanupExpiredUpgrade across every pending
// upgrade and returns the number swept. The maintenance scheduler calls
// this periodically so stale rows cannot linger unless someone asks for
// the slot.
func (t *Timelock) SweepExpiredUpgrades() (int, error) {
	t.Lock()
	defer t.Unlock()
	upgrades, err := t.db.GetPendingUpgrades(nil)
	if err != nil {
		return 0, err
	}
	tip, err := t.db.GetTip(nil)
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range upgrades {
		upgrade := &upgrades[i]
		if !t.upgradeExpired(upgrade, tip.Height) {
			continue
		}
		if err := t.sweepExpiredUpgrade(upgrade, tip.Height); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// UpgradeDeadline returns the last height at which a pending upgrade may
// still execute
func (t *Timelock) UpgradeDeadline(upgrade *models.PendingUpgrade) uint64 {
	return upgrade.ReadyHeight + t.config.UpgradeExecutionWindow
}

func (t *Timelock) upgradeExpired(
	upgrade *models.PendingUpgrade,
	height uint64,
) bool {
	return height > t.UpgradeDeadline(upgrade)
}

// sweepExpiredUpgrade clears an expired row and emits the audit event.
// Callers hold the timelock mutex and have already checked expiry.
func (t *Timelock) sweepExpiredUpgrade(
	upgrade *models.PendingUpgrade,
	height uint64,
) error {
	if err := t.db.DeletePendingUpgrade(upgrade.Resource, nil); err != nil {
		return err
	}
	t.metrics.upgradesExpired.Inc()
	t.logger.Info(
		"swept expired upgrade",
		"component", "timelock",
		"resource", fmt.Sprintf("0x%x", upgrade.Resource),
		"ready_height", upgrade.ReadyHeight,
	)
	if t.eventBus != nil {
		t.eventBus.Publish(
			event.UpgradeExpiredEventType,
			event.NewEvent(
				event.UpgradeExpiredEventType,
				event.UpgradeExpiredEvent{
					Resource:      upgrade.Resource,
					ReadyHeight:   upgrade.ReadyHeight,
					CleanedHeight: height,
				},
			),
		)
	}
	return nil
}
