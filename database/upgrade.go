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

package database

import (
	"fmt"

	"github.com/gavelhq/gavel/database/models"
)

// GetPendingUpgrade returns the live pending upgrade for a resource
func (d *Database) GetPendingUpgrade(
	resource []byte,
	txn *Txn,
) (*models.PendingUpgrade, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	upgrade, err := d.metadata.GetPendingUpgrade(resource, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get pending upgrade: %w", err)
	}
	if upgrade == nil {
		return nil, models.ErrPendingUpgradeNotFound
	}
	return upgrade, nil
}

// GetPendingUpgrades returns all live pending upgrades ordered by readiness
func (d *Database) GetPendingUpgrades(
	txn *Txn,
) ([]models.PendingUpgrade, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	upgrades, err := d.metadata.GetPendingUpgrades(txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get pending upgrades: %w", err)
	}
	return upgrades, nil
}

// SetPendingUpgrade saves a pending upgrade. The unique index on resource
// rejects a second live upgrade for the same resource.
func (d *Database) SetPendingUpgrade(
	upgrade models.PendingUpgrade,
	txn *Txn,
) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.SetPendingUpgrade(&upgrade, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set pending upgrade: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// DeletePendingUpgrade removes the pending upgrade for a resource. Deleting
// a resource with no pending upgrade is a no-op.
func (d *Database) DeletePendingUpgrade(resource []byte, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.DeletePendingUpgrade(
		resource,
		txn.Metadata(),
	); err != nil {
		return fmt.Errorf("failed to delete pending upgrade: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}
