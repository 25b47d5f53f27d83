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

package sqlite

import (
	"errors"

	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"gorm.io/gorm"
)

// GetPendingUpgrade retrieves the live pending upgrade for a resource.
func (d *MetadataStoreSqlite) GetPendingUpgrade(
	resource []byte,
	txn types.Txn,
) (*models.PendingUpgrade, error) {
	var upgrade models.PendingUpgrade
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"resource = ?",
		resource,
	).First(&upgrade); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &upgrade, nil
}

// GetPendingUpgrades retrieves all live pending upgrades ordered by
// readiness.
func (d *MetadataStoreSqlite) GetPendingUpgrades(
	txn types.Txn,
) ([]models.PendingUpgrade, error) {
	var upgrades []models.PendingUpgrade
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Order(
		"ready_height ASC, id ASC",
	).Find(&upgrades); result.Error != nil {
		return nil, result.Error
	}
	return upgrades, nil
}

// SetPendingUpgrade records a scheduled upgrade. The unique index on
// resource backstops the one-live-upgrade check done by callers.
func (d *MetadataStoreSqlite) SetPendingUpgrade(
	upgrade *models.PendingUpgrade,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(upgrade); result.Error != nil {
		return result.Error
	}
	return nil
}

// DeletePendingUpgrade removes a resource's pending upgrade. Deleting a
// resource with no pending upgrade is not an error.
func (d *MetadataStoreSqlite) DeletePendingUpgrade(
	resource []byte,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Where(
		"resource = ?",
		resource,
	).Delete(&models.PendingUpgrade{}); result.Error != nil {
		return result.Error
	}
	return nil
}
