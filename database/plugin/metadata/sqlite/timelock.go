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
	"gorm.io/gorm/clause"
)

// GetTimelockOperation retrieves a timelock operation by its hash.
func (d *MetadataStoreSqlite) GetTimelockOperation(
	operationID []byte,
	txn types.Txn,
) (*models.TimelockOperation, error) {
	var op models.TimelockOperation
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"operation_id = ?",
		operationID,
	).First(&op); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &op, nil
}

// SetTimelockOperation creates or updates a timelock operation.
func (d *MetadataStoreSqlite) SetTimelockOperation(
	op *models.TimelockOperation,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "operation_id"},
		},
		// The schedule is immutable once recorded; only the done marker
		// transitions.
		DoUpdates: clause.AssignmentColumns([]string{"done_height"}),
	}
	if result := db.Clauses(onConflict).Create(op); result.Error != nil {
		return result.Error
	}
	return nil
}
