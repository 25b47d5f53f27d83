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

// GetTip retrieves the current ledger tip. A store with no tip row yet
// reports height zero.
func (d *MetadataStoreSqlite) GetTip(txn types.Txn) (models.Tip, error) {
	var tip models.Tip
	db, err := d.resolveDB(txn)
	if err != nil {
		return tip, err
	}
	if result := db.First(&tip, models.TipEntryID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Tip{}, nil
		}
		return models.Tip{}, result.Error
	}
	return tip, nil
}

// SetTip stores the current ledger tip.
func (d *MetadataStoreSqlite) SetTip(
	tip models.Tip,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	tip.ID = models.TipEntryID
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"height"}),
	}
	if result := db.Clauses(onConflict).Create(&tip); result.Error != nil {
		return result.Error
	}
	return nil
}
