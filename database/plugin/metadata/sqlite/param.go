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

// GetGovernanceParam retrieves a governance parameter by name.
func (d *MetadataStoreSqlite) GetGovernanceParam(
	name string,
	txn types.Txn,
) (*models.GovernanceParam, error) {
	var param models.GovernanceParam
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"name = ?",
		name,
	).First(&param); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &param, nil
}

// SetGovernanceParam creates or updates a governance parameter.
func (d *MetadataStoreSqlite) SetGovernanceParam(
	param *models.GovernanceParam,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "name"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"updated_by",
			"updated_height",
		}),
	}
	if result := db.Clauses(onConflict).Create(param); result.Error != nil {
		return result.Error
	}
	return nil
}
