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
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"gorm.io/gorm/clause"
)

// GetCheckpointsBySubject retrieves a subject's full checkpoint series in
// ascending height order.
func (d *MetadataStoreSqlite) GetCheckpointsBySubject(
	subject []byte,
	txn types.Txn,
) ([]models.Checkpoint, error) {
	var checkpoints []models.Checkpoint
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"subject = ?",
		subject,
	).Order("height ASC").Find(&checkpoints); result.Error != nil {
		return nil, result.Error
	}
	return checkpoints, nil
}

// GetCheckpointSubjects retrieves the distinct subjects with at least one
// checkpoint.
func (d *MetadataStoreSqlite) GetCheckpointSubjects(
	txn types.Txn,
) ([][]byte, error) {
	var subjects [][]byte
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Model(&models.Checkpoint{}).
		Distinct("subject").
		Pluck("subject", &subjects); result.Error != nil {
		return nil, result.Error
	}
	return subjects, nil
}

// SetCheckpoint creates or updates a weight checkpoint. A write at an
// existing (subject, height) overwrites the value in place.
func (d *MetadataStoreSqlite) SetCheckpoint(
	checkpoint *models.Checkpoint,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subject"},
			{Name: "height"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}
	if result := db.Clauses(onConflict).Create(checkpoint); result.Error != nil {
		return result.Error
	}
	return nil
}
