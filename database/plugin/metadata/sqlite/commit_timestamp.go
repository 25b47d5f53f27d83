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
	"github.com/gavelhq/gavel/database/types"
	"gorm.io/gorm/clause"
)

// CommitTimestamp is a single-row table holding the timestamp stamped into
// the latest combined commit. Comparing it against the blob store's copy at
// startup detects a commit torn between the two stores.
type CommitTimestamp struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (CommitTimestamp) TableName() string {
	return "commit_timestamp"
}

// GetCommitTimestamp returns the stored commit timestamp, or zero when the
// store has never committed
func (d *MetadataStoreSqlite) GetCommitTimestamp() (int64, error) {
	var rows []CommitTimestamp
	result := d.DB().Limit(1).Find(&rows)
	if result.Error != nil {
		return 0, result.Error
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Timestamp, nil
}

// SetCommitTimestamp upserts the commit timestamp row within a transaction
func (d *MetadataStoreSqlite) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	row := CommitTimestamp{
		// Fixed row id, the table never grows past one row
		ID:        1,
		Timestamp: timestamp,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&row)
	return result.Error
}
