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
	"gorm.io/gorm"
)

// sqliteTxn wraps a gorm transaction and implements types.Txn
type sqliteTxn struct {
	db       *gorm.DB
	finished bool
	beginErr error
}

func newSqliteTxn(db *gorm.DB) *sqliteTxn {
	return &sqliteTxn{db: db}
}

func (t *sqliteTxn) Commit() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if t.db == nil {
		t.finished = true
		return nil
	}
	if result := t.db.Commit(); result.Error != nil {
		return result.Error
	}
	t.finished = true
	return nil
}

func (t *sqliteTxn) Rollback() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if t.db != nil {
		if result := t.db.Rollback(); result.Error != nil {
			return result.Error
		}
	}
	t.finished = true
	return nil
}

// Transaction begins a new database transaction
func (d *MetadataStoreSqlite) Transaction() types.Txn {
	tx := d.DB().Begin()
	if tx.Error != nil {
		return &sqliteTxn{beginErr: tx.Error}
	}
	return newSqliteTxn(tx)
}

// resolveDB returns the *gorm.DB for the given transaction, or d.DB() if txn is nil.
// Returns nil, ErrTxnWrongType if txn is non-nil but not the expected type.
func (d *MetadataStoreSqlite) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return d.DB(), nil
	}
	stx, ok := txn.(*sqliteTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if stx.beginErr != nil {
		return nil, stx.beginErr
	}
	if stx.db == nil {
		return nil, types.ErrTxnWrongType
	}
	return stx.db, nil
}
