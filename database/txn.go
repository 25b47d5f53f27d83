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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gavelhq/gavel/database/types"
)

// Txn spans the metadata and blob stores in a single logical transaction.
// Commit order is blob first: metadata rows reference payloads by content
// hash, so an interrupted commit can orphan a payload but never leave a
// row pointing at one that does not exist.
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	mu          sync.Mutex
	done        bool
	readWrite   bool
}

func newTxn(db *Database, readWrite, withBlob, withMetadata bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if withBlob {
		if bs := db.Blob(); bs != nil {
			t.blobTxn = bs.NewTransaction(readWrite)
		}
	}
	if withMetadata {
		if ms := db.Metadata(); ms != nil {
			t.metadataTxn = ms.Transaction()
			if t.metadataTxn == nil {
				db.logger.Warn(
					"metadata store handed back a nil transaction",
				)
			}
		}
	}
	return t
}

// NewTxn opens a transaction across both stores
func NewTxn(db *Database, readWrite bool) *Txn {
	return newTxn(db, readWrite, true, true)
}

// NewBlobOnlyTxn opens a transaction against the blob store alone
func NewBlobOnlyTxn(db *Database, readWrite bool) *Txn {
	return newTxn(db, readWrite, true, false)
}

// NewMetadataOnlyTxn opens a transaction against the metadata store alone
func NewMetadataOnlyTxn(db *Database, readWrite bool) *Txn {
	return newTxn(db, readWrite, false, true)
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// Do runs fn inside the transaction, committing on nil and rolling back on
// error
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf(
				"rollback: %w (while handling: %w)",
				rbErr,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	if !t.readWrite {
		// Nothing to write; just free the handles
		return t.rollbackLocked()
	}
	if t.blobTxn == nil && t.metadataTxn == nil {
		t.done = true
		return types.ErrNoStoreAvailable
	}
	return t.commitLocked()
}

func (t *Txn) commitLocked() error {
	// When both stores participate, stamp a shared commit timestamp so a
	// torn commit is detectable at startup
	if t.blobTxn != nil && t.metadataTxn != nil {
		stamp := time.Now().UnixMilli()
		if err := t.db.updateCommitTimestamp(t, stamp); err != nil {
			_ = t.blobTxn.Rollback()
			_ = t.metadataTxn.Rollback()
			t.done = true
			return fmt.Errorf("stamp commit timestamp: %w", err)
		}
	}
	if t.blobTxn != nil {
		if err := t.blobTxn.Commit(); err != nil {
			if t.metadataTxn != nil {
				_ = t.metadataTxn.Rollback()
			}
			t.done = true
			return fmt.Errorf("blob store commit: %w", err)
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Commit(); err != nil {
			t.db.logger.Error(
				"torn commit: metadata store failed after blob committed",
				"error", err,
			)
			_ = t.metadataTxn.Rollback()
			t.done = true
			return fmt.Errorf(
				"torn commit: metadata store failed after blob committed: %w",
				err,
			)
		}
	}
	t.done = true
	return nil
}

func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackLocked()
}

func (t *Txn) rollbackLocked() error {
	if t.done {
		return nil
	}
	var errs []error
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob store rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata store rollback: %w", err))
		}
	}
	t.done = true
	return errors.Join(errs...)
}

// Release frees the transaction's resources without surfacing an error,
// which makes it suitable for defer. For read-write transactions it is a
// rollback.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"rollback during release returned error",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
