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

// GetTip returns the highest block height observed so far. A fresh
// database reports a zero tip.
func (d *Database) GetTip(txn *Txn) (models.Tip, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	tip, err := d.metadata.GetTip(txn.Metadata())
	if err != nil {
		return models.Tip{}, fmt.Errorf("failed to get tip: %w", err)
	}
	return tip, nil
}

// SetTip records the observed block height. Monotonicity is the engine's
// concern, not the store's; recovery may legitimately rewrite the same
// height.
func (d *Database) SetTip(tip models.Tip, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer txn.Rollback() //nolint:errcheck
	}
	if err := d.metadata.SetTip(tip, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set tip: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return nil
}
