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

// GetGovernanceParam returns an adjustable governance parameter by name
func (d *Database) GetGovernanceParam(
	name string,
	txn *Txn,
) (*models.GovernanceParam, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	param, err := d.metadata.GetGovernanceParam(name, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get governance param: %w", err)
	}
	if param == nil {
		return nil, models.ErrGovernanceParamNotFound
	}
	return param, nil
}

// SetGovernanceParam saves an adjustable governance parameter along with
// who changed it and at what height
func (d *Database) SetGovernanceParam(
	param models.GovernanceParam,
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
	if err := d.metadata.SetGovernanceParam(&param, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set governance param: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}
