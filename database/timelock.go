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

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
)

// GetTimelockOperation returns a scheduled operation by its content-derived ID
func (d *Database) GetTimelockOperation(
	operationID []byte,
	txn *Txn,
) (*models.TimelockOperation, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	operation, err := d.metadata.GetTimelockOperation(
		operationID,
		txn.Metadata(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get timelock operation: %w", err)
	}
	if operation == nil {
		return nil, models.ErrTimelockOperationNotFound
	}
	return operation, nil
}

// SetTimelockOperation saves a scheduled operation. On conflict with an
// existing operation ID only the done marker is updated; the recorded
// schedule never changes.
func (d *Database) SetTimelockOperation(
	operation models.TimelockOperation,
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
	if err := d.metadata.SetTimelockOperation(
		&operation,
		txn.Metadata(),
	); err != nil {
		return fmt.Errorf("failed to set timelock operation: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// SetOperationCalls stores the call batch for a timelock operation in the
// blob store
func (d *Database) SetOperationCalls(
	operationID []byte,
	calls []core.Call,
	txn *Txn,
) error {
	payload, err := encodeCallBatch(calls)
	if err != nil {
		return err
	}
	return d.setPayload(
		types.OperationCallsBlobKey(operationID),
		payload,
		txn,
	)
}

// GetOperationCalls returns the call batch stored for a timelock operation
func (d *Database) GetOperationCalls(
	operationID []byte,
	txn *Txn,
) ([]core.Call, error) {
	payload, err := d.getPayload(
		types.OperationCallsBlobKey(operationID),
		txn,
	)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, models.ErrTimelockOperationNotFound
		}
		return nil, err
	}
	return decodeCallBatch(payload)
}
