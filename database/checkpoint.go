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

// GetCheckpointsBySubject returns the full checkpoint series for a subject
// in ascending height order
func (d *Database) GetCheckpointsBySubject(
	subject []byte,
	txn *Txn,
) ([]models.Checkpoint, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	checkpoints, err := d.metadata.GetCheckpointsBySubject(
		subject,
		txn.Metadata(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoints: %w", err)
	}
	return checkpoints, nil
}

// GetCheckpointSubjects returns every subject that has at least one
// checkpoint recorded
func (d *Database) GetCheckpointSubjects(txn *Txn) ([][]byte, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	subjects, err := d.metadata.GetCheckpointSubjects(txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint subjects: %w", err)
	}
	return subjects, nil
}

// SetCheckpoint saves a checkpoint. Writing the same (subject, height)
// twice overwrites the value, which collapses multiple weight changes
// within one height into a single checkpoint.
func (d *Database) SetCheckpoint(
	checkpoint models.Checkpoint,
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
	if err := d.metadata.SetCheckpoint(&checkpoint, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// SetCheckpoints saves a batch of checkpoints in a single transaction
func (d *Database) SetCheckpoints(
	checkpoints []models.Checkpoint,
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
	for i := range checkpoints {
		if err := d.metadata.SetCheckpoint(
			&checkpoints[i],
			txn.Metadata(),
		); err != nil {
			return fmt.Errorf("failed to set checkpoint: %w", err)
		}
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}
