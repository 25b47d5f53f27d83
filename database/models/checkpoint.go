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

package models

import (
	"errors"

	"github.com/gavelhq/gavel/database/types"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint records a subject's voting weight as of a ledger height.
// Heights are strictly increasing per subject; a write at an existing
// height overwrites in place. The aggregate total-weight series uses the
// all-zeroes subject address.
type Checkpoint struct {
	ID      uint         `gorm:"primarykey"`
	Subject []byte       `gorm:"uniqueIndex:idx_checkpoint_subject_height,priority:1;size:20;not null"`
	Height  uint64       `gorm:"uniqueIndex:idx_checkpoint_subject_height,priority:2;index;not null"`
	Value   types.BigInt `gorm:"type:text;not null"`
}

// TableName returns the table name
func (Checkpoint) TableName() string {
	return "checkpoint"
}
