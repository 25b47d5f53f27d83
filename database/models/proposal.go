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

var ErrProposalNotFound = errors.New("proposal not found")

// Proposal represents a governance action submitted to the engine.
// Rows are never deleted; the explicit transitions (cancel, queue,
// execute) record the height at which they happened, and the remaining
// lifecycle states are derived from the voting window and tallies.
// The call batch and description text live in the blob store keyed by
// ProposalID; running tallies are updated in the same transaction as the
// vote rows.
type Proposal struct {
	ID              uint         `gorm:"primarykey"`
	ProposalID      []byte       `gorm:"uniqueIndex;size:32;not null"`
	Class           uint8        `gorm:"index;not null"`
	Proposer        []byte       `gorm:"index;size:20;not null"`
	DescriptionHash []byte       `gorm:"size:32;not null"`
	SubmittedHeight uint64       `gorm:"index;not null"`
	SnapshotHeight  uint64       `gorm:"index;not null"`
	DeadlineHeight  uint64       `gorm:"index;not null"`
	AgainstWeight   types.BigInt `gorm:"type:text;not null"`
	ForWeight       types.BigInt `gorm:"type:text;not null"`
	AbstainWeight   types.BigInt `gorm:"type:text;not null"`
	// OperationID records what queueing produced: the timelock operation ID
	// for generic proposals, or the resource address for UPGRADE proposals
	OperationID    []byte  `gorm:"size:32"`
	CanceledHeight *uint64 `gorm:"index"`
	QueuedHeight   *uint64 `gorm:"index"`
	ExecutedHeight *uint64 `gorm:"index"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}
