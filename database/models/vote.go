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

var ErrVoteNotFound = errors.New("vote not found")

// Vote constants represent the vote choice on a proposal.
const (
	VoteAgainst = 0
	VoteFor     = 1
	VoteAbstain = 2
)

// Vote represents a single voter's ballot on a proposal. The unique index
// across (proposal, voter) is the double-vote guard; weight is the voter's
// checkpointed weight at the proposal's snapshot height.
type Vote struct {
	ID         uint         `gorm:"primarykey"`
	ProposalID []byte       `gorm:"index:idx_vote_proposal;uniqueIndex:idx_vote_unique,priority:1;size:32;not null"`
	Voter      []byte       `gorm:"uniqueIndex:idx_vote_unique,priority:2;size:20;not null"`
	Choice     uint8        `gorm:"not null"`
	Weight     types.BigInt `gorm:"type:text;not null"`
	CastHeight uint64       `gorm:"index;not null"`
}

// TableName returns the table name
func (Vote) TableName() string {
	return "vote"
}
