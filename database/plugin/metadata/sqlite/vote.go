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
	"errors"

	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"gorm.io/gorm"
)

// GetVote retrieves a voter's ballot on a proposal.
func (d *MetadataStoreSqlite) GetVote(
	proposalID []byte,
	voter []byte,
	txn types.Txn,
) (*models.Vote, error) {
	var vote models.Vote
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"proposal_id = ? AND voter = ?",
		proposalID,
		voter,
	).First(&vote); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &vote, nil
}

// GetVotesByProposal retrieves all ballots on a proposal in cast order.
func (d *MetadataStoreSqlite) GetVotesByProposal(
	proposalID []byte,
	txn types.Txn,
) ([]models.Vote, error) {
	var votes []models.Vote
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"proposal_id = ?",
		proposalID,
	).Order("cast_height ASC, id ASC").Find(&votes); result.Error != nil {
		return nil, result.Error
	}
	return votes, nil
}

// SetVote records a ballot. Ballots are immutable, so this is a plain
// insert and the unique index across (proposal, voter) backstops the
// double-vote check done by callers.
func (d *MetadataStoreSqlite) SetVote(
	vote *models.Vote,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(vote); result.Error != nil {
		return result.Error
	}
	return nil
}
