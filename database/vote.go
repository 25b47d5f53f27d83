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

// GetVote returns the ballot cast by a voter on a proposal
func (d *Database) GetVote(
	proposalID []byte,
	voter []byte,
	txn *Txn,
) (*models.Vote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	vote, err := d.metadata.GetVote(proposalID, voter, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	if vote == nil {
		return nil, models.ErrVoteNotFound
	}
	return vote, nil
}

// GetVotesByProposal returns all ballots cast on a proposal in cast order
func (d *Database) GetVotesByProposal(
	proposalID []byte,
	txn *Txn,
) ([]models.Vote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	votes, err := d.metadata.GetVotesByProposal(proposalID, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}
	return votes, nil
}

// SetVote saves a ballot. Ballots are insert-only; the unique index on
// (proposal, voter) rejects a second ballot from the same voter.
func (d *Database) SetVote(vote models.Vote, txn *Txn) error {
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
	if err := d.metadata.SetVote(&vote, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set vote: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}
