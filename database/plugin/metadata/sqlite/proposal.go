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
	"gorm.io/gorm/clause"
)

// GetProposal retrieves a proposal by its content hash.
func (d *MetadataStoreSqlite) GetProposal(
	proposalID []byte,
	txn types.Txn,
) (*models.Proposal, error) {
	var proposal models.Proposal
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"proposal_id = ?",
		proposalID,
	).First(&proposal); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &proposal, nil
}

// GetProposals retrieves all proposals in submission order.
func (d *MetadataStoreSqlite) GetProposals(
	txn types.Txn,
) ([]models.Proposal, error) {
	var proposals []models.Proposal
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Order(
		"submitted_height ASC, id ASC",
	).Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// SetProposal creates or updates a proposal.
func (d *MetadataStoreSqlite) SetProposal(
	proposal *models.Proposal,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_id"},
		},
		// Identity and window columns are NOT updated on conflict. Only the
		// running tallies and lifecycle transitions change after submission.
		DoUpdates: clause.AssignmentColumns([]string{
			"against_weight",
			"for_weight",
			"abstain_weight",
			"operation_id",
			"canceled_height",
			"queued_height",
			"executed_height",
		}),
	}
	if result := db.Clauses(onConflict).Create(proposal); result.Error != nil {
		return result.Error
	}
	return nil
}
