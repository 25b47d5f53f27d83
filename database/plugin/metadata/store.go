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

package metadata

import (
	"log/slog"

	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/plugin/metadata/sqlite"
	"github.com/gavelhq/gavel/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// MetadataStore holds the relational side of governance state: proposals,
// votes, timelock operations, pending upgrades, weight checkpoints, and
// tunable parameters. Accessors take an optional transaction handle; a nil
// handle runs against the bare connection. Get accessors return nil (or the
// zero value) without error when no row matches, callers translate that to
// their own not-found sentinel.
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Weight checkpoints
	GetCheckpointsBySubject(
		[]byte, // subject
		types.Txn,
	) ([]models.Checkpoint, error)
	GetCheckpointSubjects(types.Txn) ([][]byte, error)
	SetCheckpoint(*models.Checkpoint, types.Txn) error

	// Proposals
	GetProposal(
		[]byte, // proposalID
		types.Txn,
	) (*models.Proposal, error)
	GetProposals(types.Txn) ([]models.Proposal, error)
	SetProposal(*models.Proposal, types.Txn) error

	// Votes
	GetVote(
		[]byte, // proposalID
		[]byte, // voter
		types.Txn,
	) (*models.Vote, error)
	GetVotesByProposal(
		[]byte, // proposalID
		types.Txn,
	) ([]models.Vote, error)
	SetVote(*models.Vote, types.Txn) error

	// Timelock operations
	GetTimelockOperation(
		[]byte, // operationID
		types.Txn,
	) (*models.TimelockOperation, error)
	SetTimelockOperation(*models.TimelockOperation, types.Txn) error

	// Pending upgrades
	DeletePendingUpgrade(
		[]byte, // resource
		types.Txn,
	) error
	GetPendingUpgrade(
		[]byte, // resource
		types.Txn,
	) (*models.PendingUpgrade, error)
	GetPendingUpgrades(types.Txn) ([]models.PendingUpgrade, error)
	SetPendingUpgrade(*models.PendingUpgrade, types.Txn) error

	// Governance parameters
	GetGovernanceParam(
		string, // name
		types.Txn,
	) (*models.GovernanceParam, error)
	SetGovernanceParam(*models.GovernanceParam, types.Txn) error

	// Tip
	GetTip(types.Txn) (models.Tip, error)
	SetTip(models.Tip, types.Txn) error
}

// For now, this always returns a sqlite plugin
func New(
	pluginName, dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	return sqlite.New(dataDir, logger, promRegistry)
}
