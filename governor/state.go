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

package governor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/policy"
)

// ProposalState is the lifecycle state of a proposal. Cancellation,
// queueing, and execution are stored markers; every other state is derived
// from the voting window, the tallies, and the upgrade sub-ledger at the
// moment of the query.
type ProposalState uint8

const (
	StatePending ProposalState = iota
	StateActive
	StateCanceled
	StateDefeated
	StateSucceeded
	StateQueued
	StateExecuted
	StateExpired
)

func (s ProposalState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StateCanceled:
		return "CANCELED"
	case StateDefeated:
		return "DEFEATED"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateQueued:
		return "QUEUED"
	case StateExecuted:
		return "EXECUTED"
	case StateExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("ProposalState(%d)", uint8(s))
	}
}

// State returns the current lifecycle state of a proposal
func (g *Governor) State(id core.Hash) (ProposalState, error) {
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return 0, ErrUnknownProposal
		}
		return 0, err
	}
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return 0, err
	}
	return g.computeState(proposal, tip.Height)
}

// computeState derives the lifecycle state. The marker precedence is
// canceled, executed, queued; an unmarked proposal is placed by its voting
// window, and past the deadline by its tallies.
func (g *Governor) computeState(
	proposal *models.Proposal,
	tipHeight uint64,
) (ProposalState, error) {
	if proposal.CanceledHeight != nil {
		return StateCanceled, nil
	}
	if proposal.ExecutedHeight != nil {
		return StateExecuted, nil
	}
	if proposal.QueuedHeight != nil {
		if policy.ProposalClass(proposal.Class) == policy.ClassUpgrade {
			return g.queuedUpgradeState(proposal, tipHeight)
		}
		return StateQueued, nil
	}
	if tipHeight <= proposal.SnapshotHeight {
		return StatePending, nil
	}
	if tipHeight <= proposal.DeadlineHeight {
		return StateActive, nil
	}
	return g.resolvedState(proposal)
}

// resolvedState tallies a proposal whose voting window has closed. Passage
// requires for > against; quorum participation is for + abstain and never
// counts against.
func (g *Governor) resolvedState(
	proposal *models.Proposal,
) (ProposalState, error) {
	forWeight := proposal.ForWeight.Int
	againstWeight := proposal.AgainstWeight.Int
	if forWeight.Cmp(againstWeight) <= 0 {
		return StateDefeated, nil
	}
	total, err := g.weights.TotalWeightAt(proposal.SnapshotHeight)
	if err != nil {
		return 0, err
	}
	participation := new(big.Int).Add(forWeight, proposal.AbstainWeight.Int)
	minParticipation := g.policy.MinParticipation(
		policy.ProposalClass(proposal.Class),
		total,
	)
	if participation.Cmp(minParticipation) < 0 {
		return StateDefeated, nil
	}
	return StateSucceeded, nil
}

// queuedUpgradeState places a queued UPGRADE proposal by its pending
// upgrade slot. A missing or replaced slot means the upgrade never ran
// inside its window; execution through the governor is caught earlier by
// the executed marker.
func (g *Governor) queuedUpgradeState(
	proposal *models.Proposal,
	tipHeight uint64,
) (ProposalState, error) {
	upgrade, err := g.db.GetPendingUpgrade(proposal.OperationID, nil)
	if err != nil {
		if errors.Is(err, models.ErrPendingUpgradeNotFound) {
			return StateExpired, nil
		}
		return 0, err
	}
	if upgrade.ScheduledHeight != *proposal.QueuedHeight {
		return StateExpired, nil
	}
	if tipHeight > g.timelock.UpgradeDeadline(upgrade) {
		return StateExpired, nil
	}
	return StateQueued, nil
}

// Proposal returns the stored proposal row
func (g *Governor) Proposal(id core.Hash) (*models.Proposal, error) {
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, ErrUnknownProposal
		}
		return nil, err
	}
	return proposal, nil
}

// Proposals returns all stored proposals in submission order
func (g *Governor) Proposals() ([]models.Proposal, error) {
	return g.db.GetProposals(nil)
}

// Votes returns the running tallies for a proposal in the order against,
// for, abstain
func (g *Governor) Votes(
	id core.Hash,
) (*big.Int, *big.Int, *big.Int, error) {
	proposal, err := g.Proposal(id)
	if err != nil {
		return nil, nil, nil, err
	}
	return new(big.Int).Set(proposal.AgainstWeight.Int),
		new(big.Int).Set(proposal.ForWeight.Int),
		new(big.Int).Set(proposal.AbstainWeight.Int),
		nil
}

// Ballots returns the individual ballots cast on a proposal
func (g *Governor) Ballots(id core.Hash) ([]models.Vote, error) {
	if _, err := g.Proposal(id); err != nil {
		return nil, err
	}
	return g.db.GetVotesByProposal(id.Bytes(), nil)
}

// ProposalCalls returns the call batch submitted with a proposal
func (g *Governor) ProposalCalls(id core.Hash) ([]core.Call, error) {
	calls, err := g.db.GetProposalCalls(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, ErrUnknownProposal
		}
		return nil, err
	}
	return calls, nil
}

// ProposalDescription returns the description text submitted with a
// proposal
func (g *Governor) ProposalDescription(id core.Hash) (string, error) {
	description, err := g.db.GetProposalDescription(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return "", ErrUnknownProposal
		}
		return "", err
	}
	return description, nil
}
