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

// Package governor implements the proposal lifecycle: submission against
// the proposer threshold, snapshot voting, tallying, and the hand-off of
// succeeded proposals to the timelock. Every mutating operation is
// serialized and either fully applies or fails without partial effect.
package governor

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"github.com/gavelhq/gavel/event"
	"github.com/gavelhq/gavel/policy"
	"github.com/gavelhq/gavel/timelock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultVotingDelay is the gap in heights between submission and the
// voting snapshot, assuming a 12 second height interval. The gap is what
// makes flash-borrowed weight useless: the snapshot lands after the
// submission settles.
const DefaultVotingDelay = 50

// ErrUnknownProposal is returned for a proposal ID that was never
// submitted
var ErrUnknownProposal = core.NewStateViolation("unknown proposal")

// ErrDuplicateProposal is returned when submitting a proposal whose
// content hash already exists
var ErrDuplicateProposal = core.NewStateViolation("proposal already exists")

// ErrEmptyProposal is returned when submitting a proposal with no calls
var ErrEmptyProposal = core.NewStateViolation("proposal has no calls")

// ErrInvalidClass is returned when submitting with an undefined proposal
// class
var ErrInvalidClass = core.NewPolicyViolation("invalid proposal class")

// ErrInvalidUpgradeProposal is returned when an UPGRADE proposal does not
// carry exactly one upgrade call
var ErrInvalidUpgradeProposal = core.NewStateViolation(
	"upgrade proposals carry exactly one call",
)

// ErrProposerBelowThreshold is returned when the proposer's current weight
// is below the class threshold
var ErrProposerBelowThreshold = core.NewPolicyViolation(
	"proposer weight below threshold",
)

// ErrVotingClosed is returned when casting a ballot outside the active
// voting window, on either side of it
var ErrVotingClosed = core.NewStateViolation("voting window is not open")

// ErrAlreadyVoted is returned when an account casts a second ballot on the
// same proposal
var ErrAlreadyVoted = core.NewStateViolation("voter already cast a ballot")

// ErrInvalidChoice is returned for a ballot choice outside against, for,
// abstain
var ErrInvalidChoice = core.NewStateViolation("invalid ballot choice")

// ErrProposalNotSucceeded is returned when queueing a proposal that has
// not succeeded
var ErrProposalNotSucceeded = core.NewStateViolation(
	"proposal has not succeeded",
)

// ErrProposalNotQueued is returned when executing a proposal that was
// never queued
var ErrProposalNotQueued = core.NewStateViolation("proposal is not queued")

// ErrAlreadyQueued is returned when queueing a proposal twice
var ErrAlreadyQueued = core.NewStateViolation("proposal already queued")

// ErrAlreadyCanceled is returned when canceling a proposal twice
var ErrAlreadyCanceled = core.NewStateViolation("proposal already canceled")

// ErrCancelWindowClosed is returned when canceling after voting has
// concluded
var ErrCancelWindowClosed = core.NewStateViolation(
	"proposal can no longer be canceled",
)

type GovernorConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Weights      core.WeightSource
	Roles        core.RoleRegistry
	Policy       *policy.Policy
	Timelock     *timelock.Timelock
	// VotingDelay is the gap in heights between submission and snapshot
	VotingDelay uint64
}

// Governor is the proposal lifecycle machine
type Governor struct {
	config  GovernorConfig
	metrics struct {
		proposals *prometheus.CounterVec
		votes     *prometheus.CounterVec
		queued    prometheus.Counter
		executed  prometheus.Counter
		canceled  prometheus.Counter
	}
	logger   *slog.Logger
	db       *database.Database
	eventBus *event.EventBus
	weights  core.WeightSource
	roles    core.RoleRegistry
	policy   *policy.Policy
	timelock *timelock.Timelock
	sync.Mutex
}

func NewGovernor(config GovernorConfig) *Governor {
	if config.VotingDelay == 0 {
		config.VotingDelay = DefaultVotingDelay
	}
	g := &Governor{
		config:   config,
		db:       config.Database,
		eventBus: config.EventBus,
		weights:  config.Weights,
		roles:    config.Roles,
		policy:   config.Policy,
		timelock: config.Timelock,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		g.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		g.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	g.metrics.proposals = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_proposals_total",
			Help: "total proposals submitted",
		},
		[]string{"class"},
	)
	g.metrics.votes = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_votes_total",
			Help: "total ballots accepted",
		},
		[]string{"choice"},
	)
	g.metrics.queued = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_queued_total",
		Help: "total proposals handed to the timelock",
	})
	g.metrics.executed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_executed_total",
		Help: "total proposals executed",
	})
	g.metrics.canceled = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_canceled_total",
		Help: "total proposals canceled",
	})
	return g
}

// Propose submits a call batch for a vote. The proposal ID is derived from
// the batch and the description, so resubmitting identical content is
// rejected. The proposer must hold the class threshold at the current
// height; holding it at the future snapshot is not enough.
func (g *Governor) Propose(
	proposer core.Address,
	class policy.ProposalClass,
	calls []core.Call,
	description string,
) (core.Hash, error) {
	var id core.Hash
	// Validate proposal shape
	if !class.Valid() {
		return id, ErrInvalidClass
	}
	if len(calls) == 0 {
		return id, ErrEmptyProposal
	}
	if class == policy.ClassUpgrade {
		if len(calls) != 1 {
			return id, ErrInvalidUpgradeProposal
		}
		if _, _, err := core.DecodeUpgradePayload(calls[0].Payload); err != nil {
			return id, err
		}
	}
	descriptionHash := core.HashDescription(description)
	id = core.HashProposal(calls, descriptionHash)
	g.Lock()
	defer g.Unlock()
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return id, err
	}
	// Check the proposer threshold against current weight
	privileged := g.roles != nil && g.roles.IsPrivilegedActor(proposer)
	total, err := g.weights.TotalWeightAt(tip.Height)
	if err != nil {
		return id, err
	}
	weight, err := g.weights.CurrentWeight(proposer)
	if err != nil {
		return id, err
	}
	minWeight := g.policy.MinProposerWeight(class, total, privileged)
	if weight.Cmp(minWeight) < 0 {
		return id, ErrProposerBelowThreshold
	}
	// Reject duplicate content
	_, err = g.db.GetProposal(id.Bytes(), nil)
	if err == nil {
		return id, ErrDuplicateProposal
	}
	if !errors.Is(err, models.ErrProposalNotFound) {
		return id, err
	}
	snapshotHeight := tip.Height + g.config.VotingDelay
	proposal := models.Proposal{
		ProposalID:      id.Bytes(),
		Class:           uint8(class),
		Proposer:        proposer.Bytes(),
		DescriptionHash: descriptionHash.Bytes(),
		SubmittedHeight: tip.Height,
		SnapshotHeight:  snapshotHeight,
		DeadlineHeight:  snapshotHeight + g.policy.VotingPeriod(class),
		AgainstWeight:   types.NewBigInt(nil),
		ForWeight:       types.NewBigInt(nil),
		AbstainWeight:   types.NewBigInt(nil),
	}
	// Persist the row, the call batch, and the description together
	txn := g.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		if err := g.db.SetProposal(proposal, txn); err != nil {
			return err
		}
		if err := g.db.SetProposalCalls(id.Bytes(), calls, txn); err != nil {
			return err
		}
		return g.db.SetProposalDescription(id.Bytes(), description, txn)
	})
	if err != nil {
		return id, err
	}
	g.metrics.proposals.WithLabelValues(class.String()).Inc()
	g.logger.Info(
		"proposal created",
		"component", "governor",
		"proposal_id", id.String(),
		"class", class.String(),
		"proposer", proposer.String(),
		"snapshot_height", proposal.SnapshotHeight,
		"deadline_height", proposal.DeadlineHeight,
	)
	if g.eventBus != nil {
		g.eventBus.Publish(
			event.ProposalCreatedEventType,
			event.NewEvent(
				event.ProposalCreatedEventType,
				event.ProposalCreatedEvent{
					ProposalID:      id.Bytes(),
					Class:           uint8(class),
					Proposer:        proposer.Bytes(),
					SubmittedHeight: proposal.SubmittedHeight,
					SnapshotHeight:  proposal.SnapshotHeight,
					DeadlineHeight:  proposal.DeadlineHeight,
					CallCount:       len(calls),
				},
			),
		)
	}
	return id, nil
}

// CastVote adds a ballot to a proposal. Ballots are accepted strictly
// inside the window snapshot < height <= deadline, one per account, and
// carry the account's weight at the snapshot height.
func (g *Governor) CastVote(
	voter core.Address,
	id core.Hash,
	choice uint8,
) error {
	if choice > models.VoteAbstain {
		return ErrInvalidChoice
	}
	g.Lock()
	defer g.Unlock()
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return ErrUnknownProposal
		}
		return err
	}
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return err
	}
	state, err := g.computeState(proposal, tip.Height)
	if err != nil {
		return err
	}
	if state != StateActive {
		return ErrVotingClosed
	}
	// One ballot per account
	_, err = g.db.GetVote(id.Bytes(), voter.Bytes(), nil)
	if err == nil {
		return ErrAlreadyVoted
	}
	if !errors.Is(err, models.ErrVoteNotFound) {
		return err
	}
	weight, err := g.weights.WeightAt(voter, proposal.SnapshotHeight)
	if err != nil {
		return err
	}
	// Credit exactly one bucket. Participation counts for and abstain;
	// against weight must never leak into either.
	switch choice {
	case models.VoteAgainst:
		proposal.AgainstWeight.Int.Add(proposal.AgainstWeight.Int, weight)
	case models.VoteFor:
		proposal.ForWeight.Int.Add(proposal.ForWeight.Int, weight)
	case models.VoteAbstain:
		proposal.AbstainWeight.Int.Add(proposal.AbstainWeight.Int, weight)
	}
	vote := models.Vote{
		ProposalID: id.Bytes(),
		Voter:      voter.Bytes(),
		Choice:     choice,
		Weight:     types.NewBigInt(weight),
		CastHeight: tip.Height,
	}
	// The ballot and the updated tallies land in one transaction
	txn := g.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		if err := g.db.SetVote(vote, txn); err != nil {
			return err
		}
		return g.db.SetProposal(*proposal, txn)
	})
	if err != nil {
		return err
	}
	g.metrics.votes.WithLabelValues(choiceLabel(choice)).Inc()
	g.logger.Debug(
		"ballot accepted",
		"component", "governor",
		"proposal_id", id.String(),
		"voter", voter.String(),
		"choice", choiceLabel(choice),
		"weight", weight.String(),
	)
	if g.eventBus != nil {
		g.eventBus.Publish(
			event.ProposalVoteEventType,
			event.NewEvent(
				event.ProposalVoteEventType,
				event.ProposalVoteEvent{
					ProposalID: id.Bytes(),
					Voter:      voter.Bytes(),
					Choice:     choice,
					Weight:     new(big.Int).Set(weight),
					CastHeight: tip.Height,
				},
			),
		)
	}
	return nil
}

// Queue hands a succeeded proposal to the execution gate. Generic batches
// are scheduled as timelock operations salted with the description hash;
// UPGRADE proposals are scheduled into the upgrade sub-ledger keyed by the
// target resource.
func (g *Governor) Queue(id core.Hash) error {
	g.Lock()
	defer g.Unlock()
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return ErrUnknownProposal
		}
		return err
	}
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return err
	}
	state, err := g.computeState(proposal, tip.Height)
	if err != nil {
		return err
	}
	switch state {
	case StateSucceeded:
	case StateQueued, StateExecuted, StateExpired:
		return ErrAlreadyQueued
	default:
		return ErrProposalNotSucceeded
	}
	calls, err := g.db.GetProposalCalls(id.Bytes(), nil)
	if err != nil {
		return err
	}
	class := policy.ProposalClass(proposal.Class)
	queuedHeight := tip.Height
	var readyHeight uint64
	if class == policy.ClassUpgrade {
		resource := calls[0].Target
		newImplementation, initPayload, err := core.DecodeUpgradePayload(
			calls[0].Payload,
		)
		if err != nil {
			return err
		}
		if err := g.timelock.ScheduleUpgrade(
			resource,
			newImplementation,
			initPayload,
			false,
		); err != nil {
			return err
		}
		upgrade, err := g.timelock.PendingUpgrade(resource)
		if err != nil {
			return err
		}
		readyHeight = upgrade.ReadyHeight
		// The gate reads the tip again under its own lock, so the slot
		// may be stamped a height past ours. The queued marker must
		// match the slot's scheduled height or the state derivation
		// reads the proposal's own live slot as a replacement.
		queuedHeight = upgrade.ScheduledHeight
		proposal.OperationID = resource.Bytes()
	} else {
		var descriptionHash core.Hash
		copy(descriptionHash[:], proposal.DescriptionHash)
		operationID, err := g.timelock.Schedule(
			calls,
			core.ZeroHash,
			descriptionHash,
			g.policy.QueueDelay(class),
			class == policy.ClassEmergency,
		)
		if err != nil && !errors.Is(err, timelock.ErrOperationExists) {
			return err
		}
		// ErrOperationExists here can only be this proposal's own
		// operation left by an earlier crash between the timelock write
		// and the queued marker: the salt ties the operation to this
		// proposal's description
		operation, err := g.timelock.Operation(operationID)
		if err != nil {
			return err
		}
		readyHeight = operation.ReadyHeight
		proposal.OperationID = operationID.Bytes()
	}
	proposal.QueuedHeight = &queuedHeight
	if err := g.db.SetProposal(*proposal, nil); err != nil {
		return err
	}
	g.metrics.queued.Inc()
	g.logger.Info(
		"proposal queued",
		"component", "governor",
		"proposal_id", id.String(),
		"class", class.String(),
		"ready_height", readyHeight,
	)
	if g.eventBus != nil {
		g.eventBus.Publish(
			event.ProposalQueuedEventType,
			event.NewEvent(
				event.ProposalQueuedEventType,
				event.ProposalQueuedEvent{
					ProposalID:   id.Bytes(),
					OperationID:  proposal.OperationID,
					QueuedHeight: queuedHeight,
					ReadyHeight:  readyHeight,
				},
			),
		)
	}
	return nil
}

// Execute dispatches a queued proposal through the execution gate. The
// gate enforces readiness; a second execute fails with the gate's
// distinct already-executed condition.
func (g *Governor) Execute(id core.Hash) error {
	g.Lock()
	defer g.Unlock()
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return ErrUnknownProposal
		}
		return err
	}
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return err
	}
	state, err := g.computeState(proposal, tip.Height)
	if err != nil {
		return err
	}
	// The state check also refuses an upgrade slot that was swept and
	// rescheduled for a different proposal
	switch state {
	case StateQueued:
	case StateExecuted:
		return timelock.ErrAlreadyExecuted
	case StateExpired:
		return timelock.ErrUpgradeExpired
	default:
		return ErrProposalNotQueued
	}
	class := policy.ProposalClass(proposal.Class)
	if class == policy.ClassUpgrade {
		var resource core.Address
		copy(resource[:], proposal.OperationID)
		if err := g.timelock.ExecuteUpgrade(resource); err != nil {
			return err
		}
	} else {
		var operationID core.Hash
		copy(operationID[:], proposal.OperationID)
		err := g.timelock.Execute(operationID)
		if err != nil && !errors.Is(err, timelock.ErrAlreadyExecuted) {
			return err
		}
		// ErrAlreadyExecuted while the proposal is still marked queued
		// can only be a crash between a prior dispatch and the executed
		// marker: the salt ties the operation to this proposal alone
	}
	executedHeight := tip.Height
	proposal.ExecutedHeight = &executedHeight
	if err := g.db.SetProposal(*proposal, nil); err != nil {
		return err
	}
	g.metrics.executed.Inc()
	g.logger.Info(
		"proposal executed",
		"component", "governor",
		"proposal_id", id.String(),
		"class", class.String(),
	)
	if g.eventBus != nil {
		g.eventBus.Publish(
			event.ProposalExecutedEventType,
			event.NewEvent(
				event.ProposalExecutedEventType,
				event.ProposalExecutedEvent{
					ProposalID:     id.Bytes(),
					OperationID:    proposal.OperationID,
					ExecutedHeight: executedHeight,
				},
			),
		)
	}
	return nil
}

// Cancel withdraws a proposal before voting concludes. Only the proposer
// or a privileged actor may cancel; a queued proposal is past canceling.
func (g *Governor) Cancel(id core.Hash, caller core.Address) error {
	g.Lock()
	defer g.Unlock()
	proposal, err := g.db.GetProposal(id.Bytes(), nil)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return ErrUnknownProposal
		}
		return err
	}
	if proposal.CanceledHeight != nil {
		return ErrAlreadyCanceled
	}
	if !bytes.Equal(proposal.Proposer, caller.Bytes()) &&
		(g.roles == nil || !g.roles.IsPrivilegedActor(caller)) {
		return policy.ErrNotPrivileged
	}
	tip, err := g.db.GetTip(nil)
	if err != nil {
		return err
	}
	state, err := g.computeState(proposal, tip.Height)
	if err != nil {
		return err
	}
	if state != StatePending && state != StateActive {
		return ErrCancelWindowClosed
	}
	canceledHeight := tip.Height
	proposal.CanceledHeight = &canceledHeight
	if err := g.db.SetProposal(*proposal, nil); err != nil {
		return err
	}
	g.metrics.canceled.Inc()
	g.logger.Info(
		"proposal canceled",
		"component", "governor",
		"proposal_id", id.String(),
		"canceled_by", caller.String(),
	)
	if g.eventBus != nil {
		g.eventBus.Publish(
			event.ProposalCanceledEventType,
			event.NewEvent(
				event.ProposalCanceledEventType,
				event.ProposalCanceledEvent{
					ProposalID:     id.Bytes(),
					CanceledBy:     caller.Bytes(),
					CanceledHeight: canceledHeight,
				},
			),
		)
	}
	return nil
}

func choiceLabel(choice uint8) string {
	switch choice {
	case models.VoteAgainst:
		return "against"
	case models.VoteFor:
		return "for"
	case models.VoteAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}
