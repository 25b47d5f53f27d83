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

package governor_test

import (
	"math/big"
	"testing"

	"github.com/gavelhq/gavel/checkpoint"
	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/event"
	"github.com/gavelhq/gavel/governor"
	"github.com/gavelhq/gavel/policy"
	"github.com/gavelhq/gavel/timelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(fill byte) core.Address {
	var addr core.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

// Voting population shared by all tests: 10,000,000 total weight. With the
// default 10% quorum a proposal needs 1,000,000 participating weight, and
// with the default 300 bps proposer threshold submitting takes 300,000.
var (
	proposerA = testAddress(0x0a) // 2,000,000
	voterB    = testAddress(0x0b) // 1,000,000
	voterC    = testAddress(0x0c) // 900,000
	smallFry  = testAddress(0x0d) // 100,000
	whale     = testAddress(0x0e) // 6,000,000
	guardian  = testAddress(0x1f) // privileged, holds no weight
)

type testExecutor struct {
	calls []core.Call
	err   error
}

func (e *testExecutor) ExecuteCall(call core.Call) error {
	if e.err != nil {
		return e.err
	}
	e.calls = append(e.calls, call)
	return nil
}

type upgradeDispatch struct {
	resource          core.Address
	newImplementation core.Address
	initPayload       []byte
}

type testUpgradeExecutor struct {
	dispatches []upgradeDispatch
	err        error
}

func (e *testUpgradeExecutor) ExecuteUpgrade(
	resource core.Address,
	newImplementation core.Address,
	initPayload []byte,
) error {
	if e.err != nil {
		return e.err
	}
	e.dispatches = append(e.dispatches, upgradeDispatch{
		resource:          resource,
		newImplementation: newImplementation,
		initPayload:       initPayload,
	})
	return nil
}

type testEnv struct {
	governor        *governor.Governor
	timelock        *timelock.Timelock
	ledger          *checkpoint.Ledger
	db              *database.Database
	eventBus        *event.EventBus
	executor        *testExecutor
	upgradeExecutor *testUpgradeExecutor
}

// setupTestGovernor wires a governor against an in-memory store with short
// windows: voting delay 5, standard voting period 10, standard queue delay
// 10, upgrade window 20. The tip starts at 10, so a fresh proposal
// snapshots at 15 and closes voting at 25.
func setupTestGovernor(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(nil, "", "", "", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(eventBus.Stop)
	ledger := checkpoint.NewLedger(checkpoint.LedgerConfig{Database: db})
	seed := func(subject core.Address, weight int64, height uint64) {
		require.NoError(
			t,
			ledger.Record(subject, big.NewInt(weight), height),
		)
	}
	seed(proposerA, 2_000_000, 1)
	seed(voterB, 1_000_000, 2)
	seed(voterC, 900_000, 3)
	seed(smallFry, 100_000, 4)
	seed(whale, 6_000_000, 5)
	roles := core.NewStaticRoleRegistry(guardian)
	pol := policy.NewPolicy(policy.PolicyConfig{
		Database:                   db,
		EventBus:                   eventBus,
		Roles:                      roles,
		StandardVotingPeriod:       10,
		EmergencyVotingPeriod:      4,
		ConstitutionalVotingPeriod: 20,
		UpgradeVotingPeriod:        10,
		StandardQueueDelay:         10,
		EmergencyQueueDelay:        2,
		ConstitutionalQueueDelay:   20,
	})
	executor := &testExecutor{}
	upgradeExecutor := &testUpgradeExecutor{}
	tl := timelock.NewTimelock(timelock.TimelockConfig{
		Database:               db,
		EventBus:               eventBus,
		Executor:               executor,
		UpgradeExecutor:        upgradeExecutor,
		MinDelay:               10,
		EmergencyMinDelay:      2,
		UpgradeDelay:           10,
		EmergencyUpgradeDelay:  2,
		UpgradeExecutionWindow: 20,
	})
	gov := governor.NewGovernor(governor.GovernorConfig{
		Database:    db,
		EventBus:    eventBus,
		Weights:     ledger,
		Roles:       roles,
		Policy:      pol,
		Timelock:    tl,
		VotingDelay: 5,
	})
	env := &testEnv{
		governor:        gov,
		timelock:        tl,
		ledger:          ledger,
		db:              db,
		eventBus:        eventBus,
		executor:        executor,
		upgradeExecutor: upgradeExecutor,
	}
	env.setTip(t, 10)
	return env
}

func (env *testEnv) setTip(t *testing.T, height uint64) {
	t.Helper()
	require.NoError(
		t,
		env.db.SetTip(
			models.Tip{ID: models.TipEntryID, Height: height},
			nil,
		),
	)
}

func (env *testEnv) requireState(
	t *testing.T,
	id core.Hash,
	want governor.ProposalState,
) {
	t.Helper()
	state, err := env.governor.State(id)
	require.NoError(t, err)
	require.Equal(t, want, state)
}

// proposeStandard submits a standard proposal at the starting tip of 10,
// giving it snapshot 15 and deadline 25
func (env *testEnv) proposeStandard(
	t *testing.T,
	description string,
) core.Hash {
	t.Helper()
	id, err := env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		testCalls(0x01),
		description,
	)
	require.NoError(t, err)
	return id
}

// passProposal votes the proposal to success with the proposer's weight
// and moves the tip past the deadline
func (env *testEnv) passProposal(t *testing.T, id core.Hash) {
	t.Helper()
	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	env.setTip(t, 26)
}

func testCalls(fill byte) []core.Call {
	var target core.Address
	for i := range target {
		target[i] = fill
	}
	return []core.Call{
		{
			Target:  target,
			Payload: []byte{0xde, 0xad, fill},
			Value:   big.NewInt(int64(fill)),
		},
	}
}

func upgradeCalls(
	resource core.Address,
	newImplementation core.Address,
	initPayload []byte,
) []core.Call {
	return []core.Call{
		{
			Target:  resource,
			Payload: core.EncodeUpgradePayload(newImplementation, initPayload),
		},
	}
}

func TestProposeStoresProposal(t *testing.T) {
	env := setupTestGovernor(t)
	calls := testCalls(0x01)

	id, err := env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		calls,
		"raise the relay fee floor",
	)
	require.NoError(t, err)
	expected := core.HashProposal(
		calls,
		core.HashDescription("raise the relay fee floor"),
	)
	assert.Equal(t, expected, id)

	proposal, err := env.governor.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint8(policy.ClassStandard), proposal.Class)
	assert.Equal(t, proposerA.Bytes(), proposal.Proposer)
	assert.Equal(t, uint64(10), proposal.SubmittedHeight)
	assert.Equal(t, uint64(15), proposal.SnapshotHeight)
	assert.Equal(t, uint64(25), proposal.DeadlineHeight)

	stored, err := env.governor.ProposalCalls(id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, calls[0].Target, stored[0].Target)
	assert.Equal(t, calls[0].Payload, stored[0].Payload)

	description, err := env.governor.ProposalDescription(id)
	require.NoError(t, err)
	assert.Equal(t, "raise the relay fee floor", description)

	env.requireState(t, id, governor.StatePending)
}

func TestProposeValidation(t *testing.T) {
	env := setupTestGovernor(t)

	_, err := env.governor.Propose(
		proposerA,
		policy.ProposalClass(99),
		testCalls(0x01),
		"bogus class",
	)
	require.ErrorIs(t, err, governor.ErrInvalidClass)
	require.True(t, core.IsPolicyViolation(err))

	_, err = env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		nil,
		"nothing to do",
	)
	require.ErrorIs(t, err, governor.ErrEmptyProposal)

	// Upgrade proposals carry exactly one call
	twoCalls := append(testCalls(0x01), testCalls(0x02)...)
	_, err = env.governor.Propose(
		proposerA,
		policy.ClassUpgrade,
		twoCalls,
		"two swaps at once",
	)
	require.ErrorIs(t, err, governor.ErrInvalidUpgradeProposal)

	// An upgrade payload too short for an implementation address
	short := []core.Call{{Target: testAddress(0x50), Payload: []byte{0x01}}}
	_, err = env.governor.Propose(
		proposerA,
		policy.ClassUpgrade,
		short,
		"truncated swap",
	)
	require.ErrorIs(t, err, core.ErrMalformedUpgradePayload)
}

func TestProposeBelowThreshold(t *testing.T) {
	env := setupTestGovernor(t)

	// 100,000 current weight against a 300,000 threshold
	_, err := env.governor.Propose(
		smallFry,
		policy.ClassStandard,
		testCalls(0x01),
		"underweight",
	)
	require.ErrorIs(t, err, governor.ErrProposerBelowThreshold)
	require.True(t, core.IsPolicyViolation(err))
}

func TestProposeDuplicate(t *testing.T) {
	env := setupTestGovernor(t)
	calls := testCalls(0x01)

	_, err := env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		calls,
		"same content",
	)
	require.NoError(t, err)
	_, err = env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		calls,
		"same content",
	)
	require.ErrorIs(t, err, governor.ErrDuplicateProposal)

	// A different description is a different proposal
	_, err = env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		calls,
		"same calls, new rationale",
	)
	require.NoError(t, err)
}

func TestProposeUpgradeThresholdWaiver(t *testing.T) {
	env := setupTestGovernor(t)
	calls := upgradeCalls(testAddress(0x50), testAddress(0x51), nil)

	// A privileged actor with no weight may submit an upgrade
	_, err := env.governor.Propose(
		guardian,
		policy.ClassUpgrade,
		calls,
		"guardian swap",
	)
	require.NoError(t, err)

	// The waiver is scoped to upgrades; other classes still take weight
	_, err = env.governor.Propose(
		guardian,
		policy.ClassStandard,
		testCalls(0x01),
		"guardian parameter change",
	)
	require.ErrorIs(t, err, governor.ErrProposerBelowThreshold)

	// Unprivileged proposers get no waiver on upgrades
	_, err = env.governor.Propose(
		smallFry,
		policy.ClassUpgrade,
		upgradeCalls(testAddress(0x52), testAddress(0x53), nil),
		"underweight swap",
	)
	require.ErrorIs(t, err, governor.ErrProposerBelowThreshold)
}

func TestProposeEmitsEvent(t *testing.T) {
	env := setupTestGovernor(t)
	_, eventChan := env.eventBus.Subscribe(event.ProposalCreatedEventType)

	id := env.proposeStandard(t, "observable change")

	evt := <-eventChan
	data, ok := evt.Data.(event.ProposalCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, id.Bytes(), data.ProposalID)
	assert.Equal(t, uint8(policy.ClassStandard), data.Class)
	assert.Equal(t, proposerA.Bytes(), data.Proposer)
	assert.Equal(t, uint64(10), data.SubmittedHeight)
	assert.Equal(t, uint64(15), data.SnapshotHeight)
	assert.Equal(t, uint64(25), data.DeadlineHeight)
	assert.Equal(t, 1, data.CallCount)
}

func TestCastVoteTallies(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "tally me")
	_, eventChan := env.eventBus.Subscribe(event.ProposalVoteEventType)

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	require.NoError(t, env.governor.CastVote(voterB, id, models.VoteAgainst))
	require.NoError(t, env.governor.CastVote(voterC, id, models.VoteAbstain))

	against, forWeight, abstain, err := env.governor.Votes(id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), against)
	assert.Equal(t, big.NewInt(2_000_000), forWeight)
	assert.Equal(t, big.NewInt(900_000), abstain)

	evt := <-eventChan
	data, ok := evt.Data.(event.ProposalVoteEvent)
	require.True(t, ok)
	assert.Equal(t, id.Bytes(), data.ProposalID)
	assert.Equal(t, proposerA.Bytes(), data.Voter)
	assert.Equal(t, uint8(models.VoteFor), data.Choice)
	assert.Equal(t, big.NewInt(2_000_000), data.Weight)
	assert.Equal(t, uint64(16), data.CastHeight)
}

func TestCastVoteWindow(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "windowed")

	// Pending until the snapshot height passes
	err := env.governor.CastVote(proposerA, id, models.VoteFor)
	require.ErrorIs(t, err, governor.ErrVotingClosed)
	require.True(t, core.IsStateViolation(err))

	env.setTip(t, 15)
	err = env.governor.CastVote(proposerA, id, models.VoteFor)
	require.ErrorIs(t, err, governor.ErrVotingClosed)

	// The deadline height itself still accepts ballots
	env.setTip(t, 25)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))

	env.setTip(t, 26)
	err = env.governor.CastVote(voterB, id, models.VoteFor)
	require.ErrorIs(t, err, governor.ErrVotingClosed)
}

func TestCastVoteDouble(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "one ballot each")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	err := env.governor.CastVote(proposerA, id, models.VoteAgainst)
	require.ErrorIs(t, err, governor.ErrAlreadyVoted)
	require.True(t, core.IsStateViolation(err))

	// The first ballot stands untouched
	_, forWeight, _, err := env.governor.Votes(id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000), forWeight)
}

func TestCastVoteInvalidChoice(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "pick a real option")

	env.setTip(t, 16)
	err := env.governor.CastVote(proposerA, id, 3)
	require.ErrorIs(t, err, governor.ErrInvalidChoice)
}

func TestCastVoteUnknownProposal(t *testing.T) {
	env := setupTestGovernor(t)

	var bogus core.Hash
	bogus[0] = 0xff
	err := env.governor.CastVote(proposerA, bogus, models.VoteFor)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
}

func TestCastVoteUsesSnapshotWeight(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "weights are frozen")

	// Weight acquired after the snapshot height must not count
	require.NoError(
		t,
		env.ledger.Record(proposerA, big.NewInt(5_000_000), 16),
	)
	env.setTip(t, 17)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))

	_, forWeight, _, err := env.governor.Votes(id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000), forWeight)
}

func TestQueueLifecycle(t *testing.T) {
	env := setupTestGovernor(t)
	calls := testCalls(0x01)
	id, err := env.governor.Propose(
		proposerA,
		policy.ClassStandard,
		calls,
		"full passage",
	)
	require.NoError(t, err)
	env.passProposal(t, id)
	env.requireState(t, id, governor.StateSucceeded)

	require.NoError(t, env.governor.Queue(id))
	env.requireState(t, id, governor.StateQueued)

	// The timelock operation is salted with the description hash
	proposal, err := env.governor.Proposal(id)
	require.NoError(t, err)
	var salt core.Hash
	copy(salt[:], proposal.DescriptionHash)
	operationID := core.HashOperation(calls, core.ZeroHash, salt)
	assert.Equal(t, operationID.Bytes(), proposal.OperationID)

	operation, err := env.timelock.Operation(operationID)
	require.NoError(t, err)
	assert.Equal(t, uint64(36), operation.ReadyHeight)

	err = env.governor.Queue(id)
	require.ErrorIs(t, err, governor.ErrAlreadyQueued)

	// The queue delay gates execution
	err = env.governor.Execute(id)
	require.ErrorIs(t, err, timelock.ErrNotReady)
	require.True(t, core.IsTemporalViolation(err))

	env.setTip(t, 36)
	require.NoError(t, env.governor.Execute(id))
	require.Len(t, env.executor.calls, 1)
	assert.Equal(t, calls[0].Target, env.executor.calls[0].Target)
	assert.Equal(t, calls[0].Payload, env.executor.calls[0].Payload)
	env.requireState(t, id, governor.StateExecuted)

	err = env.governor.Execute(id)
	require.ErrorIs(t, err, timelock.ErrAlreadyExecuted)
	require.Len(t, env.executor.calls, 1)
}

func TestQueueRequiresSuccess(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "not there yet")

	// Still pending
	err := env.governor.Queue(id)
	require.ErrorIs(t, err, governor.ErrProposalNotSucceeded)

	// Active
	env.setTip(t, 16)
	err = env.governor.Queue(id)
	require.ErrorIs(t, err, governor.ErrProposalNotSucceeded)

	// Defeated: nobody voted
	env.setTip(t, 26)
	err = env.governor.Queue(id)
	require.ErrorIs(t, err, governor.ErrProposalNotSucceeded)
}

func TestQueueEmergencyDelay(t *testing.T) {
	env := setupTestGovernor(t)
	calls := testCalls(0x07)
	id, err := env.governor.Propose(
		proposerA,
		policy.ClassEmergency,
		calls,
		"halt the bridge",
	)
	require.NoError(t, err)

	// Emergency voting period is 4: snapshot 15, deadline 19
	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	env.setTip(t, 20)
	env.requireState(t, id, governor.StateSucceeded)

	require.NoError(t, env.governor.Queue(id))
	proposal, err := env.governor.Proposal(id)
	require.NoError(t, err)
	var operationID core.Hash
	copy(operationID[:], proposal.OperationID)
	operation, err := env.timelock.Operation(operationID)
	require.NoError(t, err)
	assert.True(t, operation.Emergency)
	assert.Equal(t, uint64(22), operation.ReadyHeight)
}

func TestExecuteRequiresQueue(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "skip the line")
	env.passProposal(t, id)

	err := env.governor.Execute(id)
	require.ErrorIs(t, err, governor.ErrProposalNotQueued)
	assert.Empty(t, env.executor.calls)
}

func TestCancelByProposer(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "on second thought")

	require.NoError(t, env.governor.Cancel(id, proposerA))
	env.requireState(t, id, governor.StateCanceled)

	// Ballots and queueing are both refused after cancellation
	env.setTip(t, 16)
	err := env.governor.CastVote(voterB, id, models.VoteFor)
	require.ErrorIs(t, err, governor.ErrVotingClosed)
	env.setTip(t, 26)
	err = env.governor.Queue(id)
	require.ErrorIs(t, err, governor.ErrProposalNotSucceeded)

	err = env.governor.Cancel(id, proposerA)
	require.ErrorIs(t, err, governor.ErrAlreadyCanceled)
}

func TestCancelAuthorization(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "contested")

	err := env.governor.Cancel(id, voterB)
	require.ErrorIs(t, err, policy.ErrNotPrivileged)
	require.True(t, core.IsPolicyViolation(err))
	env.requireState(t, id, governor.StatePending)

	// A privileged actor can cancel someone else's proposal
	require.NoError(t, env.governor.Cancel(id, guardian))
	env.requireState(t, id, governor.StateCanceled)
}

func TestCancelWindowClosed(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "too late")
	env.passProposal(t, id)

	err := env.governor.Cancel(id, proposerA)
	require.ErrorIs(t, err, governor.ErrCancelWindowClosed)

	// Queued proposals are equally past canceling
	require.NoError(t, env.governor.Queue(id))
	err = env.governor.Cancel(id, proposerA)
	require.ErrorIs(t, err, governor.ErrCancelWindowClosed)
}

func TestUpgradeProposalLifecycle(t *testing.T) {
	env := setupTestGovernor(t)
	resource := testAddress(0x50)
	newImplementation := testAddress(0x51)
	initPayload := []byte{0x01, 0x02}
	calls := upgradeCalls(resource, newImplementation, initPayload)

	id, err := env.governor.Propose(
		proposerA,
		policy.ClassUpgrade,
		calls,
		"swap the fee module",
	)
	require.NoError(t, err)

	// Upgrade quorum is 15%: 2,000,000 FOR out of 10,000,000 clears it
	env.passProposal(t, id)
	env.requireState(t, id, governor.StateSucceeded)

	require.NoError(t, env.governor.Queue(id))
	env.requireState(t, id, governor.StateQueued)

	// Upgrade proposals queue into the per-resource slot
	proposal, err := env.governor.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, resource.Bytes(), proposal.OperationID)
	upgrade, err := env.timelock.PendingUpgrade(resource)
	require.NoError(t, err)
	assert.Equal(t, uint64(36), upgrade.ReadyHeight)

	err = env.governor.Execute(id)
	require.ErrorIs(t, err, timelock.ErrUpgradeNotReady)
	require.True(t, core.IsTemporalViolation(err))

	env.setTip(t, 36)
	require.NoError(t, env.governor.Execute(id))
	require.Len(t, env.upgradeExecutor.dispatches, 1)
	dispatch := env.upgradeExecutor.dispatches[0]
	assert.Equal(t, resource, dispatch.resource)
	assert.Equal(t, newImplementation, dispatch.newImplementation)
	assert.Equal(t, initPayload, dispatch.initPayload)
	env.requireState(t, id, governor.StateExecuted)

	// The slot is free again for the next swap
	_, err = env.timelock.PendingUpgrade(resource)
	require.ErrorIs(t, err, models.ErrPendingUpgradeNotFound)
}

func TestUpgradeProposalExpiry(t *testing.T) {
	env := setupTestGovernor(t)
	resource := testAddress(0x52)
	calls := upgradeCalls(resource, testAddress(0x53), nil)

	id, err := env.governor.Propose(
		proposerA,
		policy.ClassUpgrade,
		calls,
		"stalled swap",
	)
	require.NoError(t, err)
	env.passProposal(t, id)
	require.NoError(t, env.governor.Queue(id))

	// Queued at 26 with delay 10 and window 20: dead past height 56
	env.setTip(t, 57)
	env.requireState(t, id, governor.StateExpired)
	err = env.governor.Execute(id)
	require.ErrorIs(t, err, timelock.ErrUpgradeExpired)
	require.True(t, core.IsTemporalViolation(err))
	assert.Empty(t, env.upgradeExecutor.dispatches)

	// Cleanup reports the sweep exactly once
	cleaned, err := env.timelock.CleanupExpiredUpgrade(resource)
	require.NoError(t, err)
	assert.True(t, cleaned)
	cleaned, err = env.timelock.CleanupExpiredUpgrade(resource)
	require.NoError(t, err)
	assert.False(t, cleaned)

	env.requireState(t, id, governor.StateExpired)
}

func TestUpgradeSlotReplacedByLaterSchedule(t *testing.T) {
	env := setupTestGovernor(t)
	resource := testAddress(0x54)
	calls := upgradeCalls(resource, testAddress(0x55), nil)

	id, err := env.governor.Propose(
		proposerA,
		policy.ClassUpgrade,
		calls,
		"first swap",
	)
	require.NoError(t, err)
	env.passProposal(t, id)
	require.NoError(t, env.governor.Queue(id))

	// Let the slot expire, then refill it outside the proposal flow
	env.setTip(t, 57)
	replacement := testAddress(0x56)
	require.NoError(
		t,
		env.timelock.ScheduleUpgrade(resource, replacement, nil, false),
	)

	// The expired proposal must not execute the replacement slot
	env.requireState(t, id, governor.StateExpired)
	env.setTip(t, 67)
	err = env.governor.Execute(id)
	require.ErrorIs(t, err, timelock.ErrUpgradeExpired)
	assert.Empty(t, env.upgradeExecutor.dispatches)

	upgrade, err := env.timelock.PendingUpgrade(resource)
	require.NoError(t, err)
	assert.Equal(t, replacement.Bytes(), upgrade.NewImplementation)
}

// A live height feed can advance the tip between the governor's tip read
// and the execution gate's own read while an upgrade proposal queues. The
// queued marker must record the height the gate stamped on the slot, or
// the state derivation would read the proposal's own live slot as a
// replacement and strand a ready upgrade behind ErrUpgradeExpired. Each
// round flips the tip across adjacent heights through the whole Queue
// call; the assertions hold for every interleaving.
func TestQueueUpgradeMarkerTracksSlotUnderTipAdvance(t *testing.T) {
	const rounds = 10
	for round := range rounds {
		env := setupTestGovernor(t)
		resource := testAddress(byte(0x60 + round))
		newImplementation := testAddress(0x5e)
		calls := upgradeCalls(resource, newImplementation, nil)

		id, err := env.governor.Propose(
			proposerA,
			policy.ClassUpgrade,
			calls,
			"swap under a moving tip",
		)
		require.NoError(t, err)
		env.passProposal(t, id)

		stop := make(chan struct{})
		flipped := make(chan struct{})
		go func() {
			defer close(flipped)
			for height := uint64(26); ; height ^= 1 {
				select {
				case <-stop:
					return
				default:
				}
				tip := models.Tip{ID: models.TipEntryID, Height: height}
				if env.db.SetTip(tip, nil) != nil {
					return
				}
			}
		}()
		err = env.governor.Queue(id)
		close(stop)
		<-flipped
		require.NoError(t, err)

		proposal, err := env.governor.Proposal(id)
		require.NoError(t, err)
		require.NotNil(t, proposal.QueuedHeight)
		upgrade, err := env.timelock.PendingUpgrade(resource)
		require.NoError(t, err)
		assert.Equal(t, upgrade.ScheduledHeight, *proposal.QueuedHeight)
		env.requireState(t, id, governor.StateQueued)

		// The queued proposal stays executable through the governor
		env.setTip(t, upgrade.ReadyHeight)
		require.NoError(t, env.governor.Execute(id))
		env.requireState(t, id, governor.StateExecuted)
	}
}
