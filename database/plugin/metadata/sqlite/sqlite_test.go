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
	"math/big"
	"testing"
	"time"

	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *MetadataStoreSqlite {
	t.Helper()
	store, err := New("", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Start())
	require.NoError(t, store.DB().AutoMigrate(models.MigrateModels...))
	t.Cleanup(func() {
		store.Close() //nolint:errcheck
	})
	return store
}

func testSubject(fill byte) []byte {
	subject := make([]byte, 20)
	for i := range subject {
		subject[i] = fill
	}
	return subject
}

func testHash(fill byte) []byte {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = fill
	}
	return hash
}

func TestCheckpointSeries(t *testing.T) {
	store := setupTestStore(t)
	subject := testSubject(0x01)

	// No checkpoints yet
	checkpoints, err := store.GetCheckpointsBySubject(subject, nil)
	require.NoError(t, err)
	assert.Empty(t, checkpoints)

	// Insert out of order, expect ascending height on read
	for _, height := range []uint64{300, 100, 200} {
		err = store.SetCheckpoint(&models.Checkpoint{
			Subject: subject,
			Height:  height,
			Value:   types.NewBigInt(big.NewInt(int64(height) * 10)),
		}, nil)
		require.NoError(t, err)
	}

	checkpoints, err = store.GetCheckpointsBySubject(subject, nil)
	require.NoError(t, err)
	require.Len(t, checkpoints, 3)
	assert.Equal(t, uint64(100), checkpoints[0].Height)
	assert.Equal(t, uint64(200), checkpoints[1].Height)
	assert.Equal(t, uint64(300), checkpoints[2].Height)
	assert.Equal(t, "1000", checkpoints[0].Value.String())
}

func TestCheckpointOverwriteSameHeight(t *testing.T) {
	store := setupTestStore(t)
	subject := testSubject(0x02)

	err := store.SetCheckpoint(&models.Checkpoint{
		Subject: subject,
		Height:  100,
		Value:   types.NewBigInt(big.NewInt(500)),
	}, nil)
	require.NoError(t, err)

	// Second write at the same height overwrites in place
	err = store.SetCheckpoint(&models.Checkpoint{
		Subject: subject,
		Height:  100,
		Value:   types.NewBigInt(big.NewInt(700)),
	}, nil)
	require.NoError(t, err)

	checkpoints, err := store.GetCheckpointsBySubject(subject, nil)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "700", checkpoints[0].Value.String())
}

func TestCheckpointSubjects(t *testing.T) {
	store := setupTestStore(t)

	for _, fill := range []byte{0x0a, 0x0b} {
		err := store.SetCheckpoint(&models.Checkpoint{
			Subject: testSubject(fill),
			Height:  1,
			Value:   types.NewBigInt(big.NewInt(1)),
		}, nil)
		require.NoError(t, err)
	}
	// Second checkpoint for an existing subject must not duplicate it
	err := store.SetCheckpoint(&models.Checkpoint{
		Subject: testSubject(0x0a),
		Height:  2,
		Value:   types.NewBigInt(big.NewInt(2)),
	}, nil)
	require.NoError(t, err)

	subjects, err := store.GetCheckpointSubjects(nil)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
}

func TestProposalRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0x11)

	// Missing proposals return nil without error
	proposal, err := store.GetProposal(proposalID, nil)
	require.NoError(t, err)
	assert.Nil(t, proposal)

	err = store.SetProposal(&models.Proposal{
		ProposalID:      proposalID,
		Class:           1,
		Proposer:        testSubject(0x22),
		DescriptionHash: testHash(0x33),
		SubmittedHeight: 1000,
		SnapshotHeight:  1010,
		DeadlineHeight:  1510,
		AgainstWeight:   types.NewBigInt(big.NewInt(0)),
		ForWeight:       types.NewBigInt(big.NewInt(0)),
		AbstainWeight:   types.NewBigInt(big.NewInt(0)),
	}, nil)
	require.NoError(t, err)

	proposal, err = store.GetProposal(proposalID, nil)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, uint8(1), proposal.Class)
	assert.Equal(t, uint64(1010), proposal.SnapshotHeight)
	assert.Nil(t, proposal.QueuedHeight)
}

func TestProposalUpsertPreservesIdentity(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0x44)

	err := store.SetProposal(&models.Proposal{
		ProposalID:      proposalID,
		Class:           0,
		Proposer:        testSubject(0x22),
		DescriptionHash: testHash(0x33),
		SubmittedHeight: 1000,
		SnapshotHeight:  1010,
		DeadlineHeight:  1510,
		AgainstWeight:   types.NewBigInt(big.NewInt(0)),
		ForWeight:       types.NewBigInt(big.NewInt(0)),
		AbstainWeight:   types.NewBigInt(big.NewInt(0)),
	}, nil)
	require.NoError(t, err)

	// Update tallies and queue transition; the window columns must not move
	queuedHeight := uint64(1600)
	err = store.SetProposal(&models.Proposal{
		ProposalID:      proposalID,
		Class:           0,
		Proposer:        testSubject(0x22),
		DescriptionHash: testHash(0x33),
		SubmittedHeight: 9999,
		SnapshotHeight:  9999,
		DeadlineHeight:  9999,
		AgainstWeight:   types.NewBigInt(big.NewInt(100)),
		ForWeight:       types.NewBigInt(big.NewInt(2000)),
		AbstainWeight:   types.NewBigInt(big.NewInt(50)),
		OperationID:     testHash(0x55),
		QueuedHeight:    &queuedHeight,
	}, nil)
	require.NoError(t, err)

	proposal, err := store.GetProposal(proposalID, nil)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, uint64(1000), proposal.SubmittedHeight)
	assert.Equal(t, uint64(1010), proposal.SnapshotHeight)
	assert.Equal(t, uint64(1510), proposal.DeadlineHeight)
	assert.Equal(t, "2000", proposal.ForWeight.String())
	assert.Equal(t, testHash(0x55), proposal.OperationID)
	require.NotNil(t, proposal.QueuedHeight)
	assert.Equal(t, uint64(1600), *proposal.QueuedHeight)
}

func TestProposalsSubmissionOrder(t *testing.T) {
	store := setupTestStore(t)

	for i, height := range []uint64{500, 100, 300} {
		err := store.SetProposal(&models.Proposal{
			ProposalID:      testHash(byte(0x60 + i)),
			Proposer:        testSubject(0x22),
			DescriptionHash: testHash(0x33),
			SubmittedHeight: height,
			SnapshotHeight:  height + 10,
			DeadlineHeight:  height + 510,
			AgainstWeight:   types.NewBigInt(big.NewInt(0)),
			ForWeight:       types.NewBigInt(big.NewInt(0)),
			AbstainWeight:   types.NewBigInt(big.NewInt(0)),
		}, nil)
		require.NoError(t, err)
	}

	proposals, err := store.GetProposals(nil)
	require.NoError(t, err)
	require.Len(t, proposals, 3)
	assert.Equal(t, uint64(100), proposals[0].SubmittedHeight)
	assert.Equal(t, uint64(300), proposals[1].SubmittedHeight)
	assert.Equal(t, uint64(500), proposals[2].SubmittedHeight)
}

func TestVoteRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0x71)
	voter := testSubject(0x72)

	vote, err := store.GetVote(proposalID, voter, nil)
	require.NoError(t, err)
	assert.Nil(t, vote)

	err = store.SetVote(&models.Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     models.VoteFor,
		Weight:     types.NewBigInt(big.NewInt(1500)),
		CastHeight: 1200,
	}, nil)
	require.NoError(t, err)

	vote, err = store.GetVote(proposalID, voter, nil)
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, uint8(models.VoteFor), vote.Choice)
	assert.Equal(t, "1500", vote.Weight.String())
}

func TestVoteUniqueIndex(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0x81)
	voter := testSubject(0x82)

	err := store.SetVote(&models.Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     models.VoteFor,
		Weight:     types.NewBigInt(big.NewInt(100)),
		CastHeight: 1100,
	}, nil)
	require.NoError(t, err)

	// Second ballot from the same voter violates the unique index
	err = store.SetVote(&models.Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     models.VoteAgainst,
		Weight:     types.NewBigInt(big.NewInt(100)),
		CastHeight: 1101,
	}, nil)
	assert.Error(t, err)

	// Same voter on a different proposal is fine
	err = store.SetVote(&models.Vote{
		ProposalID: testHash(0x83),
		Voter:      voter,
		Choice:     models.VoteAbstain,
		Weight:     types.NewBigInt(big.NewInt(100)),
		CastHeight: 1102,
	}, nil)
	assert.NoError(t, err)
}

func TestVotesByProposal(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0x91)

	for i, height := range []uint64{1300, 1100, 1200} {
		err := store.SetVote(&models.Vote{
			ProposalID: proposalID,
			Voter:      testSubject(byte(0x92 + i)),
			Choice:     models.VoteFor,
			Weight:     types.NewBigInt(big.NewInt(10)),
			CastHeight: height,
		}, nil)
		require.NoError(t, err)
	}

	votes, err := store.GetVotesByProposal(proposalID, nil)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	assert.Equal(t, uint64(1100), votes[0].CastHeight)
	assert.Equal(t, uint64(1200), votes[1].CastHeight)
	assert.Equal(t, uint64(1300), votes[2].CastHeight)
}

func TestTimelockOperationDoneTransition(t *testing.T) {
	store := setupTestStore(t)
	operationID := testHash(0xa1)

	op, err := store.GetTimelockOperation(operationID, nil)
	require.NoError(t, err)
	assert.Nil(t, op)

	err = store.SetTimelockOperation(&models.TimelockOperation{
		OperationID:     operationID,
		Predecessor:     testHash(0xa2),
		Salt:            testHash(0xa3),
		ScheduledHeight: 1500,
		ReadyHeight:     1800,
	}, nil)
	require.NoError(t, err)

	op, err = store.GetTimelockOperation(operationID, nil)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Nil(t, op.DoneHeight)

	// Mark done; the schedule columns must not move
	doneHeight := uint64(1900)
	err = store.SetTimelockOperation(&models.TimelockOperation{
		OperationID:     operationID,
		Predecessor:     testHash(0xff),
		Salt:            testHash(0xff),
		ScheduledHeight: 9999,
		ReadyHeight:     9999,
		DoneHeight:      &doneHeight,
	}, nil)
	require.NoError(t, err)

	op, err = store.GetTimelockOperation(operationID, nil)
	require.NoError(t, err)
	require.NotNil(t, op)
	require.NotNil(t, op.DoneHeight)
	assert.Equal(t, uint64(1900), *op.DoneHeight)
	assert.Equal(t, testHash(0xa2), op.Predecessor)
	assert.Equal(t, uint64(1800), op.ReadyHeight)
}

func TestPendingUpgradeLifecycle(t *testing.T) {
	store := setupTestStore(t)
	resource := testSubject(0xb1)

	upgrade, err := store.GetPendingUpgrade(resource, nil)
	require.NoError(t, err)
	assert.Nil(t, upgrade)

	err = store.SetPendingUpgrade(&models.PendingUpgrade{
		Resource:          resource,
		NewImplementation: testSubject(0xb2),
		InitPayload:       []byte{0x01, 0x02},
		ScheduledHeight:   2000,
		ReadyHeight:       2300,
	}, nil)
	require.NoError(t, err)

	// One live upgrade per resource
	err = store.SetPendingUpgrade(&models.PendingUpgrade{
		Resource:          resource,
		NewImplementation: testSubject(0xb3),
		ScheduledHeight:   2001,
		ReadyHeight:       2301,
	}, nil)
	assert.Error(t, err)

	upgrade, err = store.GetPendingUpgrade(resource, nil)
	require.NoError(t, err)
	require.NotNil(t, upgrade)
	assert.Equal(t, testSubject(0xb2), upgrade.NewImplementation)

	err = store.DeletePendingUpgrade(resource, nil)
	require.NoError(t, err)

	upgrade, err = store.GetPendingUpgrade(resource, nil)
	require.NoError(t, err)
	assert.Nil(t, upgrade)

	// Deleting again is not an error
	err = store.DeletePendingUpgrade(resource, nil)
	assert.NoError(t, err)
}

func TestPendingUpgradesOrderedByReadiness(t *testing.T) {
	store := setupTestStore(t)

	for i, ready := range []uint64{2500, 2100, 2300} {
		err := store.SetPendingUpgrade(&models.PendingUpgrade{
			Resource:          testSubject(byte(0xc0 + i)),
			NewImplementation: testSubject(0xcf),
			ScheduledHeight:   2000,
			ReadyHeight:       ready,
		}, nil)
		require.NoError(t, err)
	}

	upgrades, err := store.GetPendingUpgrades(nil)
	require.NoError(t, err)
	require.Len(t, upgrades, 3)
	assert.Equal(t, uint64(2100), upgrades[0].ReadyHeight)
	assert.Equal(t, uint64(2300), upgrades[1].ReadyHeight)
	assert.Equal(t, uint64(2500), upgrades[2].ReadyHeight)
}

func TestGovernanceParamUpsert(t *testing.T) {
	store := setupTestStore(t)

	param, err := store.GetGovernanceParam(
		models.ParamProposerThresholdBps,
		nil,
	)
	require.NoError(t, err)
	assert.Nil(t, param)

	err = store.SetGovernanceParam(&models.GovernanceParam{
		Name:          models.ParamProposerThresholdBps,
		Value:         300,
		UpdatedBy:     testSubject(0xd1),
		UpdatedHeight: 100,
	}, nil)
	require.NoError(t, err)

	err = store.SetGovernanceParam(&models.GovernanceParam{
		Name:          models.ParamProposerThresholdBps,
		Value:         500,
		UpdatedBy:     testSubject(0xd2),
		UpdatedHeight: 200,
	}, nil)
	require.NoError(t, err)

	param, err = store.GetGovernanceParam(
		models.ParamProposerThresholdBps,
		nil,
	)
	require.NoError(t, err)
	require.NotNil(t, param)
	assert.Equal(t, uint64(500), param.Value)
	assert.Equal(t, testSubject(0xd2), param.UpdatedBy)
	assert.Equal(t, uint64(200), param.UpdatedHeight)
}

func TestTipRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	// Fresh store reports height zero
	tip, err := store.GetTip(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tip.Height)

	err = store.SetTip(models.Tip{Height: 1234}, nil)
	require.NoError(t, err)

	tip, err = store.GetTip(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), tip.Height)

	// Advancing the tip updates the single row
	err = store.SetTip(models.Tip{Height: 1235}, nil)
	require.NoError(t, err)

	tip, err = store.GetTip(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1235), tip.Height)

	var count int64
	result := store.DB().Model(&models.Tip{}).Count(&count)
	require.NoError(t, result.Error)
	assert.Equal(t, int64(1), count)
}

func TestCommitTimestamp(t *testing.T) {
	store := setupTestStore(t)

	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(1234567890, txn))
	require.NoError(t, txn.Commit())

	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), ts)
}

func TestTransactionRollback(t *testing.T) {
	store := setupTestStore(t)
	proposalID := testHash(0xe1)

	txn := store.Transaction()
	err := store.SetProposal(&models.Proposal{
		ProposalID:      proposalID,
		Proposer:        testSubject(0x22),
		DescriptionHash: testHash(0x33),
		SubmittedHeight: 1000,
		SnapshotHeight:  1010,
		DeadlineHeight:  1510,
		AgainstWeight:   types.NewBigInt(big.NewInt(0)),
		ForWeight:       types.NewBigInt(big.NewInt(0)),
		AbstainWeight:   types.NewBigInt(big.NewInt(0)),
	}, txn)
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())

	proposal, err := store.GetProposal(proposalID, nil)
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestResolveDBWrongTxnType(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetProposal(testHash(0xf1), badTxn{})
	assert.ErrorIs(t, err, types.ErrTxnWrongType)
}

func TestVacuumDisabled(t *testing.T) {
	store, err := NewWithOptions(WithVacuumInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close() //nolint:errcheck
	})

	store.timerMutex.Lock()
	timer := store.timerVacuum
	store.timerMutex.Unlock()
	assert.Nil(t, timer, "zero interval should not arm the vacuum timer")
}

func TestVacuumOnFileBackedStore(t *testing.T) {
	store, err := NewWithOptions(
		WithDataDir(t.TempDir()),
		WithVacuumInterval(time.Hour),
	)
	require.NoError(t, err)

	require.NoError(t, store.runVacuum())

	// After close the vacuum becomes a no-op rather than racing the
	// connection teardown
	require.NoError(t, store.Close())
	assert.NoError(t, store.runVacuum())
}

type badTxn struct{}

func (badTxn) Commit() error   { return nil }
func (badTxn) Rollback() error { return nil }
