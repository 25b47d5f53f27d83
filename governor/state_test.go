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

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalStateString(t *testing.T) {
	assert.Equal(t, "PENDING", governor.StatePending.String())
	assert.Equal(t, "ACTIVE", governor.StateActive.String())
	assert.Equal(t, "CANCELED", governor.StateCanceled.String())
	assert.Equal(t, "DEFEATED", governor.StateDefeated.String())
	assert.Equal(t, "SUCCEEDED", governor.StateSucceeded.String())
	assert.Equal(t, "QUEUED", governor.StateQueued.String())
	assert.Equal(t, "EXECUTED", governor.StateExecuted.String())
	assert.Equal(t, "EXPIRED", governor.StateExpired.String())
}

func TestUnknownProposalAccessors(t *testing.T) {
	env := setupTestGovernor(t)
	var bogus core.Hash
	bogus[0] = 0xff

	_, err := env.governor.State(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	_, err = env.governor.Proposal(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	_, _, _, err = env.governor.Votes(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	_, err = env.governor.Ballots(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	_, err = env.governor.ProposalCalls(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	_, err = env.governor.ProposalDescription(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)

	err = env.governor.Queue(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	err = env.governor.Execute(bogus)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
	err = env.governor.Cancel(bogus, proposerA)
	require.ErrorIs(t, err, governor.ErrUnknownProposal)
}

func TestStateWindowBoundaries(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "boundary walk")

	// Snapshot 15, deadline 25
	env.requireState(t, id, governor.StatePending)
	env.setTip(t, 15)
	env.requireState(t, id, governor.StatePending)
	env.setTip(t, 16)
	env.requireState(t, id, governor.StateActive)
	env.setTip(t, 25)
	env.requireState(t, id, governor.StateActive)
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateDefeated)
}

// An against-only turnout never reaches quorum: with 10,000,000 total and a
// 10% participation floor, a single 2,000,000 AGAINST ballot leaves
// participation at zero and the proposal defeated.
func TestAgainstOnlyIsDefeated(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "unopposed opposition")

	env.setTip(t, 16)
	require.NoError(
		t,
		env.governor.CastVote(proposerA, id, models.VoteAgainst),
	)
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateDefeated)
}

// 2,000,000 FOR plus 1,000,000 ABSTAIN is 3,000,000 participating weight
// against a 1,000,000 floor, and FOR outweighs AGAINST, so the proposal
// succeeds even though the abstention took no side.
func TestForPlusAbstainSucceeds(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "abstentions count for quorum")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	require.NoError(t, env.governor.CastVote(voterB, id, models.VoteAbstain))
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateSucceeded)
}

// 900,000 FOR beats 100,000 AGAINST, but participation is only the FOR
// weight: 900,000 falls short of the 1,000,000 floor. Counting the AGAINST
// ballot toward participation would wrongly pass this proposal.
func TestAgainstExcludedFromParticipation(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "narrow win, thin turnout")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(voterC, id, models.VoteFor))
	require.NoError(
		t,
		env.governor.CastVote(smallFry, id, models.VoteAgainst),
	)
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateDefeated)
}

// Passage requires strictly more FOR than AGAINST weight
func TestTieIsDefeated(t *testing.T) {
	env := setupTestGovernor(t)
	tieVoter := testAddress(0x2a)
	require.NoError(
		t,
		env.ledger.Record(tieVoter, big.NewInt(2_000_000), 6),
	)
	id := env.proposeStandard(t, "dead heat")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	require.NoError(
		t,
		env.governor.CastVote(tieVoter, id, models.VoteAgainst),
	)
	require.NoError(t, env.governor.CastVote(whale, id, models.VoteAbstain))
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateDefeated)
}

// Abstentions alone clear the participation floor but express no support,
// so the proposal still fails on the tally
func TestAbstainAloneIsDefeated(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "shrugged at")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(whale, id, models.VoteAbstain))
	env.setTip(t, 26)
	env.requireState(t, id, governor.StateDefeated)
}

func TestVotesReturnsCopies(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "hands off the tallies")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))

	_, forWeight, _, err := env.governor.Votes(id)
	require.NoError(t, err)
	forWeight.SetInt64(0)

	_, forWeight, _, err = env.governor.Votes(id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000), forWeight)
}

func TestBallots(t *testing.T) {
	env := setupTestGovernor(t)
	id := env.proposeStandard(t, "roll call")

	env.setTip(t, 16)
	require.NoError(t, env.governor.CastVote(proposerA, id, models.VoteFor))
	env.setTip(t, 17)
	require.NoError(
		t,
		env.governor.CastVote(voterB, id, models.VoteAgainst),
	)

	ballots, err := env.governor.Ballots(id)
	require.NoError(t, err)
	require.Len(t, ballots, 2)
	assert.Equal(t, proposerA.Bytes(), ballots[0].Voter)
	assert.Equal(t, uint8(models.VoteFor), ballots[0].Choice)
	assert.Equal(t, big.NewInt(2_000_000), ballots[0].Weight.Int)
	assert.Equal(t, uint64(16), ballots[0].CastHeight)
	assert.Equal(t, voterB.Bytes(), ballots[1].Voter)
	assert.Equal(t, uint8(models.VoteAgainst), ballots[1].Choice)
	assert.Equal(t, big.NewInt(1_000_000), ballots[1].Weight.Int)
	assert.Equal(t, uint64(17), ballots[1].CastHeight)
}
