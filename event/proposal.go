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

package event

import "math/big"

// ProposalCreatedEventType is the event type for new proposal submissions
const ProposalCreatedEventType = EventType("proposal.created")

// ProposalCreatedEvent is emitted when a proposal passes the submission
// checks and is persisted. The voting window is fixed at this point.
type ProposalCreatedEvent struct {
	// ProposalID is the content-derived proposal ID
	ProposalID []byte
	// Class is the proposal class
	Class uint8
	// Proposer is the submitting address
	Proposer []byte
	// SubmittedHeight is the tip height at submission
	SubmittedHeight uint64
	// SnapshotHeight is the height whose weights decide the vote
	SnapshotHeight uint64
	// DeadlineHeight is the last height at which ballots are accepted
	DeadlineHeight uint64
	// CallCount is the number of calls in the proposal batch
	CallCount int
}

// ProposalVoteEventType is the event type for cast ballots
const ProposalVoteEventType = EventType("proposal.vote")

// ProposalVoteEvent is emitted when a ballot is accepted and tallied
type ProposalVoteEvent struct {
	// ProposalID is the content-derived proposal ID
	ProposalID []byte
	// Voter is the address that cast the ballot
	Voter []byte
	// Choice is the ballot choice (against, for or abstain)
	Choice uint8
	// Weight is the snapshot weight credited to the tally
	Weight *big.Int
	// CastHeight is the tip height when the ballot was cast
	CastHeight uint64
}

// ProposalCanceledEventType is the event type for canceled proposals
const ProposalCanceledEventType = EventType("proposal.canceled")

// ProposalCanceledEvent is emitted when a proposal is canceled before
// queueing
type ProposalCanceledEvent struct {
	// ProposalID is the content-derived proposal ID
	ProposalID []byte
	// CanceledBy is the address that requested the cancellation
	CanceledBy []byte
	// CanceledHeight is the tip height at cancellation
	CanceledHeight uint64
}

// ProposalQueuedEventType is the event type for queued proposals
const ProposalQueuedEventType = EventType("proposal.queued")

// ProposalQueuedEvent is emitted when a succeeded proposal is handed to
// the timelock
type ProposalQueuedEvent struct {
	// ProposalID is the content-derived proposal ID
	ProposalID []byte
	// OperationID is the timelock operation the proposal was queued as
	OperationID []byte
	// QueuedHeight is the tip height at queueing
	QueuedHeight uint64
	// ReadyHeight is the earliest height at which the operation may execute
	ReadyHeight uint64
}

// ProposalExecutedEventType is the event type for executed proposals
const ProposalExecutedEventType = EventType("proposal.executed")

// ProposalExecutedEvent is emitted after the proposal's call batch has
// been dispatched through the timelock
type ProposalExecutedEvent struct {
	// ProposalID is the content-derived proposal ID
	ProposalID []byte
	// OperationID is the timelock operation that carried the batch
	OperationID []byte
	// ExecutedHeight is the tip height at execution
	ExecutedHeight uint64
}
