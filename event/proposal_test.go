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

package event_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhq/gavel/event"
)

func TestProposalEventTypes(t *testing.T) {
	assert.Equal(
		t,
		event.EventType("proposal.created"),
		event.ProposalCreatedEventType,
	)
	assert.Equal(
		t,
		event.EventType("proposal.vote"),
		event.ProposalVoteEventType,
	)
	assert.Equal(
		t,
		event.EventType("proposal.canceled"),
		event.ProposalCanceledEventType,
	)
	assert.Equal(
		t,
		event.EventType("proposal.queued"),
		event.ProposalQueuedEventType,
	)
	assert.Equal(
		t,
		event.EventType("proposal.executed"),
		event.ProposalExecutedEventType,
	)
}

func TestProposalCreatedEventPublishSubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	testEvent := event.ProposalCreatedEvent{
		ProposalID:      []byte{0xab, 0xcd},
		Class:           2,
		Proposer:        []byte{0x01, 0x02},
		SubmittedHeight: 100,
		SnapshotHeight:  110,
		DeadlineHeight:  210,
		CallCount:       3,
	}

	_, subCh := eb.Subscribe(event.ProposalCreatedEventType)

	eb.Publish(
		event.ProposalCreatedEventType,
		event.NewEvent(event.ProposalCreatedEventType, testEvent),
	)

	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		require.Equal(t, event.ProposalCreatedEventType, evt.Type)

		created, ok := evt.Data.(event.ProposalCreatedEvent)
		require.True(t, ok, "event data was not ProposalCreatedEvent")

		assert.Equal(t, []byte{0xab, 0xcd}, created.ProposalID)
		assert.Equal(t, uint8(2), created.Class)
		assert.Equal(t, uint64(100), created.SubmittedHeight)
		assert.Equal(t, uint64(110), created.SnapshotHeight)
		assert.Equal(t, uint64(210), created.DeadlineHeight)
		assert.Equal(t, 3, created.CallCount)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for proposal created event")
	}
}

func TestProposalVoteEventSubscribeFunc(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	testEvent := event.ProposalVoteEvent{
		ProposalID: []byte{0x11},
		Voter:      []byte{0x22},
		Choice:     1,
		Weight:     big.NewInt(5000),
		CastHeight: 150,
	}

	receivedCh := make(chan event.ProposalVoteEvent, 1)

	eb.SubscribeFunc(event.ProposalVoteEventType, func(evt event.Event) {
		if voteEvent, ok := evt.Data.(event.ProposalVoteEvent); ok {
			receivedCh <- voteEvent
		}
	})

	eb.Publish(
		event.ProposalVoteEventType,
		event.NewEvent(event.ProposalVoteEventType, testEvent),
	)

	select {
	case received := <-receivedCh:
		assert.Equal(t, testEvent.ProposalID, received.ProposalID)
		assert.Equal(t, testEvent.Voter, received.Voter)
		assert.Equal(t, testEvent.Choice, received.Choice)
		assert.Zero(t, received.Weight.Cmp(big.NewInt(5000)))
		assert.Equal(t, testEvent.CastHeight, received.CastHeight)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for proposal vote event via SubscribeFunc")
	}
}
