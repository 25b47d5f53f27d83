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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhq/gavel/event"
)

func TestUpgradeEventTypes(t *testing.T) {
	assert.Equal(
		t,
		event.EventType("upgrade.scheduled"),
		event.UpgradeScheduledEventType,
	)
	assert.Equal(
		t,
		event.EventType("upgrade.executed"),
		event.UpgradeExecutedEventType,
	)
	assert.Equal(
		t,
		event.EventType("upgrade.expired"),
		event.UpgradeExpiredEventType,
	)
}

func TestUpgradeScheduledEventPublishSubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	testEvent := event.UpgradeScheduledEvent{
		Resource:          []byte{0x0a},
		NewImplementation: []byte{0x0b},
		ScheduledHeight:   500,
		ReadyHeight:       600,
		Emergency:         true,
	}

	_, subCh := eb.Subscribe(event.UpgradeScheduledEventType)

	eb.Publish(
		event.UpgradeScheduledEventType,
		event.NewEvent(event.UpgradeScheduledEventType, testEvent),
	)

	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		require.Equal(t, event.UpgradeScheduledEventType, evt.Type)

		scheduled, ok := evt.Data.(event.UpgradeScheduledEvent)
		require.True(t, ok, "event data was not UpgradeScheduledEvent")

		assert.Equal(t, []byte{0x0a}, scheduled.Resource)
		assert.Equal(t, []byte{0x0b}, scheduled.NewImplementation)
		assert.Equal(t, uint64(500), scheduled.ScheduledHeight)
		assert.Equal(t, uint64(600), scheduled.ReadyHeight)
		assert.True(t, scheduled.Emergency)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for upgrade scheduled event")
	}
}

func TestUpgradeExpiredEventZeroValues(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, subCh := eb.Subscribe(event.UpgradeExpiredEventType)

	eb.Publish(
		event.UpgradeExpiredEventType,
		event.NewEvent(
			event.UpgradeExpiredEventType,
			event.UpgradeExpiredEvent{},
		),
	)

	select {
	case evt := <-subCh:
		expired, ok := evt.Data.(event.UpgradeExpiredEvent)
		require.True(t, ok, "event data was not UpgradeExpiredEvent")
		assert.Nil(t, expired.Resource)
		assert.Equal(t, uint64(0), expired.ReadyHeight)
		assert.Equal(t, uint64(0), expired.CleanedHeight)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for upgrade expired event")
	}
}
