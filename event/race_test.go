package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The tests in this file are probabilistic: each runs its scenario many
// times so the race detector gets a chance to observe an interleaving where
// Publish, Unsubscribe and Stop overlap. None of them assert ordering, only
// that nothing panics, deadlocks or sends on a closed channel.

func TestPublishRacesUnsubscribe(t *testing.T) {
	const rounds = 1000
	typ := EventType("tally.updated")
	for range rounds {
		eb := NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(typ)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for seq := range 10 {
				eb.Publish(typ, NewEvent(typ, seq))
			}
		}()
		go func() {
			defer wg.Done()
			eb.Unsubscribe(typ, subId)
			eb.Stop()
		}()
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		wg.Wait()
	}
}

func TestStopRacesSubscribeFunc(t *testing.T) {
	const rounds = 1000
	typ := EventType("proposal.created")
	for range rounds {
		eb := NewEventBus(nil, nil)

		var wg sync.WaitGroup
		var registered atomic.Int32
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if eb.SubscribeFunc(typ, func(Event) {}) != 0 {
					registered.Add(1)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Stop()
		}()
		wg.Wait()

		// Subscriptions that landed after Stop's snapshot are still live;
		// a second Stop closes them so their goroutines exit
		eb.Stop()
	}
}

// TestPublishWithSaturatedSubscriber verifies Publish returns promptly when
// a subscriber's buffer is already full. A blocking send here would wedge
// the whole bus: Deliver holds the subscriber read lock while sending and
// Close needs the write lock.
func TestPublishWithSaturatedSubscriber(t *testing.T) {
	eb := NewEventBus(nil, nil)
	typ := EventType("vote.cast")
	_, ch := eb.Subscribe(typ)

	for seq := range EventQueueSize {
		eb.Publish(typ, NewEvent(typ, seq))
	}

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		eb.Publish(typ, NewEvent(typ, "straggler"))
	}()
	require.Eventually(t, func() bool {
		select {
		case <-returned:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond,
		"Publish must not block on a saturated subscriber",
	)

	// Everything that fit is still there and the overflow was dropped
	for drained := 0; drained < EventQueueSize; drained++ {
		select {
		case <-ch:
		default:
			t.Fatalf("only %d of %d buffered events arrived", drained, EventQueueSize)
		}
	}
	select {
	case <-ch:
		t.Fatal("the event past the buffer cap must be dropped")
	default:
	}

	eb.Stop()
}

func TestUnsubscribeWithSaturatedSubscriber(t *testing.T) {
	const rounds = 500
	typ := EventType("upgrade.scheduled")
	for range rounds {
		eb := NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(typ)
		for seq := range EventQueueSize {
			eb.Publish(typ, NewEvent(typ, seq))
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for seq := range 50 {
				eb.Publish(typ, NewEvent(typ, 100+seq))
			}
		}()
		go func() {
			defer wg.Done()
			eb.Unsubscribe(typ, subId)
		}()
		go func() {
			for range ch {
			}
		}()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("Unsubscribe deadlocked against a publisher on a full buffer")
		}

		eb.Stop()
	}
}
