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

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// EventQueueSize is the buffer of each channel subscriber
	EventQueueSize = 20
	// AsyncQueueSize caps events waiting for asynchronous delivery
	AsyncQueueSize = 1000
	// AsyncWorkerPoolSize is the number of async delivery workers
	AsyncWorkerPoolSize = 4
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// EventBus fans governance events out to subscribers by event type.
// Synchronous publishes deliver before returning; asynchronous publishes go
// through a bounded worker pool.
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	// The pond pool queue is unbounded, so asyncPending enforces the
	// queue cap and lets PublishAsync report drops without blocking
	asyncPool    pond.Pool
	asyncPending atomic.Int64
	stopped      bool
	stopMu       sync.RWMutex
	stopOpMu     sync.Mutex // Serializes Stop calls so pools are swapped once
}

func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = discardLogger
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger,
		asyncPool:   pond.NewPool(AsyncWorkerPoolSize),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	return e
}

// register adds a subscriber under the next id. Callers must hold e.mu.
func (e *EventBus) register(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.
			WithLabelValues(string(eventType), subscriberKind(sub)).
			Inc()
	}
	return subId
}

// Subscribe returns a channel receiving events of the given type
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chSub := newChannelSubscriber(EventQueueSize, e.logger)
	return e.register(eventType, chSub), chSub.ch
}

// RegisterSubscriber adds an external Subscriber implementation, such as a
// network-backed consumer, and returns its id
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.register(eventType, sub)
}

// SubscribeFunc runs the handler on each event of the given type. The
// handler goroutine exits when the subscription is closed by Unsubscribe
// or Stop.
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			e.runHandler(handlerFunc, evt)
		}
	}()
	return subId
}

// runHandler shields the delivery goroutine from a panicking handler
func (e *EventBus) runHandler(handlerFunc EventHandlerFunc, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				"event handler panic",
				"type", evt.Type,
				"panic", r,
			)
		}
	}()
	handlerFunc(evt)
}

// Unsubscribe removes a subscriber and closes it
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var sub Subscriber
	if typeSubs, ok := e.subscribers[eventType]; ok {
		if s, ok := typeSubs[subId]; ok {
			sub = s
			delete(typeSubs, subId)
			if len(typeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.
					WithLabelValues(string(eventType), subscriberKind(s)).
					Dec()
			}
		}
	}
	e.mu.Unlock()

	// Close outside the lock; a blocked Deliver holds the subscriber's
	// own lock, not the bus lock
	if sub != nil {
		sub.Close()
	}
}

type subscriberRef struct {
	id  EventSubscriberId
	sub Subscriber
}

// snapshotSubscribers copies the subscriber set for a type so delivery
// happens without holding the bus lock
func (e *EventBus) snapshotSubscribers(eventType EventType) []subscriberRef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	subs := e.subscribers[eventType]
	refs := make([]subscriberRef, 0, len(subs))
	for id, sub := range subs {
		refs = append(refs, subscriberRef{id: id, sub: sub})
	}
	return refs
}

// deliver hands the event to one subscriber, converting a panic inside the
// Subscriber implementation into an error
func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber deliver panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// Publish delivers the event to every subscriber of the type before
// returning. A subscriber whose Deliver fails is unregistered and closed.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	for _, ref := range e.snapshotSubscribers(eventType) {
		err := deliver(ref.sub, evt)
		if err == nil {
			continue
		}
		e.Unsubscribe(eventType, ref.id)
		if e.metrics != nil {
			e.metrics.deliveryErrors.
				WithLabelValues(string(eventType), subscriberKind(ref.sub)).
				Inc()
		}
		e.logger.Debug(
			"event delivery error",
			"type", eventType,
			"err", err,
		)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// PublishAsync enqueues an event for delivery by the worker pool and
// returns immediately. It reports false when the bus is stopped or the
// async queue is full, in which case the event is dropped. Use it for
// events where delivery matters but the publisher cannot block.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	// Holding the read lock across Submit keeps Stop from swapping the
	// pool out from under an in-flight submission
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return false
	}

	if e.asyncPending.Load() >= AsyncQueueSize {
		e.logger.Warn(
			"async event queue full, dropping event",
			"type", eventType,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.
				WithLabelValues(string(eventType), "async-dropped").
				Inc()
		}
		return false
	}

	e.asyncPending.Add(1)
	e.asyncPool.Submit(func() {
		defer e.asyncPending.Add(-1)
		e.Publish(eventType, evt)
	})
	return true
}

// Stop drains the async pool, closes every subscriber, and clears the
// subscriber map, so SubscribeFunc goroutines exit cleanly during
// shutdown. The bus stays usable afterwards; a fresh pool replaces the
// drained one.
func (e *EventBus) Stop() {
	// Serialize concurrent Stops so only one replacement pool is swapped in
	e.stopOpMu.Lock()
	defer e.stopOpMu.Unlock()

	e.stopMu.Lock()
	alreadyStopped := e.stopped
	e.stopped = true
	pool := e.asyncPool
	e.stopMu.Unlock()

	if !alreadyStopped && pool != nil {
		// Wait for queued async events to finish delivering
		pool.StopAndWait()
	}

	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()

	// Close subscribers outside the lock
	for _, typeSubs := range subsCopy {
		for _, sub := range typeSubs {
			sub.Close()
		}
	}

	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}

	e.stopMu.Lock()
	e.asyncPool = pond.NewPool(AsyncWorkerPoolSize)
	e.stopped = false
	e.stopMu.Unlock()
}
