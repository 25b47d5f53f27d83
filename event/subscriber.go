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
	"io"
	"log/slog"
	"sync"
)

// discardLogger backs subscribers and buses constructed without a logger,
// saving nil guards at every log site
var discardLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Subscriber is the delivery abstraction behind the bus. In-memory channels
// and network-backed consumers register through the same interface.
// Implementations must make Close idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// subscriberKind labels a subscriber for metrics
func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}

// channelSubscriber adapts the channel-based Subscribe API onto the
// Subscriber interface. Deliver uses a non-blocking send and drops the
// event when the buffer is full, so a slow consumer can never wedge
// Publish or deadlock against Close.
type channelSubscriber struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int, logger *slog.Logger) *channelSubscriber {
	if logger == nil {
		logger = discardLogger
	}
	return &channelSubscriber{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

func (c *channelSubscriber) Deliver(evt Event) (err error) {
	// The read lock holds off a concurrent Close for the duration of
	// the send
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		// Late events after close are dropped, not errors
		return nil
	}
	defer c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel deliver panic: %v", r)
		}
	}()

	select {
	case c.ch <- evt:
	default:
		c.logger.Debug(
			"subscriber channel full, dropping event",
			"type", evt.Type,
		)
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
