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

// TimelockScheduledEventType is the event type for scheduled operations
const TimelockScheduledEventType = EventType("timelock.scheduled")

// TimelockScheduledEvent is emitted when an operation enters the timelock
type TimelockScheduledEvent struct {
	// OperationID is the content-derived operation ID
	OperationID []byte
	// Predecessor is the operation that must execute first, if any
	Predecessor []byte
	// ScheduledHeight is the tip height at scheduling
	ScheduledHeight uint64
	// ReadyHeight is the earliest height at which the operation may execute
	ReadyHeight uint64
	// Emergency marks operations scheduled with the emergency delay
	Emergency bool
}

// TimelockExecutedEventType is the event type for executed operations
const TimelockExecutedEventType = EventType("timelock.executed")

// TimelockExecutedEvent is emitted after an operation's call batch has
// been dispatched exactly once
type TimelockExecutedEvent struct {
	// OperationID is the content-derived operation ID
	OperationID []byte
	// ExecutedHeight is the tip height at execution
	ExecutedHeight uint64
	// CallCount is the number of calls dispatched
	CallCount int
}
