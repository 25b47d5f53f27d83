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

// UpgradeScheduledEventType is the event type for scheduled upgrades
const UpgradeScheduledEventType = EventType("upgrade.scheduled")

// UpgradeScheduledEvent is emitted when an implementation upgrade is
// scheduled for a resource
type UpgradeScheduledEvent struct {
	// Resource is the address being upgraded
	Resource []byte
	// NewImplementation is the implementation address to switch to
	NewImplementation []byte
	// ScheduledHeight is the tip height at scheduling
	ScheduledHeight uint64
	// ReadyHeight is the start of the execution window
	ReadyHeight uint64
	// Emergency marks upgrades scheduled with the emergency delay
	Emergency bool
}

// UpgradeExecutedEventType is the event type for executed upgrades
const UpgradeExecutedEventType = EventType("upgrade.executed")

// UpgradeExecutedEvent is emitted after an upgrade has been dispatched
// inside its execution window
type UpgradeExecutedEvent struct {
	// Resource is the address that was upgraded
	Resource []byte
	// NewImplementation is the implementation address switched to
	NewImplementation []byte
	// ExecutedHeight is the tip height at execution
	ExecutedHeight uint64
}

// UpgradeExpiredEventType is the event type for expired upgrade cleanups
const UpgradeExpiredEventType = EventType("upgrade.expired")

// UpgradeExpiredEvent is emitted the first time an expired pending upgrade
// is swept. Repeat cleanups of the same resource are silent no-ops.
type UpgradeExpiredEvent struct {
	// Resource is the address whose pending upgrade expired
	Resource []byte
	// ReadyHeight is the start of the window the upgrade missed
	ReadyHeight uint64
	// CleanedHeight is the tip height when the sweep removed it
	CleanedHeight uint64
}
