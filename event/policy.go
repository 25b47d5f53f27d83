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

// ProposerThresholdChangedEventType is the audit event type for proposer
// threshold adjustments
const ProposerThresholdChangedEventType = EventType(
	"policy.threshold_changed",
)

// ProposerThresholdChangedEvent is emitted when a privileged actor adjusts
// the proposer threshold. Every adjustment is audited, including ones that
// set the threshold to its current value.
type ProposerThresholdChangedEvent struct {
	// OldThresholdBps is the threshold in basis points before the change
	OldThresholdBps uint64
	// NewThresholdBps is the threshold in basis points after the change
	NewThresholdBps uint64
	// ChangedBy is the privileged address that made the change
	ChangedBy []byte
	// ChangedHeight is the tip height when the change was applied
	ChangedHeight uint64
}
