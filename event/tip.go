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

// TipAdvancedEventType is the event type for observed tip changes
const TipAdvancedEventType = EventType("tip.advanced")

// TipAdvancedEvent is emitted when the engine's observed tip height moves
// forward. Voting windows, timelock readiness and upgrade windows are all
// evaluated against this height.
type TipAdvancedEvent struct {
	// Height is the new tip height
	Height uint64
}
