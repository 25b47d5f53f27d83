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

package api

// Addresses and hashes are 0x-prefixed hex strings; weights and values are
// decimal strings so callers never lose precision to JSON numbers.

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// TipResponse is returned by GET /api/v1/tip.
type TipResponse struct {
	Height uint64 `json:"height"`
}

// CallPayload represents a single call inside a proposal batch.
type CallPayload struct {
	Target  string `json:"target"`
	Payload string `json:"payload"`
	Value   string `json:"value"`
}

// ProposalSubmitRequest is the body for POST /api/v1/proposals.
type ProposalSubmitRequest struct {
	Proposer    string        `json:"proposer"`
	Class       string        `json:"class"`
	Calls       []CallPayload `json:"calls"`
	Description string        `json:"description"`
}

// ProposalSubmitResponse is returned after a successful submission.
type ProposalSubmitResponse struct {
	ProposalID     string `json:"proposal_id"`
	State          string `json:"state"`
	SnapshotHeight uint64 `json:"snapshot_height"`
	DeadlineHeight uint64 `json:"deadline_height"`
}

// ProposalResponse represents a proposal with its derived state.
type ProposalResponse struct {
	ProposalID      string        `json:"proposal_id"`
	Class           string        `json:"class"`
	State           string        `json:"state"`
	Proposer        string        `json:"proposer"`
	Description     string        `json:"description"`
	DescriptionHash string        `json:"description_hash"`
	Calls           []CallPayload `json:"calls"`
	SubmittedHeight uint64        `json:"submitted_height"`
	SnapshotHeight  uint64        `json:"snapshot_height"`
	DeadlineHeight  uint64        `json:"deadline_height"`
	AgainstWeight   string        `json:"against_weight"`
	ForWeight       string        `json:"for_weight"`
	AbstainWeight   string        `json:"abstain_weight"`
	OperationID     *string       `json:"operation_id"`
	QueuedHeight    *uint64       `json:"queued_height"`
	ExecutedHeight  *uint64       `json:"executed_height"`
	CanceledHeight  *uint64       `json:"canceled_height"`
}

// ProposalListResponse is returned by GET /api/v1/proposals.
type ProposalListResponse struct {
	Proposals []ProposalSummary `json:"proposals"`
}

// ProposalSummary is a single entry in the proposal list.
type ProposalSummary struct {
	ProposalID      string `json:"proposal_id"`
	Class           string `json:"class"`
	State           string `json:"state"`
	Proposer        string `json:"proposer"`
	SubmittedHeight uint64 `json:"submitted_height"`
	DeadlineHeight  uint64 `json:"deadline_height"`
}

// VoteRequest is the body for POST /api/v1/proposals/{id}/votes.
type VoteRequest struct {
	Voter  string `json:"voter"`
	Choice string `json:"choice"`
}

// VotesResponse represents a proposal's running tallies.
type VotesResponse struct {
	ProposalID string           `json:"proposal_id"`
	Against    string           `json:"against"`
	For        string           `json:"for"`
	Abstain    string           `json:"abstain"`
	Ballots    []BallotResponse `json:"ballots"`
}

// BallotResponse represents a single recorded ballot.
type BallotResponse struct {
	Voter      string `json:"voter"`
	Choice     string `json:"choice"`
	Weight     string `json:"weight"`
	CastHeight uint64 `json:"cast_height"`
}

// CancelRequest is the body for POST /api/v1/proposals/{id}/cancel.
type CancelRequest struct {
	Caller string `json:"caller"`
}

// ProposalActionResponse is returned by the queue, execute, and cancel
// endpoints with the proposal's state after the transition.
type ProposalActionResponse struct {
	ProposalID  string  `json:"proposal_id"`
	State       string  `json:"state"`
	OperationID *string `json:"operation_id,omitempty"`
}

// UpgradeScheduleRequest is the body for POST /api/v1/upgrades/{resource}.
type UpgradeScheduleRequest struct {
	NewImplementation string `json:"new_implementation"`
	InitPayload       string `json:"init_payload"`
	Emergency         bool   `json:"emergency"`
}

// UpgradeResponse represents a pending upgrade and its readiness.
type UpgradeResponse struct {
	Resource          string `json:"resource"`
	NewImplementation string `json:"new_implementation"`
	InitPayload       string `json:"init_payload"`
	Emergency         bool   `json:"emergency"`
	ScheduledHeight   uint64 `json:"scheduled_height"`
	ReadyHeight       uint64 `json:"ready_height"`
	DeadlineHeight    uint64 `json:"deadline_height"`
	Ready             bool   `json:"ready"`
}

// UpgradeExecuteResponse is returned after a successful implementation
// swap.
type UpgradeExecuteResponse struct {
	Resource string `json:"resource"`
	Executed bool   `json:"executed"`
}

// UpgradeCleanupResponse is returned by the upgrade cleanup endpoint.
type UpgradeCleanupResponse struct {
	Resource string `json:"resource"`
	Swept    bool   `json:"swept"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}
