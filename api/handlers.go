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

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/governor"
	"github.com/gavelhq/gavel/policy"
	"github.com/gavelhq/gavel/timelock"
	"github.com/gorilla/mux"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an API error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// violationStatus maps an engine error onto an HTTP status code. The
// not-found sentinels are matched before the violation kinds because an
// unknown entity is a state violation in the engine's taxonomy but a 404
// on the wire.
func violationStatus(err error) int {
	switch {
	case errors.Is(err, governor.ErrUnknownProposal),
		errors.Is(err, timelock.ErrUnknownOperation),
		errors.Is(err, models.ErrPendingUpgradeNotFound):
		return http.StatusNotFound
	case core.IsPolicyViolation(err):
		return http.StatusForbidden
	case core.IsTemporalViolation(err):
		return http.StatusConflict
	case core.IsStateViolation(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes the error response for a failed engine
// operation, logging only the failures that are not client mistakes.
func (a *Api) writeEngineError(w http.ResponseWriter, err error) {
	status := violationStatus(err)
	if status == http.StatusInternalServerError {
		a.logger.Error(
			"engine operation failed",
			"error", err,
		)
	}
	writeError(w, status, http.StatusText(status), err.Error())
}

// hexString encodes bytes as 0x-prefixed hex.
func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// parseHexBytes decodes a hex string with or without 0x prefix. An empty
// string decodes to nil.
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// parseChoice converts a ballot choice name to its vote constant.
func parseChoice(s string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "against":
		return models.VoteAgainst, nil
	case "for":
		return models.VoteFor, nil
	case "abstain":
		return models.VoteAbstain, nil
	}
	return 0, fmt.Errorf("unknown ballot choice %q", s)
}

// choiceName converts a vote constant back to its wire name.
func choiceName(choice uint8) string {
	switch choice {
	case models.VoteAgainst:
		return "against"
	case models.VoteFor:
		return "for"
	case models.VoteAbstain:
		return "abstain"
	}
	return "unknown"
}

// decodeCalls converts wire call payloads into engine calls.
func decodeCalls(payloads []CallPayload) ([]core.Call, error) {
	calls := make([]core.Call, 0, len(payloads))
	for _, p := range payloads {
		target, err := core.ParseAddress(p.Target)
		if err != nil {
			return nil, fmt.Errorf("parse call target: %w", err)
		}
		payload, err := parseHexBytes(p.Payload)
		if err != nil {
			return nil, fmt.Errorf("parse call payload: %w", err)
		}
		value := new(big.Int)
		if p.Value != "" {
			if _, ok := value.SetString(p.Value, 10); !ok {
				return nil, fmt.Errorf("parse call value %q", p.Value)
			}
		}
		calls = append(calls, core.Call{
			Target:  target,
			Payload: payload,
			Value:   value,
		})
	}
	return calls, nil
}

// callPayloads converts engine calls into wire call payloads.
func callPayloads(calls []core.Call) []CallPayload {
	payloads := make([]CallPayload, 0, len(calls))
	for _, call := range calls {
		value := "0"
		if call.Value != nil {
			value = call.Value.String()
		}
		payloads = append(payloads, CallPayload{
			Target:  call.Target.String(),
			Payload: hexString(call.Payload),
			Value:   value,
		})
	}
	return payloads
}

// handleHealth handles GET /health and reports engine liveness.
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleTip handles GET /api/v1/tip and returns the engine's view of the
// current ledger height.
func (a *Api) handleTip(
	w http.ResponseWriter,
	_ *http.Request,
) {
	tip, err := a.engine.Tip()
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TipResponse{
		Height: tip.Height,
	})
}

// handleProposalSubmit handles POST /api/v1/proposals and submits a new
// proposal.
func (a *Api) handleProposalSubmit(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req ProposalSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body: "+err.Error(),
		)
		return
	}
	proposer, err := core.ParseAddress(req.Proposer)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	class, err := policy.ParseClass(req.Class)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	calls, err := decodeCalls(req.Calls)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	id, err := a.engine.Governor().Propose(
		proposer,
		class,
		calls,
		req.Description,
	)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	proposal, err := a.engine.Governor().Proposal(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	state, err := a.engine.Governor().State(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProposalSubmitResponse{
		ProposalID:     id.String(),
		State:          state.String(),
		SnapshotHeight: proposal.SnapshotHeight,
		DeadlineHeight: proposal.DeadlineHeight,
	})
}

// handleProposalList handles GET /api/v1/proposals and returns all
// proposals with their derived states.
func (a *Api) handleProposalList(
	w http.ResponseWriter,
	_ *http.Request,
) {
	gov := a.engine.Governor()
	proposals, err := gov.Proposals()
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	summaries := make([]ProposalSummary, 0, len(proposals))
	for i := range proposals {
		row := &proposals[i]
		var id core.Hash
		copy(id[:], row.ProposalID)
		state, err := gov.State(id)
		if err != nil {
			a.writeEngineError(w, err)
			return
		}
		summaries = append(summaries, ProposalSummary{
			ProposalID:      hexString(row.ProposalID),
			Class:           policy.ProposalClass(row.Class).String(),
			State:           state.String(),
			Proposer:        hexString(row.Proposer),
			SubmittedHeight: row.SubmittedHeight,
			DeadlineHeight:  row.DeadlineHeight,
		})
	}
	writeJSON(w, http.StatusOK, ProposalListResponse{
		Proposals: summaries,
	})
}

// handleProposalInfo handles GET /api/v1/proposals/{id} and returns the
// full proposal record with its derived state.
func (a *Api) handleProposalInfo(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	gov := a.engine.Governor()
	proposal, err := gov.Proposal(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	state, err := gov.State(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	calls, err := gov.ProposalCalls(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	description, err := gov.ProposalDescription(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	var operationID *string
	if len(proposal.OperationID) > 0 {
		s := hexString(proposal.OperationID)
		operationID = &s
	}
	writeJSON(w, http.StatusOK, ProposalResponse{
		ProposalID:      hexString(proposal.ProposalID),
		Class:           policy.ProposalClass(proposal.Class).String(),
		State:           state.String(),
		Proposer:        hexString(proposal.Proposer),
		Description:     description,
		DescriptionHash: hexString(proposal.DescriptionHash),
		Calls:           callPayloads(calls),
		SubmittedHeight: proposal.SubmittedHeight,
		SnapshotHeight:  proposal.SnapshotHeight,
		DeadlineHeight:  proposal.DeadlineHeight,
		AgainstWeight:   proposal.AgainstWeight.String(),
		ForWeight:       proposal.ForWeight.String(),
		AbstainWeight:   proposal.AbstainWeight.String(),
		OperationID:     operationID,
		QueuedHeight:    proposal.QueuedHeight,
		ExecutedHeight:  proposal.ExecutedHeight,
		CanceledHeight:  proposal.CanceledHeight,
	})
}

// votesResponse assembles the tallies and ballots for a proposal.
func (a *Api) votesResponse(id core.Hash) (*VotesResponse, error) {
	gov := a.engine.Governor()
	against, forWeight, abstain, err := gov.Votes(id)
	if err != nil {
		return nil, err
	}
	ballots, err := gov.Ballots(id)
	if err != nil {
		return nil, err
	}
	out := make([]BallotResponse, 0, len(ballots))
	for _, ballot := range ballots {
		out = append(out, BallotResponse{
			Voter:      hexString(ballot.Voter),
			Choice:     choiceName(ballot.Choice),
			Weight:     ballot.Weight.String(),
			CastHeight: ballot.CastHeight,
		})
	}
	return &VotesResponse{
		ProposalID: id.String(),
		Against:    against.String(),
		For:        forWeight.String(),
		Abstain:    abstain.String(),
		Ballots:    out,
	}, nil
}

// handleProposalVotes handles GET /api/v1/proposals/{id}/votes and
// returns the running tallies with the individual ballots.
func (a *Api) handleProposalVotes(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	votes, err := a.votesResponse(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// handleCastVote handles POST /api/v1/proposals/{id}/votes and records a
// ballot, returning the updated tallies.
func (a *Api) handleCastVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body: "+err.Error(),
		)
		return
	}
	voter, err := core.ParseAddress(req.Voter)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	choice, err := parseChoice(req.Choice)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	if err := a.engine.Governor().CastVote(voter, id, choice); err != nil {
		a.writeEngineError(w, err)
		return
	}
	votes, err := a.votesResponse(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// actionResponse assembles the post-transition view of a proposal.
func (a *Api) actionResponse(
	id core.Hash,
) (*ProposalActionResponse, error) {
	gov := a.engine.Governor()
	proposal, err := gov.Proposal(id)
	if err != nil {
		return nil, err
	}
	state, err := gov.State(id)
	if err != nil {
		return nil, err
	}
	var operationID *string
	if len(proposal.OperationID) > 0 {
		s := hexString(proposal.OperationID)
		operationID = &s
	}
	return &ProposalActionResponse{
		ProposalID:  id.String(),
		State:       state.String(),
		OperationID: operationID,
	}, nil
}

// handleProposalQueue handles POST /api/v1/proposals/{id}/queue and moves
// a succeeded proposal into the timelock.
func (a *Api) handleProposalQueue(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	if err := a.engine.Governor().Queue(id); err != nil {
		a.writeEngineError(w, err)
		return
	}
	action, err := a.actionResponse(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// handleProposalExecute handles POST /api/v1/proposals/{id}/execute and
// dispatches a queued proposal once its delay has elapsed.
func (a *Api) handleProposalExecute(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	if err := a.engine.Governor().Execute(id); err != nil {
		a.writeEngineError(w, err)
		return
	}
	action, err := a.actionResponse(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// handleProposalCancel handles POST /api/v1/proposals/{id}/cancel and
// withdraws a proposal before its outcome is resolved.
func (a *Api) handleProposalCancel(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := core.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body: "+err.Error(),
		)
		return
	}
	caller, err := core.ParseAddress(req.Caller)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	if err := a.engine.Governor().Cancel(id, caller); err != nil {
		a.writeEngineError(w, err)
		return
	}
	action, err := a.actionResponse(id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// upgradeResponse assembles the pending upgrade view for a resource.
func (a *Api) upgradeResponse(
	resource core.Address,
	upgrade *models.PendingUpgrade,
) (*UpgradeResponse, error) {
	tl := a.engine.Timelock()
	ready, err := tl.IsUpgradeReady(resource)
	if err != nil {
		return nil, err
	}
	return &UpgradeResponse{
		Resource:          hexString(upgrade.Resource),
		NewImplementation: hexString(upgrade.NewImplementation),
		InitPayload:       hexString(upgrade.InitPayload),
		Emergency:         upgrade.Emergency,
		ScheduledHeight:   upgrade.ScheduledHeight,
		ReadyHeight:       upgrade.ReadyHeight,
		DeadlineHeight:    tl.UpgradeDeadline(upgrade),
		Ready:             ready,
	}, nil
}

// handleUpgradeSchedule handles POST /api/v1/upgrades/{resource} and
// registers an implementation swap directly with the timelock.
func (a *Api) handleUpgradeSchedule(
	w http.ResponseWriter,
	r *http.Request,
) {
	resource, err := core.ParseAddress(mux.Vars(r)["resource"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	var req UpgradeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body: "+err.Error(),
		)
		return
	}
	newImplementation, err := core.ParseAddress(req.NewImplementation)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	initPayload, err := parseHexBytes(req.InitPayload)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	err = a.engine.Timelock().ScheduleUpgrade(
		resource,
		newImplementation,
		initPayload,
		req.Emergency,
	)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	upgrade, err := a.engine.Timelock().PendingUpgrade(resource)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	resp, err := a.upgradeResponse(resource, upgrade)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleUpgradeInfo handles GET /api/v1/upgrades/{resource} and returns
// the pending upgrade with its readiness.
func (a *Api) handleUpgradeInfo(
	w http.ResponseWriter,
	r *http.Request,
) {
	resource, err := core.ParseAddress(mux.Vars(r)["resource"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	upgrade, err := a.engine.Timelock().PendingUpgrade(resource)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	resp, err := a.upgradeResponse(resource, upgrade)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpgradeExecute handles POST /api/v1/upgrades/{resource}/execute
// and performs the implementation swap inside its window.
func (a *Api) handleUpgradeExecute(
	w http.ResponseWriter,
	r *http.Request,
) {
	resource, err := core.ParseAddress(mux.Vars(r)["resource"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	if err := a.engine.Timelock().ExecuteUpgrade(resource); err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UpgradeExecuteResponse{
		Resource: resource.String(),
		Executed: true,
	})
}

// handleUpgradeCleanup handles POST /api/v1/upgrades/{resource}/cleanup
// and sweeps an expired pending upgrade.
func (a *Api) handleUpgradeCleanup(
	w http.ResponseWriter,
	r *http.Request,
) {
	resource, err := core.ParseAddress(mux.Vars(r)["resource"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	swept, err := a.engine.Timelock().CleanupExpiredUpgrade(resource)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UpgradeCleanupResponse{
		Resource: resource.String(),
		Swept:    swept,
	})
}
