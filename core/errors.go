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

package core

import "errors"

// ViolationKind classifies a rejected governance operation. Every rejection
// falls into exactly one kind so callers can branch without string matching
type ViolationKind int

const (
	// ViolationPolicy marks operations rejected by governance rules:
	// insufficient weight, unauthorized caller, out-of-bounds parameter
	ViolationPolicy ViolationKind = iota + 1
	// ViolationState marks operations invalid for the current lifecycle
	// state: double vote, re-execution, duplicate schedule
	ViolationState
	// ViolationTemporal marks operations attempted outside their height
	// window: too early, too late, delay too short
	ViolationTemporal
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationPolicy:
		return "policy"
	case ViolationState:
		return "state"
	case ViolationTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// Violation is the error type behind every governance rejection sentinel.
// Sentinels compare by identity through errors.Is, and the kind survives
// fmt.Errorf wrapping via errors.As
type Violation struct {
	kind ViolationKind
	msg  string
}

func (v *Violation) Error() string {
	return v.msg
}

func (v *Violation) Kind() ViolationKind {
	return v.kind
}

func NewPolicyViolation(msg string) *Violation {
	return &Violation{kind: ViolationPolicy, msg: msg}
}

func NewStateViolation(msg string) *Violation {
	return &Violation{kind: ViolationState, msg: msg}
}

func NewTemporalViolation(msg string) *Violation {
	return &Violation{kind: ViolationTemporal, msg: msg}
}

func IsPolicyViolation(err error) bool {
	return violationKind(err) == ViolationPolicy
}

func IsStateViolation(err error) bool {
	return violationKind(err) == ViolationState
}

func IsTemporalViolation(err error) bool {
	return violationKind(err) == ViolationTemporal
}

func violationKind(err error) ViolationKind {
	var v *Violation
	if errors.As(err, &v) {
		return v.kind
	}
	return 0
}
