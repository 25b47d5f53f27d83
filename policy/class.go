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

package policy

import (
	"fmt"
	"strings"
)

// ProposalClass selects the quorum, threshold, and delay rules that apply
// to a proposal. The set is closed; every class is dispatched through the
// policy functions below.
type ProposalClass uint8

const (
	ClassStandard ProposalClass = iota
	ClassEmergency
	ClassConstitutional
	ClassUpgrade
)

func (c ProposalClass) String() string {
	switch c {
	case ClassStandard:
		return "STANDARD"
	case ClassEmergency:
		return "EMERGENCY"
	case ClassConstitutional:
		return "CONSTITUTIONAL"
	case ClassUpgrade:
		return "UPGRADE"
	default:
		return fmt.Sprintf("ProposalClass(%d)", uint8(c))
	}
}

// Valid reports whether the class is one of the defined variants
func (c ProposalClass) Valid() bool {
	return c <= ClassUpgrade
}

// ParseClass converts a class name to its enum value, case-insensitively
func ParseClass(s string) (ProposalClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STANDARD":
		return ClassStandard, nil
	case "EMERGENCY":
		return ClassEmergency, nil
	case "CONSTITUTIONAL":
		return ClassConstitutional, nil
	case "UPGRADE":
		return ClassUpgrade, nil
	default:
		return 0, fmt.Errorf("unknown proposal class: %q", s)
	}
}
