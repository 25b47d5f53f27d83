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

package models

import "errors"

var ErrGovernanceParamNotFound = errors.New("governance param not found")

// Governance parameter names
const (
	ParamProposerThresholdBps = "proposer_threshold_bps"
)

// GovernanceParam stores an adjustable governance parameter along with who
// changed it last and at what height. Parameter changes are privileged and
// also emit an audit event.
type GovernanceParam struct {
	ID            uint   `gorm:"primarykey"`
	Name          string `gorm:"uniqueIndex;size:64;not null"`
	Value         uint64 `gorm:"not null"`
	UpdatedBy     []byte `gorm:"size:20"`
	UpdatedHeight uint64 `gorm:"not null"`
}

// TableName returns the table name
func (GovernanceParam) TableName() string {
	return "governance_param"
}
