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

var ErrTimelockOperationNotFound = errors.New("timelock operation not found")

// TimelockOperation represents a delayed call batch behind the execution
// gate. Absence of a row is the unset state; a row with nil DoneHeight is
// scheduled; a row with DoneHeight set is done and can never be scheduled
// or executed again. The call batch lives in the blob store keyed by
// OperationID.
type TimelockOperation struct {
	ID              uint    `gorm:"primarykey"`
	OperationID     []byte  `gorm:"uniqueIndex;size:32;not null"`
	Predecessor     []byte  `gorm:"size:32"`
	Salt            []byte  `gorm:"size:32"`
	Emergency       bool    `gorm:"not null"`
	ScheduledHeight uint64  `gorm:"not null"`
	ReadyHeight     uint64  `gorm:"index;not null"`
	DoneHeight      *uint64 `gorm:"index"`
}

// TableName returns the table name
func (TimelockOperation) TableName() string {
	return "timelock_operation"
}
