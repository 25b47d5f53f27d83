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

var ErrPendingUpgradeNotFound = errors.New("pending upgrade not found")

// PendingUpgrade represents a scheduled implementation swap for a
// controlled resource. The unique index on Resource enforces at most one
// live upgrade per resource; execution and expiry cleanup remove the row,
// with the history carried by the audit event stream.
type PendingUpgrade struct {
	ID                uint   `gorm:"primarykey"`
	Resource          []byte `gorm:"uniqueIndex;size:20;not null"`
	NewImplementation []byte `gorm:"size:20;not null"`
	InitPayload       []byte
	Emergency         bool   `gorm:"not null"`
	ScheduledHeight   uint64 `gorm:"not null"`
	ReadyHeight       uint64 `gorm:"index;not null"`
}

// TableName returns the table name
func (PendingUpgrade) TableName() string {
	return "pending_upgrade"
}
