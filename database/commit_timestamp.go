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

package database

import (
	"fmt"
)

// CommitTimestampError reports disagreement between the metadata and blob
// stores about the latest commit, the signature of a commit torn by a crash
// between the two store commits
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"stores disagree on last commit: metadata=%d blob=%d",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

// checkCommitTimestamp compares the commit timestamps stamped into both
// stores. A fresh metadata store passes regardless of the blob side, since
// the first combined commit has not happened yet.
func (d *Database) checkCommitTimestamp() error {
	metadataTimestamp, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read metadata commit timestamp: %w", err)
	}
	if metadataTimestamp <= 0 {
		return nil
	}
	blobTimestamp, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read blob commit timestamp: %w", err)
	}
	if blobTimestamp != metadataTimestamp {
		return CommitTimestampError{
			MetadataTimestamp: metadataTimestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

// Recover re-aligns the blob and metadata commit timestamps after a torn
// shutdown. Blob payloads are content addressed, so a payload from a partial
// commit is orphaned rather than corrupt; stamping a fresh shared timestamp
// through an empty read-write transaction is enough to resume.
func (d *Database) Recover() error {
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		return nil
	})
}

// updateCommitTimestamp stamps the same timestamp into both halves of a
// combined transaction. The stores commit it along with their own writes.
func (d *Database) updateCommitTimestamp(txn *Txn, timestamp int64) error {
	if err := d.Metadata().SetCommitTimestamp(timestamp, txn.Metadata()); err != nil {
		return err
	}
	return d.Blob().SetCommitTimestamp(timestamp, txn.Blob())
}
