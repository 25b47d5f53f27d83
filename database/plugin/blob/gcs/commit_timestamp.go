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

package gcs

import (
	"context"
	"errors"
	"io"
	"math/big"

	"cloud.google.com/go/storage"
	"github.com/gavelhq/gavel/database/types"
)

const commitTimestampBlobKey = "metadata_commit_timestamp"

func newRequestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), gcsRequestTimeout)
}

// GetCommitTimestamp returns the stored commit timestamp. A bucket with no
// timestamp object yet reports zero, which callers treat as a fresh store.
func (d *BlobStoreGCS) GetCommitTimestamp() (int64, error) {
	if d.bucket == nil {
		return 0, types.ErrBlobStoreUnavailable
	}
	ctx, cancel := newRequestContext()
	defer cancel()
	r, err := d.bucket.Object(commitTimestampBlobKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, nil
		}
		d.logger.Errorf("open commit timestamp object: %v", err)
		return 0, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		d.logger.Errorf("read commit timestamp contents: %v", err)
		return 0, err
	}

	return new(big.Int).SetBytes(raw).Int64(), nil
}

// SetCommitTimestamp stages the commit timestamp in the given transaction.
// The object is written when the transaction commits, alongside the blobs
// it covers.
func (d *BlobStoreGCS) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return errors.New("cannot write using a read-only transaction")
	}
	t.pending[commitTimestampBlobKey] = new(big.Int).
		SetInt64(timestamp).
		Bytes()
	return nil
}
