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

package badger

import (
	"errors"
	"testing"
	"time"

	"github.com/gavelhq/gavel/database/types"
)

func setupTestStore(t *testing.T) *BlobStoreBadger {
	t.Helper()
	store, err := New(
		WithGc(false),
	)
	if err != nil {
		t.Fatalf("unexpected error creating store: %s", err)
	}
	t.Cleanup(func() {
		store.Close() //nolint:errcheck
	})
	return store
}

func TestBlobRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	txn := store.NewTransaction(true)
	if err := store.Set(txn, []byte("test_key"), []byte("test_value")); err != nil {
		t.Fatalf("unexpected error setting key: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error committing: %s", err)
	}

	readTxn := store.NewTransaction(false)
	defer readTxn.Rollback() //nolint:errcheck
	val, err := store.Get(readTxn, []byte("test_key"))
	if err != nil {
		t.Fatalf("unexpected error getting key: %s", err)
	}
	if string(val) != "test_value" {
		t.Errorf("expected 'test_value', got '%s'", val)
	}
}

func TestBlobGetMissingKey(t *testing.T) {
	store := setupTestStore(t)

	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("no_such_key"))
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		t.Errorf("expected ErrBlobKeyNotFound, got %v", err)
	}
}

func TestBlobDelete(t *testing.T) {
	store := setupTestStore(t)

	txn := store.NewTransaction(true)
	if err := store.Set(txn, []byte("doomed"), []byte("x")); err != nil {
		t.Fatalf("unexpected error setting key: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error committing: %s", err)
	}

	delTxn := store.NewTransaction(true)
	if err := store.Delete(delTxn, []byte("doomed")); err != nil {
		t.Fatalf("unexpected error deleting key: %s", err)
	}
	if err := delTxn.Commit(); err != nil {
		t.Fatalf("unexpected error committing delete: %s", err)
	}

	readTxn := store.NewTransaction(false)
	defer readTxn.Rollback() //nolint:errcheck
	_, err := store.Get(readTxn, []byte("doomed"))
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		t.Errorf("expected ErrBlobKeyNotFound after delete, got %v", err)
	}
}

func TestBlobIteratorPrefix(t *testing.T) {
	store := setupTestStore(t)

	txn := store.NewTransaction(true)
	for _, key := range []string{"pc_aaa", "pc_bbb", "pd_ccc"} {
		if err := store.Set(txn, []byte(key), []byte("v")); err != nil {
			t.Fatalf("unexpected error setting key: %s", err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error committing: %s", err)
	}

	readTxn := store.NewTransaction(false)
	defer readTxn.Rollback() //nolint:errcheck
	prefix := []byte("pc_")
	iter := store.NewIterator(readTxn, types.BlobIteratorOptions{Prefix: prefix})
	defer iter.Close()

	var count int
	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		count++
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("unexpected iterator error: %s", err)
	}
	if count != 2 {
		t.Errorf("expected 2 keys with prefix, got %d", count)
	}
}

func TestGcLoopStartsAndStops(t *testing.T) {
	// A disk-backed store with a fast GC tick exercises the collector loop;
	// Close must stop it without leaking the goroutine
	store, err := New(
		WithDataDir(t.TempDir()),
		WithGcInterval(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error creating store: %s", err)
	}

	txn := store.NewTransaction(true)
	if err := store.Set(txn, []byte("gc_key"), []byte("gc_value")); err != nil {
		t.Fatalf("unexpected error setting key: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error committing: %s", err)
	}

	// Let a few GC ticks fire before shutting down
	time.Sleep(50 * time.Millisecond)
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error closing store: %s", err)
	}
}

func TestCommitTimestampRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	ts, err := store.GetCommitTimestamp()
	if err != nil {
		t.Fatalf("unexpected error getting initial timestamp: %s", err)
	}
	if ts != 0 {
		t.Errorf("expected zero initial timestamp, got %d", ts)
	}

	txn := store.NewTransaction(true)
	if err := store.SetCommitTimestamp(1234567890, txn); err != nil {
		t.Fatalf("unexpected error setting timestamp: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error committing: %s", err)
	}

	ts, err = store.GetCommitTimestamp()
	if err != nil {
		t.Fatalf("unexpected error getting timestamp: %s", err)
	}
	if ts != 1234567890 {
		t.Errorf("expected timestamp 1234567890, got %d", ts)
	}
}
