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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// Store errors shared by the metadata and blob plugins.
var (
	// ErrBlobKeyNotFound reports a missing blob key
	ErrBlobKeyNotFound = errors.New("blob key not found")
	// ErrTxnWrongType reports a transaction handle from a different store
	ErrTxnWrongType = errors.New("invalid transaction type")
	// ErrNilTxn reports a nil transaction where one is required
	ErrNilTxn = errors.New("nil transaction")
	// ErrNoStoreAvailable reports a commit with neither store attached
	ErrNoStoreAvailable = errors.New("no store available")
	// ErrBlobStoreUnavailable reports an unreachable blob store
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
)

// BigInt is an arbitrary-precision unsigned integer column for voting
// weights and call values. It round-trips through SQL as a decimal TEXT
// string, since sqlite INTEGER is signed 64-bit and token weights exceed
// that. Weight columns are never compared or ordered in SQL, so the
// lexicographic ordering of the TEXT encoding does not matter.
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

// NewBigInt copies v into a BigInt. The copy keeps stored rows from
// aliasing a caller's value that mutates later. A nil v becomes zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	s, err := scanText(val)
	if err != nil {
		return err
	}
	if b.Int == nil {
		b.Int = new(big.Int)
	}
	if _, ok := b.SetString(s, 10); !ok {
		return fmt.Errorf("malformed big.Int column value: %q", s)
	}
	return nil
}

// scanText normalizes driver output for TEXT columns. The sqlite driver
// returns string, but []byte shows up on some raw query paths.
func scanText(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
}

// BlobItem is a single key-value entry yielded by a BlobIterator
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator walks keys in the blob store.
//
// Items are only valid while the transaction that created the iterator is
// open. Implementations may check the transaction state on access, so a
// ValueCopy after commit or rollback can fail. Iterate and read values
// within one transaction scope.
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

// BlobIteratorOptions selects the key range and direction of an iterator
type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Txn is the commit/rollback handle each store plugin hands out. The
// database layer pairs one per store inside its own transaction type.
type Txn interface {
	Commit() error
	Rollback() error
}
