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

package types_test

import (
	"math/big"
	"testing"

	"github.com/gavelhq/gavel/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigIntRoundTrip(t *testing.T) {
	testValues := []string{
		"0",
		"1",
		"9000000",
		// 2^128, far past what an INTEGER column could hold
		"340282366920938463463374607431768211456",
	}
	for _, tv := range testValues {
		orig, ok := new(big.Int).SetString(tv, 10)
		require.True(t, ok, "bad test value %q", tv)

		stored, err := types.NewBigInt(orig).Value()
		require.NoError(t, err)
		assert.Equal(t, tv, stored)

		var scanned types.BigInt
		require.NoError(t, scanned.Scan(stored))
		assert.Zero(t, scanned.Cmp(orig), "value changed across scan: %s", tv)
	}
}

func TestBigIntScanByteSlice(t *testing.T) {
	var scanned types.BigInt
	require.NoError(t, scanned.Scan([]byte("12345")))
	assert.Equal(t, int64(12345), scanned.Int64())
}

func TestBigIntScanRejects(t *testing.T) {
	var scanned types.BigInt
	assert.Error(t, scanned.Scan("not a number"))
	assert.Error(t, scanned.Scan(42))
	assert.Error(t, scanned.Scan(nil))
}

func TestBigIntZeroValue(t *testing.T) {
	// A zero-value BigInt has a nil embedded Int but must still store
	var zero types.BigInt
	stored, err := zero.Value()
	require.NoError(t, err)
	assert.Equal(t, "0", stored)
}

func TestNewBigIntCopies(t *testing.T) {
	orig := big.NewInt(42)
	v := types.NewBigInt(orig)
	orig.SetInt64(99)
	assert.Equal(t, int64(42), v.Int64(), "stored value aliases caller's big.Int")
}

func TestNewBigIntNil(t *testing.T) {
	v := types.NewBigInt(nil)
	require.NotNil(t, v.Int)
	assert.Zero(t, v.Sign())
}
