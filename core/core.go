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

// Package core provides the primitive types shared across the governance
// engine: subject addresses, content hashes, call payloads, and the
// violation error taxonomy used by all components.
package core

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// AddressSize is the length in bytes of a subject or resource address
	AddressSize = 20

	// HashSize is the length in bytes of a content or operation hash
	HashSize = 32
)

// Address identifies an account, contract, or controlled resource on the
// underlying ledger
type Address [AddressSize]byte

// ZeroAddress is the all-zeroes address. The checkpoint ledger reserves it
// for the aggregate total-weight series
var ZeroAddress = Address{}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// ParseAddress decodes a hex address string, with or without 0x prefix
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	if len(raw) != AddressSize {
		return a, fmt.Errorf(
			"parse address: expected %d bytes, got %d",
			AddressSize,
			len(raw),
		)
	}
	copy(a[:], raw)
	return a, nil
}

// Hash is a 256-bit content or operation identifier
type Hash [HashSize]byte

// ZeroHash is the all-zeroes hash, used as the empty predecessor marker
var ZeroHash = Hash{}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ParseHash decodes a hex hash string, with or without 0x prefix
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf(
			"parse hash: expected %d bytes, got %d",
			HashSize,
			len(raw),
		)
	}
	copy(h[:], raw)
	return h, nil
}

// Call describes a single action against a controlled resource: the target
// address, an opaque call payload, and a native-asset value
type Call struct {
	Target  Address
	Payload []byte
	Value   *big.Int
}

// ValueOrZero returns the call value, substituting zero for nil
func (c Call) ValueOrZero() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

// WeightSource provides voting-weight lookups against the checkpointed
// balance ledger. Historical lookups are stable: the value reported for a
// height strictly below the current tip never changes
type WeightSource interface {
	// CurrentWeight returns the subject's weight at the current tip
	CurrentWeight(subject Address) (*big.Int, error)
	// WeightAt returns the subject's weight as of the given height
	WeightAt(subject Address, height uint64) (*big.Int, error)
	// TotalWeightAt returns the aggregate weight as of the given height
	TotalWeightAt(height uint64) (*big.Int, error)
}

// RoleRegistry answers privileged-actor checks. The set of privileged
// actors (guardian multisig, emergency council) is maintained outside the
// engine
type RoleRegistry interface {
	IsPrivilegedActor(subject Address) bool
}

// StaticRoleRegistry is a fixed-allowlist RoleRegistry
type StaticRoleRegistry struct {
	privileged map[Address]struct{}
}

func NewStaticRoleRegistry(subjects ...Address) *StaticRoleRegistry {
	r := &StaticRoleRegistry{
		privileged: make(map[Address]struct{}, len(subjects)),
	}
	for _, subject := range subjects {
		r.privileged[subject] = struct{}{}
	}
	return r
}

func (r *StaticRoleRegistry) IsPrivilegedActor(subject Address) bool {
	_, ok := r.privileged[subject]
	return ok
}
