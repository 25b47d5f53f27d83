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

package core

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Domain separation tags so a proposal hash can never collide with an
// operation hash over the same call batch
const (
	proposalHashTag  = "gavel.proposal.v1"
	operationHashTag = "gavel.operation.v1"
)

// HashProposal derives the proposal identifier from the proposal content:
// blake2b_256 over the encoded call batch and the description hash. Two
// proposals with identical targets, payloads, values, and description are
// the same proposal
func HashProposal(calls []Call, descriptionHash Hash) Hash {
	var buf bytes.Buffer
	buf.WriteString(proposalHashTag)
	encodeCalls(&buf, calls)
	buf.Write(descriptionHash[:])
	return Hash(blake2b.Sum256(buf.Bytes()))
}

// HashOperation derives the timelock operation identifier from the call
// batch, the optional predecessor operation, and a caller-chosen salt
func HashOperation(calls []Call, predecessor Hash, salt Hash) Hash {
	var buf bytes.Buffer
	buf.WriteString(operationHashTag)
	encodeCalls(&buf, calls)
	buf.Write(predecessor[:])
	buf.Write(salt[:])
	return Hash(blake2b.Sum256(buf.Bytes()))
}

// HashDescription hashes free-form proposal description text
func HashDescription(description string) Hash {
	return Hash(blake2b.Sum256([]byte(description)))
}

// encodeCalls writes an unambiguous encoding of the call batch: a count
// prefix, then per call the fixed-size target, the length-prefixed payload,
// and the value as a 256-bit big-endian integer
func encodeCalls(buf *bytes.Buffer, calls []Call) {
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(calls)))
	buf.Write(scratch[:4])
	for _, call := range calls {
		buf.Write(call.Target[:])
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(call.Payload)))
		buf.Write(scratch[:4])
		buf.Write(call.Payload)
		var value [32]byte
		call.ValueOrZero().FillBytes(value[:])
		buf.Write(value[:])
	}
}
