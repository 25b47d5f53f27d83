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
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/gavelhq/gavel/core"
)

// callBlobRecord is the blob-store encoding of a single call. Batches are
// stored as a CBOR array of these records under the owning record's
// content hash, so the payload for a given key never changes once written.
type callBlobRecord struct {
	_       struct{} `cbor:",toarray"`
	Target  []byte
	Payload []byte
	Value   *big.Int
}

func encodeCallBatch(calls []core.Call) ([]byte, error) {
	records := make([]callBlobRecord, 0, len(calls))
	for _, call := range calls {
		records = append(records, callBlobRecord{
			Target:  call.Target.Bytes(),
			Payload: call.Payload,
			Value:   call.ValueOrZero(),
		})
	}
	ret, err := cbor.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode call batch: %w", err)
	}
	return ret, nil
}

func decodeCallBatch(data []byte) ([]core.Call, error) {
	var records []callBlobRecord
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode call batch: %w", err)
	}
	ret := make([]core.Call, 0, len(records))
	for _, record := range records {
		var target core.Address
		if len(record.Target) != core.AddressSize {
			return nil, fmt.Errorf(
				"decode call batch: target length %d",
				len(record.Target),
			)
		}
		copy(target[:], record.Target)
		ret = append(ret, core.Call{
			Target:  target,
			Payload: record.Payload,
			Value:   record.Value,
		})
	}
	return ret, nil
}
