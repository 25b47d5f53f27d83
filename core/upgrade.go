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

// ErrMalformedUpgradePayload is returned when an upgrade call payload is
// too short to carry the replacement implementation address
var ErrMalformedUpgradePayload = NewStateViolation(
	"upgrade payload shorter than implementation address",
)

// EncodeUpgradePayload packs the replacement implementation address and the
// initializer payload into a single call payload. Upgrade proposals carry
// exactly one call whose target is the resource being upgraded and whose
// payload uses this encoding
func EncodeUpgradePayload(newImpl Address, initPayload []byte) []byte {
	out := make([]byte, 0, AddressSize+len(initPayload))
	out = append(out, newImpl[:]...)
	out = append(out, initPayload...)
	return out
}

// DecodeUpgradePayload splits an upgrade call payload back into the
// replacement implementation address and the initializer payload
func DecodeUpgradePayload(payload []byte) (Address, []byte, error) {
	var newImpl Address
	if len(payload) < AddressSize {
		return newImpl, nil, ErrMalformedUpgradePayload
	}
	copy(newImpl[:], payload[:AddressSize])
	initPayload := make([]byte, len(payload)-AddressSize)
	copy(initPayload, payload[AddressSize:])
	return newImpl, initPayload, nil
}
