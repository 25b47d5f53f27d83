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

// Blob key prefixes. Large opaque payloads live in the blob store keyed by
// the owning record's content hash; the metadata store holds only the hash
const (
	ProposalCallsBlobKeyPrefix       = "pc"
	ProposalDescriptionBlobKeyPrefix = "pd"
	OperationCallsBlobKeyPrefix      = "oc"
)

func ProposalCallsBlobKey(proposalID []byte) []byte {
	key := []byte(ProposalCallsBlobKeyPrefix)
	key = append(key, proposalID...)
	return key
}

func ProposalDescriptionBlobKey(proposalID []byte) []byte {
	key := []byte(ProposalDescriptionBlobKeyPrefix)
	key = append(key, proposalID...)
	return key
}

func OperationCallsBlobKey(operationID []byte) []byte {
	key := []byte(OperationCallsBlobKeyPrefix)
	key = append(key, operationID...)
	return key
}
