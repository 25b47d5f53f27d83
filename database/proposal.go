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
	"errors"
	"fmt"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
)

// GetProposal returns a proposal by its content-derived ID
func (d *Database) GetProposal(
	proposalID []byte,
	txn *Txn,
) (*models.Proposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	proposal, err := d.metadata.GetProposal(proposalID, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return nil, models.ErrProposalNotFound
	}
	return proposal, nil
}

// GetProposals returns all proposals in submission order
func (d *Database) GetProposals(txn *Txn) ([]models.Proposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	proposals, err := d.metadata.GetProposals(txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get proposals: %w", err)
	}
	return proposals, nil
}

// SetProposal saves a proposal. On conflict with an existing proposal ID
// only the tallies and lifecycle markers are updated; the identity and
// window columns recorded at submission never change.
func (d *Database) SetProposal(proposal models.Proposal, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.SetProposal(&proposal, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set proposal: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// SetProposalCalls stores the call batch for a proposal in the blob store
func (d *Database) SetProposalCalls(
	proposalID []byte,
	calls []core.Call,
	txn *Txn,
) error {
	payload, err := encodeCallBatch(calls)
	if err != nil {
		return err
	}
	return d.setPayload(types.ProposalCallsBlobKey(proposalID), payload, txn)
}

// GetProposalCalls returns the call batch stored for a proposal
func (d *Database) GetProposalCalls(
	proposalID []byte,
	txn *Txn,
) ([]core.Call, error) {
	payload, err := d.getPayload(
		types.ProposalCallsBlobKey(proposalID),
		txn,
	)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, err
	}
	return decodeCallBatch(payload)
}

// SetProposalDescription stores the full description text for a proposal
// in the blob store. The metadata store holds only its hash.
func (d *Database) SetProposalDescription(
	proposalID []byte,
	description string,
	txn *Txn,
) error {
	return d.setPayload(
		types.ProposalDescriptionBlobKey(proposalID),
		[]byte(description),
		txn,
	)
}

// GetProposalDescription returns the description text stored for a proposal
func (d *Database) GetProposalDescription(
	proposalID []byte,
	txn *Txn,
) (string, error) {
	payload, err := d.getPayload(
		types.ProposalDescriptionBlobKey(proposalID),
		txn,
	)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return "", models.ErrProposalNotFound
		}
		return "", err
	}
	return string(payload), nil
}

// setPayload writes an opaque payload to the blob store
func (d *Database) setPayload(key []byte, payload []byte, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.BlobTxn(true)
		owned = true
		defer txn.Rollback() //nolint:errcheck
	}
	blobTxn := txn.Blob()
	if blobTxn == nil {
		return types.ErrNilTxn
	}
	blob := txn.DB().Blob()
	if blob == nil {
		return types.ErrBlobStoreUnavailable
	}
	if err := blob.Set(blobTxn, key, payload); err != nil {
		return err
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return nil
}

// getPayload reads an opaque payload from the blob store, consulting the
// payload cache first. Payloads are keyed by content hash, so cache
// entries never go stale. Reads through a caller-supplied transaction
// skip the cache fill since the transaction may hold uncommitted writes.
func (d *Database) getPayload(key []byte, txn *Txn) ([]byte, error) {
	if cached, ok := d.payloadCache.Get(key); ok {
		return cached, nil
	}
	owned := false
	if txn == nil {
		txn = d.BlobTxn(false)
		owned = true
		defer txn.Release()
	}
	blobTxn := txn.Blob()
	if blobTxn == nil {
		return nil, types.ErrNilTxn
	}
	blob := txn.DB().Blob()
	if blob == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	payload, err := blob.Get(blobTxn, key)
	if err != nil {
		return nil, err
	}
	if owned {
		d.payloadCache.Put(key, payload)
	}
	return payload, nil
}
