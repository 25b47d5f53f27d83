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
	"io"
	"log/slog"

	"github.com/gavelhq/gavel/database/plugin/blob"
	"github.com/gavelhq/gavel/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

// Payload cache limits. Payloads are content-addressed, so cached entries
// never go stale and the limits only bound memory use
const (
	payloadCacheMaxEntries = 512
	payloadCacheMaxBytes   = 8 * 1024 * 1024
)

// Database pairs the relational metadata store with the blob store holding
// opaque payloads. The two are committed together through Txn, with the
// shared commit timestamp tying their contents to one another.
type Database struct {
	logger       *slog.Logger
	blob         blob.BlobStore
	metadata     metadata.MetadataStore
	payloadCache *PayloadCache
	dataDir      string
}

// New opens both stores under the given data directory. An empty dataDir
// selects in-memory storage; empty plugin names select the embedded
// defaults.
//
// When the commit timestamps of the two stores disagree, New returns the
// database alongside a CommitTimestampError so the caller can run Recover
// on it.
func New(
	logger *slog.Logger,
	dataDir string,
	blobPlugin string,
	metadataPlugin string,
	promRegistry prometheus.Registerer,
) (*Database, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if blobPlugin == "" {
		blobPlugin = "badger"
	}
	if metadataPlugin == "" {
		metadataPlugin = "sqlite"
	}
	metadataDb, err := metadata.New(
		metadataPlugin,
		dataDir,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(blobPlugin, dataDir, logger, promRegistry)
	if err != nil {
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		payloadCache: NewPayloadCache(
			payloadCacheMaxEntries,
			payloadCacheMaxBytes,
		),
		dataDir: dataDir,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		return db, err
	}
	return db, nil
}

// Blob returns the blob store plugin
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Metadata returns the metadata store plugin
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// DataDir returns the data directory both stores live under
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger the database was opened with
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction opens a transaction spanning both stores
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// BlobTxn opens a transaction against the blob store alone
func (d *Database) BlobTxn(readWrite bool) *Txn {
	return NewBlobOnlyTxn(d, readWrite)
}

// MetadataTxn opens a transaction against the metadata store alone
func (d *Database) MetadataTxn(readWrite bool) *Txn {
	return NewMetadataOnlyTxn(d, readWrite)
}

// Close shuts down both stores, closing the second even when the first
// fails
func (d *Database) Close() error {
	return errors.Join(
		d.metadata.Close(),
		d.blob.Close(),
	)
}
