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

package blob

import (
	"fmt"
	"log/slog"

	"github.com/gavelhq/gavel/database/plugin"
	"github.com/gavelhq/gavel/database/plugin/blob/badger"
	"github.com/gavelhq/gavel/database/plugin/blob/gcs"
	"github.com/gavelhq/gavel/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStore holds opaque payloads (call batches, proposal descriptions)
// keyed by content hash. The metadata store carries only the hashes.
type BlobStore interface {
	Close() error
	NewTransaction(readWrite bool) types.Txn
	Get(txn types.Txn, key []byte) ([]byte, error)
	Set(txn types.Txn, key, val []byte) error
	Delete(txn types.Txn, key []byte) error
	NewIterator(txn types.Txn, opts types.BlobIteratorOptions) types.BlobIterator

	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(timestamp int64, txn types.Txn) error
}

// New returns the started blob store selected by plugin name. The built-in
// stores take their location from dataDir: a filesystem path for badger, a
// gcs://<bucket> URL for GCS. Other names fall through to the plugin
// registry with default options.
func New(
	pluginName, dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (BlobStore, error) {
	var p plugin.Plugin
	var err error
	switch pluginName {
	case "badger":
		p, err = badger.New(
			badger.WithDataDir(dataDir),
			badger.WithLogger(logger),
			badger.WithPromRegistry(promRegistry),
		)
		if err != nil {
			return nil, fmt.Errorf("badger blob store: %w", err)
		}
	case "gcs":
		p, err = gcs.New(dataDir, logger, promRegistry)
		if err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		if err := p.Start(); err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
	default:
		p, err = plugin.StartPlugin(plugin.PluginTypeBlob, pluginName)
		if err != nil {
			return nil, err
		}
	}

	blobStore, ok := p.(BlobStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}

	return blobStore, nil
}
