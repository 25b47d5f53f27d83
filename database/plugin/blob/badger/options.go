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

package badger

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default sizes in bytes. Governance payloads are a few hundred bytes each,
// so the caches and log files sit well below badger's defaults
const (
	DefaultBlockCacheSize   = 67108864  // 64MB
	DefaultIndexCacheSize   = 33554432  // 32MB
	DefaultValueLogFileSize = 268435456 // 256MB
	DefaultMemTableSize     = 16777216  // 16MB
	DefaultValueThreshold   = 1024      // 1KB
)

// DefaultGcInterval is how often the value log garbage collector runs
const DefaultGcInterval = 5 * time.Minute

type BlobStoreBadgerOptionFunc func(*BlobStoreBadger)

// WithDataDir sets the directory holding the badger store. An empty
// directory selects an in-memory store
func WithDataDir(dataDir string) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.dataDir = dataDir
	}
}

// WithLogger sets the logger for store messages
func WithLogger(logger *slog.Logger) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.logger = logger
	}
}

// WithPromRegistry sets the prometheus registry for store metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.promRegistry = registry
	}
}

// WithGc enables or disables value log garbage collection
func WithGc(enabled bool) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.gcEnabled = enabled
	}
}

// WithGcInterval overrides how often the value log garbage collector runs
func WithGcInterval(interval time.Duration) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.gcInterval = interval
	}
}

// WithBlockCacheSize sets the badger block cache size in bytes
func WithBlockCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.blockCacheSize = size
	}
}

// WithIndexCacheSize sets the badger index cache size in bytes
func WithIndexCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.indexCacheSize = size
	}
}

// WithValueLogFileSize sets the value log file size in bytes
func WithValueLogFileSize(size int64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.valueLogFileSize = size
	}
}

// WithMemTableSize sets the memtable size in bytes
func WithMemTableSize(size int64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.memTableSize = size
	}
}

// WithValueThreshold sets the size above which values leave the LSM tree
// for the value log
func WithValueThreshold(threshold int64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.valueThreshold = threshold
	}
}
