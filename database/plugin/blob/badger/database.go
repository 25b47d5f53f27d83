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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/gavelhq/gavel/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStoreBadger keeps content-addressed payloads (call batches and
// proposal descriptions) in badger. Without a data directory the store
// runs in-memory and nothing survives a restart.
type BlobStoreBadger struct {
	promRegistry     prometheus.Registerer
	db               *badger.DB
	logger           *slog.Logger
	gcTicker         *time.Ticker
	gcStopCh         chan struct{}
	dataDir          string
	gcWg             sync.WaitGroup
	gcInterval       time.Duration
	blockCacheSize   uint64
	indexCacheSize   uint64
	valueLogFileSize int64
	memTableSize     int64
	valueThreshold   int64
	gcEnabled        bool
}

// New creates a badger-backed blob store
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	d := &BlobStoreBadger{
		gcEnabled:        true,
		gcInterval:       DefaultGcInterval,
		blockCacheSize:   DefaultBlockCacheSize,
		indexCacheSize:   DefaultIndexCacheSize,
		valueLogFileSize: int64(DefaultValueLogFileSize),
		memTableSize:     int64(DefaultMemTableSize),
		valueThreshold:   int64(DefaultValueThreshold),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Throwaway logger saves nil guards at every log site
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	badgerOpts, err := d.badgerOptions()
	if err != nil {
		return nil, err
	}
	d.db, err = badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}
	if d.gcEnabled && d.gcInterval > 0 {
		d.gcTicker = time.NewTicker(d.gcInterval)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.valueLogGcLoop(d.gcTicker, d.gcStopCh)
	}
	return d, nil
}

// badgerOptions derives the badger configuration from the store options.
// An empty data directory selects the in-memory mode.
func (d *BlobStoreBadger) badgerOptions() (badger.Options, error) {
	if d.dataDir == "" {
		return badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(d.logger)).
			// Badger's default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true).
			WithValueThreshold(d.valueThreshold), nil
	}
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return badger.Options{}, fmt.Errorf("stat data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return badger.Options{}, fmt.Errorf("create data dir: %w", err)
		}
	}
	blobDir := filepath.Join(d.dataDir, "blob")
	return badger.DefaultOptions(blobDir).
		WithLogger(NewBadgerLogger(d.logger)).
		WithLoggingLevel(badger.WARNING).
		WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec // bounded by config validation
		WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec // bounded by config validation
		WithValueLogFileSize(d.valueLogFileSize).
		WithMemTableSize(d.memTableSize).
		WithValueThreshold(d.valueThreshold).
		WithCompression(options.Snappy), nil
}

// valueLogGcLoop reclaims value-log space on a timer. Each pass keeps
// collecting until badger reports nothing left to rewrite.
func (d *BlobStoreBadger) valueLogGcLoop(
	t *time.Ticker,
	stop <-chan struct{},
) {
	defer d.gcWg.Done()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			for {
				err := d.DB().RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						"value log GC pass failed",
						"component", "database",
						"error", err,
					)
				}
				break
			}
		}
	}
}

// Start implements the plugin.Plugin interface. The store is already
// usable after New, so there is nothing to do
func (d *BlobStoreBadger) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops the GC loop and closes the underlying badger handle
func (d *BlobStoreBadger) Close() error {
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		if d.gcStopCh != nil {
			close(d.gcStopCh)
			d.gcStopCh = nil
		}
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	return d.DB().Close()
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// NewTransaction creates a new badger transaction
func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return &badgerTxn{store: d, tx: d.DB().NewTransaction(update)}
}

// Get retrieves a value within a transaction
func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	bt, err := d.ownTxn(txn)
	if err != nil {
		return nil, err
	}
	item, err := bt.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores a key-value pair within a transaction
func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	bt, err := d.ownTxn(txn)
	if err != nil {
		return err
	}
	return bt.tx.Set(key, val)
}

// Delete removes a key within a transaction
func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	bt, err := d.ownTxn(txn)
	if err != nil {
		return err
	}
	return bt.tx.Delete(key)
}

// NewIterator creates an iterator within a transaction. Items returned by
// Item() are only valid while the owning transaction is live; a failed
// lookup surfaces through the iterator's Err instead of a return value.
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	bt, err := d.ownTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	iterOpts := badger.IteratorOptions{
		Prefix:  opts.Prefix,
		Reverse: opts.Reverse,
	}
	return &badgerIterator{iter: bt.tx.NewIterator(iterOpts)}
}

// ownTxn checks that a types.Txn belongs to this store and is still live,
// returning the concrete transaction
func (d *BlobStoreBadger) ownTxn(txn types.Txn) (*badgerTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	bt, ok := txn.(*badgerTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if bt.store != d {
		return nil, errors.New("transaction owned by another store")
	}
	if bt.done {
		return nil, errors.New("use of finished transaction")
	}
	if bt.tx == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return bt, nil
}

// badgerTxn adapts a badger transaction to types.Txn
type badgerTxn struct {
	store *BlobStoreBadger
	tx    *badger.Txn
	done  bool
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	if t.tx == nil {
		t.done = true
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.done = true
	return nil
}

func (t *badgerTxn) Rollback() error {
	if t.done {
		return nil
	}
	if t.tx != nil {
		t.tx.Discard()
	}
	t.done = true
	return nil
}

type badgerIterator struct {
	iter *badger.Iterator
}

func (it *badgerIterator) Rewind() {
	it.iter.Rewind()
}

func (it *badgerIterator) Seek(prefix []byte) {
	it.iter.Seek(prefix)
}

func (it *badgerIterator) Valid() bool {
	return it.iter.Valid()
}

func (it *badgerIterator) ValidForPrefix(p []byte) bool {
	return it.iter.ValidForPrefix(p)
}

func (it *badgerIterator) Next() {
	it.iter.Next()
}

func (it *badgerIterator) Item() types.BlobItem {
	return &badgerItem{item: it.iter.Item()}
}

func (it *badgerIterator) Close() {
	it.iter.Close()
}

func (it *badgerIterator) Err() error {
	return nil
}

// errorIterator is returned when an iterator cannot be created, carrying
// the failure to the caller's Err check
type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()                      {}
func (it *errorIterator) Seek(prefix []byte)           {}
func (it *errorIterator) Valid() bool                  { return false }
func (it *errorIterator) ValidForPrefix(p []byte) bool { return false }
func (it *errorIterator) Next()                        {}
func (it *errorIterator) Item() types.BlobItem         { return nil }
func (it *errorIterator) Close()                       {}
func (it *errorIterator) Err() error                   { return it.err }

type badgerItem struct {
	item *badger.Item
}

func (i *badgerItem) Key() []byte {
	return i.item.KeyCopy(nil)
}

func (i *badgerItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}
