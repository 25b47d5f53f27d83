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

package gcs

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gavelhq/gavel/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// gcsRequestTimeout bounds each individual bucket operation
const gcsRequestTimeout = 30 * time.Second

// BlobStoreGCS stores payloads in a Google Cloud Storage bucket. Blob keys
// are hex-encoded into object names, which keeps listing order identical to
// raw key order for prefix scans.
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	startupCtx      context.Context
	logger          *GcsLogger
	client          *storage.Client
	bucket          *storage.BucketHandle
	startupCancel   context.CancelFunc
	metrics         *gcsMetrics
	bucketName      string
	credentialsFile string
}

// New creates a new GCS-backed blob store.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	const prefix = "gcs://"
	var bucketName string
	if after, ok := strings.CutPrefix(dataDir, prefix); ok {
		bucketName = after
	}
	if bucketName == "" {
		return nil, errors.New(
			"gcs blob: no bucket in data dir (want gcs://<bucket>)",
		)
	}

	return NewWithOptions(
		WithBucket(bucketName),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new GCS-backed blob store using options.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}

	// Apply options
	for _, opt := range opts {
		opt(db)
	}

	// Set defaults
	if db.logger == nil {
		db.logger = NewGcsLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	}

	return db, nil
}

func (d *BlobStoreGCS) init() error {
	// Configure metrics
	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}

	// Close the startup context so that initialization will succeed.
	if d.startupCancel != nil {
		d.startupCancel()
		d.startupCancel = nil
	}
	d.startupCtx = context.Background()
	return nil
}

// ValidateCredentials checks that the given credentials file path, if set,
// points at an existing regular file.
func ValidateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	info, err := os.Stat(credentialsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf(
				"credentials file %s does not exist",
				credentialsFile,
			)
		}
		return fmt.Errorf("credentials file not readable: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(
			"credentials file %s is a directory",
			credentialsFile,
		)
	}
	return nil
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// Returns the GCS client.
func (d *BlobStoreGCS) Client() *storage.Client {
	return d.client
}

// Returns the bucket handle.
func (d *BlobStoreGCS) Bucket() *storage.BucketHandle {
	return d.bucket
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	// Validate required fields
	if d.bucketName == "" {
		return errors.New("gcs blob: no bucket configured")
	}

	// Validate credentials file if specified
	if d.credentialsFile != "" {
		if err := ValidateCredentials(d.credentialsFile); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	var clientOpts []option.ClientOption
	clientOpts = append(clientOpts, storage.WithDisabledClientMetrics())
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}

	client, err := storage.NewGRPCClient(
		ctx,
		clientOpts...,
	)
	if err != nil {
		cancel()
		return fmt.Errorf("gcs blob: create storage client: %w", err)
	}

	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	d.startupCtx = ctx
	d.startupCancel = cancel

	if err := d.init(); err != nil {
		// Clean up resources on init failure
		d.Close()
		return err
	}
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

// keyToObjectName maps a raw blob key to its bucket object name
func keyToObjectName(key []byte) string {
	return hex.EncodeToString(key)
}

// objectNameToKey recovers the raw blob key from a bucket object name
func objectNameToKey(name string) ([]byte, error) {
	return hex.DecodeString(name)
}

// gcsTxn buffers writes and deletes until Commit. GCS has no native
// transactions, so the buffer is flushed object-by-object on commit and
// readers in the same transaction see staged values first.
type gcsTxn struct {
	store     *BlobStoreGCS
	pending   map[string][]byte
	deletes   map[string]struct{}
	readWrite bool
	finished  bool
}

func (t *gcsTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite {
		return nil
	}
	for name, val := range t.pending {
		if err := t.store.putObject(name, val); err != nil {
			return err
		}
	}
	for name := range t.deletes {
		if err := t.store.deleteObject(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *gcsTxn) Rollback() error {
	t.finished = true
	t.pending = nil
	t.deletes = nil
	return nil
}

// NewTransaction starts a buffered transaction against the bucket
func (d *BlobStoreGCS) NewTransaction(readWrite bool) types.Txn {
	return &gcsTxn{
		store:     d,
		pending:   make(map[string][]byte),
		deletes:   make(map[string]struct{}),
		readWrite: readWrite,
	}
}

// validateTxn validates a types.Txn for this BlobStore and returns the
// underlying *gcsTxn if valid.
func (d *BlobStoreGCS) validateTxn(txn types.Txn) (*gcsTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	gcsTxn, ok := txn.(*gcsTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if gcsTxn.store != d {
		return nil, errors.New("transaction owned by another store")
	}
	if gcsTxn.finished {
		return nil, errors.New("use of finished transaction")
	}
	return gcsTxn, nil
}

// Get returns the value for the given key, consulting staged writes first
func (d *BlobStoreGCS) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	name := keyToObjectName(key)
	if _, ok := t.deletes[name]; ok {
		return nil, types.ErrBlobKeyNotFound
	}
	if val, ok := t.pending[name]; ok {
		return bytes.Clone(val), nil
	}
	return d.getObject(name)
}

// Set stages a write for the given key
func (d *BlobStoreGCS) Set(txn types.Txn, key, val []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return errors.New("cannot write using a read-only transaction")
	}
	name := keyToObjectName(key)
	delete(t.deletes, name)
	t.pending[name] = bytes.Clone(val)
	return nil
}

// Delete stages a delete for the given key
func (d *BlobStoreGCS) Delete(txn types.Txn, key []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return errors.New("cannot delete using a read-only transaction")
	}
	name := keyToObjectName(key)
	delete(t.pending, name)
	t.deletes[name] = struct{}{}
	return nil
}

func (d *BlobStoreGCS) getObject(name string) ([]byte, error) {
	if d.bucket == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	ctx, cancel := newRequestContext()
	defer cancel()
	r, err := d.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	defer r.Close()
	val, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d.metrics.observeOp("get", len(val))
	return val, nil
}

func (d *BlobStoreGCS) putObject(name string, val []byte) error {
	if d.bucket == nil {
		return types.ErrBlobStoreUnavailable
	}
	ctx, cancel := newRequestContext()
	defer cancel()
	w := d.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write(val); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	d.metrics.observeOp("set", len(val))
	return nil
}

func (d *BlobStoreGCS) deleteObject(name string) error {
	if d.bucket == nil {
		return types.ErrBlobStoreUnavailable
	}
	ctx, cancel := newRequestContext()
	defer cancel()
	if err := d.bucket.Object(name).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return err
	}
	d.metrics.observeOp("delete", 0)
	return nil
}

// gcsIterator iterates blob keys by listing bucket objects. The object
// listing is materialized on Seek/Rewind since bucket listings cannot be
// rewound in place.
type gcsIterator struct {
	store *BlobStoreGCS
	txn   *gcsTxn
	opts  types.BlobIteratorOptions
	names []string
	pos   int
	err   error
}

func (it *gcsIterator) load(prefix []byte) {
	it.names = nil
	it.pos = 0
	it.err = nil
	if it.store.bucket == nil {
		it.err = types.ErrBlobStoreUnavailable
		return
	}
	ctx, cancel := newRequestContext()
	defer cancel()
	hexPrefix := keyToObjectName(prefix)
	query := &storage.Query{Prefix: hexPrefix}
	objIter := it.store.bucket.Objects(ctx, query)
	seen := make(map[string]struct{})
	for {
		attrs, err := objIter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			it.err = err
			return
		}
		if _, deleted := it.txn.deletes[attrs.Name]; deleted {
			continue
		}
		seen[attrs.Name] = struct{}{}
		it.names = append(it.names, attrs.Name)
	}
	// Merge in staged writes not yet visible in the bucket
	for name := range it.txn.pending {
		if !strings.HasPrefix(name, hexPrefix) {
			continue
		}
		if _, ok := seen[name]; !ok {
			it.names = append(it.names, name)
		}
	}
	sort.Strings(it.names)
	if it.opts.Reverse {
		for i, j := 0, len(it.names)-1; i < j; i, j = i+1, j-1 {
			it.names[i], it.names[j] = it.names[j], it.names[i]
		}
	}
}

func (it *gcsIterator) Rewind()            { it.load(it.opts.Prefix) }
func (it *gcsIterator) Seek(prefix []byte) { it.load(prefix) }

func (it *gcsIterator) Valid() bool {
	return it.err == nil && it.pos < len(it.names)
}

func (it *gcsIterator) ValidForPrefix(prefix []byte) bool {
	if !it.Valid() {
		return false
	}
	return strings.HasPrefix(it.names[it.pos], keyToObjectName(prefix))
}

func (it *gcsIterator) Next() { it.pos++ }

func (it *gcsIterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &gcsItem{it: it, name: it.names[it.pos]}
}

func (it *gcsIterator) Close()     {}
func (it *gcsIterator) Err() error { return it.err }

type gcsItem struct {
	it   *gcsIterator
	name string
}

func (i *gcsItem) Key() []byte {
	key, err := objectNameToKey(i.name)
	if err != nil {
		// Object names outside the hex keyspace are not ours
		return nil
	}
	return key
}

func (i *gcsItem) ValueCopy(dst []byte) ([]byte, error) {
	if val, ok := i.it.txn.pending[i.name]; ok {
		return append(dst[:0], val...), nil
	}
	val, err := i.it.store.getObject(i.name)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], val...), nil
}

// NewIterator returns an iterator over blob keys with the given options
func (d *BlobStoreGCS) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	t, err := d.validateTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	iter := &gcsIterator{
		store: d,
		txn:   t,
		opts:  opts,
	}
	iter.load(opts.Prefix)
	return iter
}

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
