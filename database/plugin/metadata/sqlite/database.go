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

package sqlite

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

	"github.com/gavelhq/gavel/database/models"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Expired upgrade sweeps and vote pruning delete rows, so reclaim the
// freed pages once a day by default
const defaultVacuumInterval = 24 * time.Hour

// MetadataStoreSqlite keeps the relational half of governance state in
// sqlite: proposals, votes, timelock operations, pending upgrades, weight
// checkpoints, and parameters. Without a data directory the store runs
// in-memory and nothing survives a restart.
type MetadataStoreSqlite struct {
	promRegistry   prometheus.Registerer
	db             *gorm.DB
	logger         *slog.Logger
	timerVacuum    *time.Timer
	timerMutex     sync.Mutex
	dataDir        string
	vacuumInterval time.Duration
	closed         bool
	vacuumWG       sync.WaitGroup
}

// New creates a sqlite metadata store with the common options
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	return NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a sqlite metadata store
func NewWithOptions(
	opts ...SqliteOptionFunc,
) (*MetadataStoreSqlite, error) {
	m := &MetadataStoreSqlite{
		vacuumInterval: defaultVacuumInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		// Throwaway logger saves nil guards at every log site
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var err error
	m.db, err = m.open()
	if err != nil {
		return nil, err
	}
	if err := m.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		// The store is usable for recovery, return it alongside the error
		return m, err
	}
	m.scheduleVacuum()

	// Create or update table schemas
	m.logger.Debug(fmt.Sprintf("migrating table: %#v", &CommitTimestamp{}))
	if err := m.db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return m, err
	}
	for _, model := range models.MigrateModels {
		m.logger.Debug(fmt.Sprintf("migrating table: %#v", model))
		if err := m.db.AutoMigrate(model); err != nil {
			return m, err
		}
	}
	return m, nil
}

// open connects to the sqlite database derived from the store options. An
// empty data directory selects the in-memory mode.
func (d *MetadataStoreSqlite) open() (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	if d.dataDir == "" {
		// cache=shared lets every connection see the same in-memory database
		return gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			gormCfg,
		)
	}
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dbPath := filepath.Join(d.dataDir, "metadata.sqlite")
	// WAL journal mode, no sync on write, and a 50MB page cache. Durability
	// comes from the commit timestamp check at startup rather than fsync.
	connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)&_pragma=cache_size(-50000)"
	return gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
		gormCfg,
	)
}

// AutoMigrate creates or updates the schema for the given models
func (d *MetadataStoreSqlite) AutoMigrate(dst ...any) error {
	return d.DB().AutoMigrate(dst...)
}

// Start implements the plugin.Plugin interface. The store is already
// usable after New, so there is nothing to do
func (d *MetadataStoreSqlite) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

// Close stops the vacuum timer, waits out any in-flight vacuum, and closes
// the database connection
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	d.vacuumWG.Wait()

	sqlDB, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB handle: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database handle
func (d *MetadataStoreSqlite) DB() *gorm.DB {
	return d.db
}

// scheduleVacuum arms the next vacuum run. Each run re-arms the timer, so
// the interval is measured between completions rather than starts.
func (d *MetadataStoreSqlite) scheduleVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.vacuumInterval <= 0 {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	d.timerVacuum = time.AfterFunc(d.vacuumInterval, func() {
		defer d.scheduleVacuum()
		d.logger.Debug(
			"reclaiming free pages in metadata store",
			"component", "database",
		)
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"metadata store vacuum failed",
				"component", "database",
				"error", err,
			)
		}
	})
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	// An in-memory database is dropped on close, nothing to reclaim
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()

	if result := d.DB().Raw("VACUUM"); result.Error != nil {
		return result.Error
	}
	return nil
}
