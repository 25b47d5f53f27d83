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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type SqliteOptionFunc func(*MetadataStoreSqlite)

// WithDataDir sets the directory holding the sqlite database file. An
// empty directory selects an in-memory database
func WithDataDir(dataDir string) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.dataDir = dataDir
	}
}

// WithLogger sets the logger for store messages
func WithLogger(logger *slog.Logger) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.logger = logger
	}
}

// WithPromRegistry sets the prometheus registry for store metrics
func WithPromRegistry(registry prometheus.Registerer) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.promRegistry = registry
	}
}

// WithVacuumInterval overrides how often the store reclaims space freed by
// deleted rows, mostly from expired upgrade sweeps. Zero or negative
// intervals disable the vacuum entirely
func WithVacuumInterval(interval time.Duration) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.vacuumInterval = interval
	}
}
