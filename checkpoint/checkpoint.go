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

// Package checkpoint maintains per-subject voting-weight series with
// height-indexed lookups. Weights are append-only: a checkpoint recorded
// at a height strictly below a later one never changes, which is what
// makes snapshot voting sound.
package checkpoint

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrStaleHeight is returned when a checkpoint is recorded at a height
// below the latest recorded height
var ErrStaleHeight = core.NewStateViolation(
	"checkpoint height precedes latest recorded height",
)

// ErrZeroSubject is returned when a caller records a weight for the zero
// address, which is reserved for the aggregate series
var ErrZeroSubject = errors.New(
	"checkpoint subject must not be the zero address",
)

type entry struct {
	value  *big.Int
	height uint64
}

// series is one subject's checkpoint history in ascending height order
type series struct {
	mu      sync.RWMutex
	entries []entry
}

func (s *series) last() (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// upsert appends a checkpoint or overwrites the newest one in place when
// the height matches. Callers enforce monotonicity before calling.
func (s *series) upsert(height uint64, value *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.entries); n > 0 && s.entries[n-1].height == height {
		s.entries[n-1].value = value
		return
	}
	s.entries = append(s.entries, entry{height: height, value: value})
}

// valueAt returns the value of the newest checkpoint at or below the
// given height, or nil when the series starts later
func (s *series) valueAt(height uint64) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].height > height
	})
	if idx == 0 {
		return nil
	}
	return new(big.Int).Set(s.entries[idx-1].value)
}

type LedgerConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	PromRegistry prometheus.Registerer
}

// Ledger is the in-memory checkpoint index backed by the metadata store.
// Reads are served from memory; Record writes through to the store before
// updating memory so a crash never loses an acknowledged checkpoint.
type Ledger struct {
	config  LedgerConfig
	metrics struct {
		recordsTotal prometheus.Counter
		subjects     prometheus.Gauge
	}
	logger   *slog.Logger
	db       *database.Database
	subjects *xsync.Map[core.Address, *series]
	totals   *series
	// writeMu serializes Record so the aggregate series stays consistent
	// with the per-subject series. Reads never take it.
	writeMu sync.Mutex
}

func NewLedger(config LedgerConfig) *Ledger {
	l := &Ledger{
		config:   config,
		db:       config.Database,
		subjects: xsync.NewMap[core.Address, *series](),
		totals:   &series{},
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		l.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	l.metrics.recordsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_records_total",
			Help: "total weight checkpoints recorded",
		},
	)
	l.metrics.subjects = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "checkpoint_subjects",
		Help: "current count of subjects with recorded weight",
	})
	return l
}

// Load rebuilds the in-memory index from the metadata store. Rows under
// the zero address form the aggregate series.
func (l *Ledger) Load() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	rawSubjects, err := l.db.GetCheckpointSubjects(nil)
	if err != nil {
		return err
	}
	subjects := xsync.NewMap[core.Address, *series]()
	totals := &series{}
	subjectCount := 0
	for _, rawSubject := range rawSubjects {
		subject, err := parseSubject(rawSubject)
		if err != nil {
			return err
		}
		checkpoints, err := l.db.GetCheckpointsBySubject(rawSubject, nil)
		if err != nil {
			return err
		}
		s := &series{
			entries: make([]entry, 0, len(checkpoints)),
		}
		for _, checkpoint := range checkpoints {
			s.entries = append(s.entries, entry{
				height: checkpoint.Height,
				value:  new(big.Int).Set(checkpoint.Value.Int),
			})
		}
		if subject.IsZero() {
			totals = s
			continue
		}
		subjects.Store(subject, s)
		subjectCount++
	}
	l.subjects = subjects
	l.totals = totals
	l.metrics.subjects.Set(float64(subjectCount))
	l.logger.Info(
		"checkpoint ledger loaded",
		"component", "checkpoint",
		"subjects", subjectCount,
	)
	return nil
}

// Record appends a weight checkpoint for a subject and rolls the delta
// into the aggregate series. Heights must not move backwards; recording
// at the newest height overwrites it, collapsing multiple changes within
// one height into a single checkpoint.
func (l *Ledger) Record(
	subject core.Address,
	value *big.Int,
	height uint64,
) error {
	if subject.IsZero() {
		return ErrZeroSubject
	}
	if value == nil {
		value = new(big.Int)
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	s, known := l.subjects.Load(subject)

	lastValue := new(big.Int)
	if known {
		if last, ok := s.last(); ok {
			if height < last.height {
				return ErrStaleHeight
			}
			lastValue.Set(last.value)
		}
	}
	lastTotal := new(big.Int)
	if last, ok := l.totals.last(); ok {
		if height < last.height {
			return ErrStaleHeight
		}
		lastTotal.Set(last.value)
	}

	valueCopy := new(big.Int).Set(value)
	delta := new(big.Int).Sub(valueCopy, lastValue)
	newTotal := new(big.Int).Add(lastTotal, delta)

	// Write through before touching memory
	if err := l.db.SetCheckpoints([]models.Checkpoint{
		{
			Subject: subject.Bytes(),
			Height:  height,
			Value:   types.NewBigInt(valueCopy),
		},
		{
			Subject: core.ZeroAddress.Bytes(),
			Height:  height,
			Value:   types.NewBigInt(newTotal),
		},
	}, nil); err != nil {
		return err
	}

	if !known {
		s = &series{}
		l.subjects.Store(subject, s)
		l.metrics.subjects.Inc()
	}
	s.upsert(height, valueCopy)
	l.totals.upsert(height, newTotal)

	l.metrics.recordsTotal.Inc()
	return nil
}

// OnWeightChange is the balance-ledger hook. It is Record under the name
// integrators bind to.
func (l *Ledger) OnWeightChange(
	subject core.Address,
	value *big.Int,
	height uint64,
) error {
	return l.Record(subject, value, height)
}

// ValueAt returns the subject's weight as of the given height. Subjects
// with no checkpoint at or below the height have zero weight.
func (l *Ledger) ValueAt(subject core.Address, height uint64) *big.Int {
	if s, ok := l.subjects.Load(subject); ok {
		if v := s.valueAt(height); v != nil {
			return v
		}
	}
	return new(big.Int)
}

// TotalAt returns the aggregate weight as of the given height
func (l *Ledger) TotalAt(height uint64) *big.Int {
	if v := l.totals.valueAt(height); v != nil {
		return v
	}
	return new(big.Int)
}

// CurrentWeight returns the subject's weight at its newest checkpoint
func (l *Ledger) CurrentWeight(subject core.Address) (*big.Int, error) {
	if s, ok := l.subjects.Load(subject); ok {
		if last, ok := s.last(); ok {
			return new(big.Int).Set(last.value), nil
		}
	}
	return new(big.Int), nil
}

// WeightAt returns the subject's weight as of the given height
func (l *Ledger) WeightAt(
	subject core.Address,
	height uint64,
) (*big.Int, error) {
	return l.ValueAt(subject, height), nil
}

// TotalWeightAt returns the aggregate weight as of the given height
func (l *Ledger) TotalWeightAt(height uint64) (*big.Int, error) {
	return l.TotalAt(height), nil
}

func parseSubject(raw []byte) (core.Address, error) {
	var subject core.Address
	if len(raw) != core.AddressSize {
		return subject, errors.New("checkpoint subject has unexpected size")
	}
	copy(subject[:], raw)
	return subject, nil
}
