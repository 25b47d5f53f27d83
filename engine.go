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

package gavel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gavelhq/gavel/api"
	"github.com/gavelhq/gavel/checkpoint"
	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/event"
	"github.com/gavelhq/gavel/governor"
	"github.com/gavelhq/gavel/policy"
	"github.com/gavelhq/gavel/timelock"
	"github.com/robfig/cron/v3"
)

type Engine struct {
	governor      *governor.Governor
	timelock      *timelock.Timelock
	policy        *policy.Policy
	ledger        *checkpoint.Ledger
	roles         *core.StaticRoleRegistry
	eventBus      *event.EventBus
	db            *database.Database
	api           *api.Api
	apiCancel     context.CancelFunc
	scheduler     *cron.Cron
	shutdownFuncs []func(context.Context) error
	config        Config
	tipMu         sync.Mutex
	devStop       chan struct{}
	devWg         sync.WaitGroup
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Engine, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	e := &Engine{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := e.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return e, nil
}

func (e *Engine) Run() error {
	// Configure tracing
	if e.config.tracing {
		if err := e.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(
		e.config.logger,
		e.config.dataDir,
		e.config.blobPlugin,
		e.config.metadataPlugin,
		e.config.promRegistry,
	)
	if db == nil {
		return errors.New("database open returned no instance")
	}
	e.db = db
	if err != nil {
		// A torn commit comes back with a usable database handle and is
		// repaired in place. Anything else is fatal.
		var tornCommit database.CommitTimestampError
		if !errors.As(err, &tornCommit) {
			return fmt.Errorf("open database: %w", err)
		}
		e.config.logger.Warn(
			"stores disagree on last commit, running recovery",
			"error",
			err,
		)
		if err := e.db.Recover(); err != nil {
			return fmt.Errorf("recover torn commit: %w", err)
		}
	}
	// Load weight checkpoint ledger
	e.ledger = checkpoint.NewLedger(
		checkpoint.LedgerConfig{
			Logger:       e.config.logger,
			Database:     e.db,
			PromRegistry: e.config.promRegistry,
		},
	)
	if err := e.ledger.Load(); err != nil {
		return fmt.Errorf("failed to load checkpoint ledger: %w", err)
	}
	// Configure role registry
	e.roles = core.NewStaticRoleRegistry(e.config.privilegedActors...)
	// Load governance policy
	e.policy = policy.NewPolicy(
		policy.PolicyConfig{
			Logger:                     e.config.logger,
			Database:                   e.db,
			EventBus:                   e.eventBus,
			PromRegistry:               e.config.promRegistry,
			Roles:                      e.roles,
			QuorumBps:                  e.config.quorumBps,
			ProposerThresholdBps:       e.config.proposerThresholdBps,
			StandardVotingPeriod:       e.config.standardVotingPeriod,
			EmergencyVotingPeriod:      e.config.emergencyVotingPeriod,
			ConstitutionalVotingPeriod: e.config.constitutionalVotingPeriod,
			UpgradeVotingPeriod:        e.config.upgradeVotingPeriod,
			StandardQueueDelay:         e.config.standardQueueDelay,
			EmergencyQueueDelay:        e.config.emergencyQueueDelay,
			ConstitutionalQueueDelay:   e.config.constitutionalQueueDelay,
		},
	)
	if err := e.policy.Load(); err != nil {
		return fmt.Errorf("failed to load governance policy: %w", err)
	}
	// Initialize timelock
	e.timelock = timelock.NewTimelock(
		timelock.TimelockConfig{
			Logger:                 e.config.logger,
			Database:               e.db,
			EventBus:               e.eventBus,
			PromRegistry:           e.config.promRegistry,
			Executor:               e.config.callExecutor,
			UpgradeExecutor:        e.config.upgradeExecutor,
			MinDelay:               e.config.minDelay,
			EmergencyMinDelay:      e.config.emergencyMinDelay,
			UpgradeDelay:           e.config.upgradeDelay,
			EmergencyUpgradeDelay:  e.config.emergencyUpgradeDelay,
			UpgradeExecutionWindow: e.config.upgradeExecutionWindow,
		},
	)
	// Initialize governor
	e.governor = governor.NewGovernor(
		governor.GovernorConfig{
			Logger:       e.config.logger,
			Database:     e.db,
			EventBus:     e.eventBus,
			PromRegistry: e.config.promRegistry,
			Weights:      e.ledger,
			Roles:        e.roles,
			Policy:       e.policy,
			Timelock:     e.timelock,
			VotingDelay:  e.config.votingDelay,
		},
	)
	// Start governance API listener
	if e.config.apiListenAddress != "" {
		e.api = api.New(
			api.ApiConfig{
				ListenAddress: e.config.apiListenAddress,
			},
			e,
			e.config.logger,
		)
		apiCtx, apiCancel := context.WithCancel(context.Background())
		e.apiCancel = apiCancel
		if err := e.api.Start(apiCtx); err != nil {
			apiCancel()
			return err
		}
	}
	// Schedule periodic maintenance
	maintenanceSpec := "@every 1m"
	if e.config.maintenanceSpec != "" {
		maintenanceSpec = e.config.maintenanceSpec
	}
	e.scheduler = cron.New()
	if _, err := e.scheduler.AddFunc(maintenanceSpec, e.runMaintenance); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	e.scheduler.Start()
	// Start dev tip ticker
	if e.config.isDevMode() {
		e.startDevTicker()
	}

	// Wait for shutdown signal
	<-e.done
	return nil
}

func (e *Engine) Stop() error {
	var err error
	e.shutdownOnce.Do(func() {
		err = e.shutdown()
	})
	return err
}

func (e *Engine) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if e.config.shutdownTimeout > 0 {
		shutdownTimeout = e.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	e.config.logger.Debug("shutdown: stopping intake")

	if e.devStop != nil {
		close(e.devStop)
		e.devWg.Wait()
		e.devStop = nil
	}

	if e.scheduler != nil {
		stopCtx := e.scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			err = errors.Join(
				err,
				fmt.Errorf("maintenance scheduler shutdown: %w", ctx.Err()),
			)
		}
	}

	if e.api != nil {
		if e.apiCancel != nil {
			e.apiCancel()
		}
		if stopErr := e.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	e.config.logger.Debug("shutdown: draining event handlers")

	if e.eventBus != nil {
		e.eventBus.Stop()
	}

	e.config.logger.Debug("shutdown: closing database")

	if e.db != nil {
		if closeErr := e.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	e.config.logger.Debug("shutdown: running registered hooks")

	for _, fn := range e.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown hook: %w", fnErr))
		}
	}
	e.shutdownFuncs = nil

	e.config.logger.Debug("shutdown complete")
	close(e.done)
	return err
}

// Governor returns the proposal lifecycle machine
func (e *Engine) Governor() *governor.Governor {
	return e.governor
}

// Timelock returns the execution gate for queued operations and upgrades
func (e *Engine) Timelock() *timelock.Timelock {
	return e.timelock
}

// Policy returns the governance policy
func (e *Engine) Policy() *policy.Policy {
	return e.policy
}

// Ledger returns the weight checkpoint ledger. Embedding applications
// record balance changes through it as their token ledger moves.
func (e *Engine) Ledger() *checkpoint.Ledger {
	return e.ledger
}

// EventBus returns the engine event bus
func (e *Engine) EventBus() *event.EventBus {
	return e.eventBus
}

// Database returns the engine database
func (e *Engine) Database() *database.Database {
	return e.db
}

// Tip returns the engine's current view of the ledger height
func (e *Engine) Tip() (models.Tip, error) {
	return e.db.GetTip(nil)
}

// SetTip records a new observed tip height. Heights are monotonic: a
// regression is rejected and re-pushing the current height is a no-op.
func (e *Engine) SetTip(height uint64) error {
	e.tipMu.Lock()
	defer e.tipMu.Unlock()
	return e.setTipLocked(height)
}

func (e *Engine) setTipLocked(height uint64) error {
	tip, err := e.db.GetTip(nil)
	if err != nil {
		return err
	}
	if height < tip.Height {
		return fmt.Errorf(
			"tip height %d is behind current height %d",
			height,
			tip.Height,
		)
	}
	if height == tip.Height {
		return nil
	}
	if err := e.db.SetTip(
		models.Tip{ID: models.TipEntryID, Height: height},
		nil,
	); err != nil {
		return err
	}
	e.eventBus.Publish(
		event.TipAdvancedEventType,
		event.NewEvent(
			event.TipAdvancedEventType,
			event.TipAdvancedEvent{
				Height: height,
			},
		),
	)
	return nil
}

// advanceTip bumps the observed tip by one height
func (e *Engine) advanceTip() error {
	e.tipMu.Lock()
	defer e.tipMu.Unlock()
	tip, err := e.db.GetTip(nil)
	if err != nil {
		return err
	}
	return e.setTipLocked(tip.Height + 1)
}

// startDevTicker advances the tip on a local timer so voting windows and
// timelock delays elapse without an external height feed
func (e *Engine) startDevTicker() {
	interval := time.Second
	if e.config.devTickInterval > 0 {
		interval = e.config.devTickInterval
	}
	e.devStop = make(chan struct{})
	e.devWg.Add(1)
	go func() {
		defer e.devWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.devStop:
				return
			case <-ticker.C:
				if err := e.advanceTip(); err != nil {
					e.config.logger.Warn(
						"failed to advance dev tip",
						"error",
						err,
					)
				}
			}
		}
	}()
}

// runMaintenance sweeps expired upgrade windows and nudges the metadata
// store to reclaim space. Failures are logged rather than returned so one
// bad pass never takes the scheduler down.
func (e *Engine) runMaintenance() {
	swept, err := e.timelock.SweepExpiredUpgrades()
	if err != nil {
		e.config.logger.Warn(
			"expired upgrade sweep failed",
			"error",
			err,
		)
	} else if swept > 0 {
		e.config.logger.Info(
			"swept expired upgrades",
			"count",
			swept,
		)
	}
	if metadataDb := e.db.Metadata().DB(); metadataDb != nil {
		if err := metadataDb.Exec("PRAGMA optimize").Error; err != nil {
			e.config.logger.Warn(
				"metadata store optimize failed",
				"error",
				err,
			)
		}
	}
}
