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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/policy"
	"github.com/gavelhq/gavel/timelock"
	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	callExecutor     timelock.Executor
	upgradeExecutor  timelock.UpgradeExecutor
	privilegedActors []core.Address
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	runMode          string
	// Governance API listen address (empty = disabled)
	apiListenAddress string
	// Cron expression for the periodic maintenance job
	maintenanceSpec      string
	quorumBps            uint64
	proposerThresholdBps uint64
	votingDelay          uint64
	// Voting window lengths per proposal class (0 = use default)
	standardVotingPeriod       uint64
	emergencyVotingPeriod      uint64
	constitutionalVotingPeriod uint64
	upgradeVotingPeriod        uint64
	// Timelock queue delays per proposal class (0 = use default)
	standardQueueDelay       uint64
	emergencyQueueDelay      uint64
	constitutionalQueueDelay uint64
	// Timelock delay floors and upgrade scheduling parameters (0 = use default)
	minDelay               uint64
	emergencyMinDelay      uint64
	upgradeDelay           uint64
	emergencyUpgradeDelay  uint64
	upgradeExecutionWindow uint64
	devTickInterval        time.Duration
	shutdownTimeout        time.Duration
	tracing                bool
	tracingStdout          bool
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

func (e *Engine) configValidate() error {
	switch e.config.runMode {
	case "", runModeServe, runModeDev:
	default:
		return fmt.Errorf("unknown run mode: %s", e.config.runMode)
	}
	// Delay floor ordering only needs checking when both halves of a pair
	// are overridden. Zero values select defaults that already honor it
	if e.config.minDelay > 0 && e.config.emergencyMinDelay > 0 &&
		e.config.minDelay <= e.config.emergencyMinDelay {
		return fmt.Errorf(
			"minimum delay (%d) must exceed emergency minimum delay (%d)",
			e.config.minDelay,
			e.config.emergencyMinDelay,
		)
	}
	if e.config.upgradeDelay > 0 && e.config.emergencyUpgradeDelay > 0 &&
		e.config.upgradeDelay <= e.config.emergencyUpgradeDelay {
		return fmt.Errorf(
			"upgrade delay (%d) must exceed emergency upgrade delay (%d)",
			e.config.upgradeDelay,
			e.config.emergencyUpgradeDelay,
		)
	}
	// Class queue delays must clear the floor the execution gate enforces,
	// or every Queue for that class fails at runtime with ErrDelayTooShort.
	// A zero selects the default on either side, so the comparison uses
	// effective values
	minDelay := e.config.minDelay
	if minDelay == 0 {
		minDelay = timelock.DefaultMinDelay
	}
	emergencyMinDelay := e.config.emergencyMinDelay
	if emergencyMinDelay == 0 {
		emergencyMinDelay = timelock.DefaultEmergencyMinDelay
	}
	queueDelayChecks := []struct {
		class        string
		delay        uint64
		defaultDelay uint64
		floor        uint64
	}{
		{
			"standard",
			e.config.standardQueueDelay,
			policy.DefaultStandardQueueDelay,
			minDelay,
		},
		{
			"constitutional",
			e.config.constitutionalQueueDelay,
			policy.DefaultConstitutionalQueueDelay,
			minDelay,
		},
		{
			"emergency",
			e.config.emergencyQueueDelay,
			policy.DefaultEmergencyQueueDelay,
			emergencyMinDelay,
		},
	}
	for _, check := range queueDelayChecks {
		delay := check.delay
		if delay == 0 {
			delay = check.defaultDelay
		}
		if delay < check.floor {
			return fmt.Errorf(
				"%s queue delay (%d) is below the timelock minimum delay (%d)",
				check.class,
				delay,
				check.floor,
			)
		}
	}
	if e.config.devTickInterval < 0 {
		return fmt.Errorf(
			"invalid dev tick interval: %s",
			e.config.devTickInterval,
		)
	}
	return nil
}

// ConfigOptionFunc mutates an engine Config during NewConfig
type ConfigOptionFunc func(*Config)

// NewConfig builds an engine Config from the given options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Discard by default so log sites never need a nil check
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger sets the logger. Without one, log output is discarded
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry sets the registry engine metrics are added to.
// Pass prometheus.DefaultRegisterer to expose them on the default handler
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath sets the persistent data directory. Without one, both
// stores run in memory and nothing survives a restart
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithApiListenAddress specifies the listen address
// for the governance REST API server. An empty string
// disables the server. The default is empty (disabled).
func WithApiListenAddress(
	addr string,
) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithCallExecutor specifies the dispatcher for proposal calls released by
// the timelock. The default records execution without dispatching anywhere
func WithCallExecutor(executor timelock.Executor) ConfigOptionFunc {
	return func(c *Config) {
		c.callExecutor = executor
	}
}

// WithUpgradeExecutor specifies the dispatcher that performs implementation
// swaps for scheduled upgrades
func WithUpgradeExecutor(executor timelock.UpgradeExecutor) ConfigOptionFunc {
	return func(c *Config) {
		c.upgradeExecutor = executor
	}
}

// WithPrivilegedActors specifies the addresses granted the privileged role:
// they may cancel any live proposal, adjust the proposer threshold, and
// submit upgrade-class proposals without meeting the threshold
func WithPrivilegedActors(actors ...core.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.privilegedActors = append(c.privilegedActors, actors...)
	}
}

// WithQuorumBps specifies the base participation minimum in basis points
// of total voting supply. The upgrade class carries its own fixed quorum
// and is unaffected
func WithQuorumBps(bps uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.quorumBps = bps
	}
}

// WithProposerThresholdBps specifies the initial proposer threshold in
// basis points. A threshold adjustment persisted by a prior run takes
// precedence at startup
func WithProposerThresholdBps(bps uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.proposerThresholdBps = bps
	}
}

// WithVotingDelay specifies the number of heights between proposal
// submission and its voting snapshot
func WithVotingDelay(delay uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.votingDelay = delay
	}
}

// WithVotingPeriods specifies the voting window length per proposal class.
// Zero values select the defaults
func WithVotingPeriods(
	standard, emergency, constitutional, upgrade uint64,
) ConfigOptionFunc {
	return func(c *Config) {
		c.standardVotingPeriod = standard
		c.emergencyVotingPeriod = emergency
		c.constitutionalVotingPeriod = constitutional
		c.upgradeVotingPeriod = upgrade
	}
}

// WithQueueDelays specifies the timelock delay per proposal class applied
// when a proposal is queued. Zero values select the defaults
func WithQueueDelays(
	standard, emergency, constitutional uint64,
) ConfigOptionFunc {
	return func(c *Config) {
		c.standardQueueDelay = standard
		c.emergencyQueueDelay = emergency
		c.constitutionalQueueDelay = constitutional
	}
}

// WithTimelockDelays specifies the minimum delay floors enforced when
// scheduling operations. The standard floor must exceed the emergency floor
func WithTimelockDelays(minDelay, emergencyMinDelay uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.minDelay = minDelay
		c.emergencyMinDelay = emergencyMinDelay
	}
}

// WithUpgradeWindow specifies the upgrade scheduling delays and the
// length of the execution window. Zero values select the defaults
func WithUpgradeWindow(
	delay, emergencyDelay, executionWindow uint64,
) ConfigOptionFunc {
	return func(c *Config) {
		c.upgradeDelay = delay
		c.emergencyUpgradeDelay = emergencyDelay
		c.upgradeExecutionWindow = executionWindow
	}
}

// WithRunMode sets the operational mode ("serve" or "dev").
// "dev" mode advances the observed tip on a local timer instead of
// waiting for an external height feed.
func WithRunMode(mode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = mode
	}
}

// WithDevTickInterval specifies how often dev mode advances the tip.
// Default is 1 second.
func WithDevTickInterval(
	interval time.Duration,
) ConfigOptionFunc {
	return func(c *Config) {
		c.devTickInterval = interval
	}
}

// WithMaintenanceSchedule specifies the cron expression for the periodic
// maintenance job (expired upgrade sweep and metadata store upkeep).
// Default is "@every 1m".
func WithMaintenanceSchedule(
	spec string,
) ConfigOptionFunc {
	return func(c *Config) {
		c.maintenanceSpec = spec
	}
}

// WithTracing enables OpenTelemetry tracing. Spans go to an OTLP HTTP
// endpoint configured through the standard OTEL_EXPORTER_OTLP_* env vars
// of [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout mirrors spans to stdout for debugging. Tracing itself
// must be enabled separately
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout bounds how long Stop waits for subsystems to wind
// down. Zero selects the 30 second default
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
