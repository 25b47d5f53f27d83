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

package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gavelhq/gavel"
	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(
		"resolved configuration",
		"config", fmt.Sprintf("%+v", cfg),
		"component", "daemon",
	)

	shutdownTimeout := 30 * time.Second
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdown timeout: %w", err)
		}
	}
	var devTickInterval time.Duration
	if cfg.DevTickInterval != "" {
		var err error
		devTickInterval, err = time.ParseDuration(cfg.DevTickInterval)
		if err != nil {
			return fmt.Errorf("parse dev tick interval: %w", err)
		}
	}
	// Parse privileged actor addresses
	privilegedActors := make([]core.Address, 0, len(cfg.PrivilegedActors))
	for _, actor := range cfg.PrivilegedActors {
		addr, err := core.ParseAddress(actor)
		if err != nil {
			return fmt.Errorf("invalid privileged actor %q: %w", actor, err)
		}
		privilegedActors = append(privilegedActors, addr)
	}

	e, err := gavel.New(
		gavel.NewConfig(
			gavel.WithLogger(logger),
			gavel.WithDatabasePath(cfg.DatabasePath),
			gavel.WithBlobPlugin(cfg.BlobPlugin),
			gavel.WithMetadataPlugin(cfg.MetadataPlugin),
			gavel.WithApiListenAddress(cfg.ApiListenAddress()),
			gavel.WithPrivilegedActors(privilegedActors...),
			gavel.WithQuorumBps(cfg.QuorumBps),
			gavel.WithProposerThresholdBps(cfg.ProposerThresholdBps),
			gavel.WithVotingDelay(cfg.VotingDelay),
			gavel.WithVotingPeriods(
				cfg.StandardVotingPeriod,
				cfg.EmergencyVotingPeriod,
				cfg.ConstitutionalVotingPeriod,
				cfg.UpgradeVotingPeriod,
			),
			gavel.WithQueueDelays(
				cfg.StandardQueueDelay,
				cfg.EmergencyQueueDelay,
				cfg.ConstitutionalQueueDelay,
			),
			gavel.WithTimelockDelays(cfg.MinDelay, cfg.EmergencyMinDelay),
			gavel.WithUpgradeWindow(
				cfg.UpgradeDelay,
				cfg.EmergencyUpgradeDelay,
				cfg.UpgradeExecutionWindow,
			),
			gavel.WithRunMode(string(cfg.RunMode)),
			gavel.WithDevTickInterval(devTickInterval),
			gavel.WithMaintenanceSchedule(cfg.MaintenanceSchedule),
			gavel.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			gavel.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			gavel.WithTracing(cfg.Tracing),
			gavel.WithTracingStdout(cfg.TracingStdout),
		),
	)
	if err != nil {
		return err
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if metricsAddr := cfg.MetricsListenAddress(); metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		logger.Info(
			"prometheus metrics listening",
			"address", metricsAddr,
			"component", "daemon",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				err != http.ErrServerClosed {
				logger.Error(
					"metrics listener failed",
					"error", err,
					"component", "daemon",
				)
				os.Exit(1)
			}
		}()
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run engine in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := e.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	stopMetricsServer := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics listener shutdown", "error", err)
		}
	}

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("termination signal received, stopping engine")

		stopMetricsServer()

		if err := e.Stop(); err != nil {
			logger.Error("engine stop reported errors", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("engine stopped")
			stopMetricsServer()
			if err := e.Stop(); err != nil {
				logger.Error("engine stop reported errors", "error", err)
				return err
			}
			return nil
		}
		logger.Error("engine error", "error", err)
		signalCtxStop()

		// Free engine resources before surfacing the original error
		if stopErr := e.Stop(); stopErr != nil {
			logger.Error(
				"engine stop reported errors during failure cleanup",
				"error",
				stopErr,
			)
		}

		stopMetricsServer()

		return err
	}
}
