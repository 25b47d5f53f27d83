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

// Package api exposes the governance engine over REST: proposal
// submission and lifecycle operations, ballot queries, and the upgrade
// sub-ledger, all under /api/v1.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/governor"
	"github.com/gavelhq/gavel/timelock"
	"github.com/gorilla/mux"
)

// ApiEngine is the interface the REST server uses to reach the governance
// engine. This decouples the HTTP layer from the concrete Engine struct
// and lets tests wire the components directly.
type ApiEngine interface {
	// Governor returns the proposal lifecycle machine
	Governor() *governor.Governor

	// Timelock returns the execution gate
	Timelock() *timelock.Timelock

	// Tip returns the current observed height
	Tip() (models.Tip, error)
}

type ApiConfig struct {
	ListenAddress string
}

// Api is the governance REST API server.
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	engine     ApiEngine
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(
	cfg ApiConfig,
	engine ApiEngine,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":3000"
	}
	return &Api{
		config: cfg,
		logger: logger,
		engine: engine,
	}
}

// router builds the route table. Split out from Start so handler tests
// can serve requests without a listening socket.
func (a *Api) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", a.handleHealth).
		Methods(http.MethodGet)
	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/tip", a.handleTip).
		Methods(http.MethodGet)
	apiV1.HandleFunc("/proposals", a.handleProposalSubmit).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/proposals", a.handleProposalList).
		Methods(http.MethodGet)
	apiV1.HandleFunc("/proposals/{id}", a.handleProposalInfo).
		Methods(http.MethodGet)
	apiV1.HandleFunc("/proposals/{id}/votes", a.handleProposalVotes).
		Methods(http.MethodGet)
	apiV1.HandleFunc("/proposals/{id}/votes", a.handleCastVote).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/proposals/{id}/queue", a.handleProposalQueue).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/proposals/{id}/execute", a.handleProposalExecute).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/proposals/{id}/cancel", a.handleProposalCancel).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/upgrades/{resource}", a.handleUpgradeSchedule).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/upgrades/{resource}", a.handleUpgradeInfo).
		Methods(http.MethodGet)
	apiV1.HandleFunc("/upgrades/{resource}/execute", a.handleUpgradeExecute).
		Methods(http.MethodPost)
	apiV1.HandleFunc("/upgrades/{resource}/cleanup", a.handleUpgradeCleanup).
		Methods(http.MethodPost)
	return router
}

// Start starts the HTTP server in a background goroutine.
func (a *Api) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("api server already running")
	}
	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.router(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"governance api listening",
		"address", a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer starts the HTTP server with deterministic error detection.
// It binds the listening socket first so port conflicts are detected
// immediately, then serves in a background goroutine.
func (a *Api) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
