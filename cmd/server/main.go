// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/teleshow/internal/api"
	"github.com/tomtom215/teleshow/internal/config"
	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/docstore/memstore"
	"github.com/tomtom215/teleshow/internal/docstore/natskv"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
	"github.com/tomtom215/teleshow/internal/middleware"
	"github.com/tomtom215/teleshow/internal/supervisor"
	"github.com/tomtom215/teleshow/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingConfig())
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("store_backend", cfg.Store.Backend).
		Int("max_subscriptions", cfg.Listeners.MaxSubscriptions).
		Msg("Starting Teleshow live cache")

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin in production; set CORS_ORIGINS to the web app origins")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, breaker, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open document store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	manager := livecache.NewManager(store, cfg.LiveCache())

	opts := []api.HandlerOption{
		api.WithVersion(version),
		api.WithPerformanceMonitor(middleware.NewPerformanceMonitor(1000, time.Second)),
		api.WithWriter(store),
	}
	if breaker != nil {
		opts = append(opts, api.WithBreaker(breaker))
	}
	handler := api.NewHandler(manager, cfg.Store.Backend, opts...)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(cfg)))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Accessors may wait up to the snapshot timeout before answering.
		WriteTimeout: cfg.Server.Timeout + cfg.Listeners.SnapshotTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddDataService(services.NewCacheManagerService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// The data layer normally did this already; it is idempotent.
	manager.ShutdownAllListeners()
	logging.Info().Msg("Application stopped gracefully")
}

// openStore opens the configured document store backend. The breaker is
// nil for backends without one.
func openStore(ctx context.Context, cfg *config.Config) (docstore.ReadWriteStore, api.BreakerReporter, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logging.Warn().Msg("Using the in-memory document store; data is lost on restart")
		return memstore.New(), nil, nil
	case config.BackendNATS:
		openCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout+5*time.Second)
		defer cancel()
		s, err := natskv.Open(openCtx, cfg.NATSStore())
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
