// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/api"
	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/authz"
	"github.com/tomtom215/crowdwatch/internal/cache"
	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/eventbus"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/results"
	"github.com/tomtom215/crowdwatch/internal/store"
	"github.com/tomtom215/crowdwatch/internal/supervisor"
	"github.com/tomtom215/crowdwatch/internal/supervisor/services"
	ws "github.com/tomtom215/crowdwatch/internal/websocket"
)

const (
	resultCacheTTL   = 30 * time.Second
	authzDecisionTTL = time.Minute
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Crowdwatch with supervisor tree")
	logging.Info().
		Str("results_dir", cfg.Results.Dir).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Authentication
	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	accounts := auth.NewService(st, jwtManager)
	if err := accounts.EnsureAdmin(ctx, cfg.Security.AdminUsername, cfg.Security.AdminPassword); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed admin account")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		PolicyPath:     cfg.Security.PolicyPath,
		ReloadInterval: cfg.Security.PolicyReload,
		CacheTTL:       authzDecisionTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}

	// Results: watcher, merged query service and mirror
	watcher := results.NewWatcher(cfg.Results.Dir, results.Options{
		ScanInterval: cfg.Results.ScanInterval,
	})
	if err := watcher.Scan(); err != nil {
		logging.Warn().Err(err).Str("dir", cfg.Results.Dir).Msg("Initial results scan failed")
	}

	storeBreaker := store.NewBreaker("store")
	querier := query.NewService(query.NewStoreAdapter(st, storeBreaker), watcher, query.Options{
		SourceTimeout:        cfg.Results.SourceTimeout,
		BulkFallbackMaxFiles: cfg.Results.BulkFallbackMaxFiles,
	})
	mirror := query.NewMirror(watcher, st)
	resultCache := cache.New(resultCacheTTL)

	// Real time fan-out: the hub always, NATS when enabled
	wsHub := ws.NewHub()
	var broadcaster eventbus.Broadcaster = wsHub
	if cfg.NATS.Enabled {
		publisher, err := eventbus.NewPublisher(cfg.NATS)
		switch {
		case errors.Is(err, eventbus.ErrNATSNotEnabled):
			logging.Warn().Msg("NATS_ENABLED is set but this binary was built without -tags nats")
		case err != nil:
			logging.Fatal().Err(err).Msg("Failed to connect to NATS")
		default:
			defer func() {
				if err := publisher.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing NATS publisher")
				}
			}()
			broadcaster = eventbus.NewFanout(wsHub, publisher)
			logging.Info().Str("url", cfg.NATS.URL).Msg("NATS event publishing enabled")
		}
	}

	alerts := alerting.NewService(st, broadcaster, alerting.Config{
		ActivityThreshold: cfg.Alerting.CameraActivityThreshold,
		DefaultThreshold:  cfg.Alerting.DefaultCrowdThreshold,
	})

	wsHandler := ws.NewHandler(wsHub, jwtManager, querier, ws.HandlerConfig{
		AllowedOrigins: cfg.Security.CORSOrigins,
	})

	handler := api.NewHandler(api.Deps{
		Config:    cfg,
		Accounts:  accounts,
		Auth:      auth.NewMiddleware(jwtManager, enforcer),
		Results:   querier,
		Files:     watcher,
		Mirror:    mirror,
		Alerting:  alerts,
		Users:     st,
		Clients:   wsHub,
		Breaker:   storeBreaker,
		WebSocket: http.HandlerFunc(wsHandler.ServeWS),
		Cache:     resultCache,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === BUILD SUPERVISOR TREE ===

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer services
	tree.AddDataService(services.NewWatcherService(watcher))
	tree.AddDataService(services.NewCacheService(resultCache, watcher, resultCacheTTL))
	tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	if cfg.Results.MirrorOnStart {
		tree.AddDataService(services.NewMirrorOnceService(mirror))
		logging.Info().Msg("Startup mirror added to supervisor tree")
	}

	// Messaging layer services
	tree.AddMessagingService(services.NewHubService(wsHub))
	tree.AddMessagingService(services.NewBridgeService(ws.NewBridge(watcher, broadcaster)))
	logging.Info().Msg("WebSocket hub and results bridge added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The channel carries exactly one result and is never closed.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
