// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package main is the entry point for the Matchkeeper daemon.
//
// The daemon wires four planes together and hands them to a Suture v4
// supervision tree:
//
//  1. Storage: BadgerDB match store plus the stat schema registry
//  2. Transport: Watermill bus (in-process gochannel or NATS JetStream)
//  3. Gamepack: session registry, match data consumer, RPC service
//  4. Operational: recovery orchestrator and the HTTP API
//
// Construction happens in main before the tree starts serving, so a
// component that cannot come up fails the process immediately instead
// of flapping under supervision. Once the tree runs, restarts are its
// job: a crashed consumer or HTTP listener is restarted with backoff
// while the rest of the daemon keeps working.
//
// Shutdown is signal-driven. SIGINT or SIGTERM cancels the root
// context, the tree drains its services youngest-layer-first, and the
// deferred closes in main take the bus and the store down last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/api"
	"github.com/matchkeeper/matchkeeper/internal/backup"
	"github.com/matchkeeper/matchkeeper/internal/config"
	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/metrics"
	"github.com/matchkeeper/matchkeeper/internal/pipeline"
	"github.com/matchkeeper/matchkeeper/internal/recovery"
	"github.com/matchkeeper/matchkeeper/internal/store"
	"github.com/matchkeeper/matchkeeper/internal/supervisor"
	"github.com/matchkeeper/matchkeeper/internal/transport"
)

// version is stamped at build time:
//
//	go build -ldflags "-X main.version=v1.2.0" ./cmd/server
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.LoggerConfig())

	logging.Info().Str("version", version).Msg("Starting Matchkeeper with supervisor tree")
	logging.Info().
		Str("transport_mode", string(cfg.Transport.Mode)).
		Str("store_path", cfg.Store.Path).
		Int("packs", len(cfg.Packs)).
		Msg("Configuration loaded")
	if len(cfg.Packs) == 0 {
		logging.Warn().Msg("No gamepacks declared; match data topics will not be consumed")
	}

	metrics.SetAppInfo(version)

	// Watch the loaded config file and apply log level changes without
	// a restart. Everything else still needs one.
	if path := config.FindConfigFile(); path != "" {
		if err := config.WatchConfigFile(path, func() {
			reloaded, err := config.Load()
			if err != nil {
				logging.Warn().Err(err).Msg("Config reload failed, keeping current settings")
				return
			}
			logging.SetLevelString(reloaded.Logging.Level)
		}); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		}
	}

	st, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open match store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing match store")
		}
	}()

	schemas, err := cfg.BuildSchemaRegistry()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build schema registry")
	}

	bus, err := transport.NewBus(cfg.Transport)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start message bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message bus")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === GAMEPACK PLANE ===
	// The registry tracks live sessions, the pipeline owns the write
	// path, the consumer feeds it from the bus, and the RPC service
	// answers pack requests. All handlers attach before the tree runs.
	registry := gamepack.NewRegistry()
	pipe := pipeline.New(st, schemas)

	router, err := transport.NewRouter(cfg.Transport.Router, bus.Publisher())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create message router")
	}

	packIDs := cfg.PackIDs()
	gamepack.NewConsumer(bus, pipe, registry, packIDs).Attach(router)

	requester := transport.NewRequester(bus, transport.DaemonPeer, cfg.Transport.RequestTimeout)
	if err := requester.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start RPC requester")
	}

	rpcService := gamepack.NewService(registry, st, pipe, requester, packIDs, gamepack.CaptureWindow{
		PreSecs:  cfg.Capture.PreSecs,
		PostSecs: cfg.Capture.PostSecs,
	})
	responder := transport.NewResponder(bus, transport.DaemonPeer)
	rpcService.Attach(responder)
	responder.Attach(router)

	orchestrator, err := recovery.NewOrchestrator(cfg.Recovery, st, rpcService, pipe)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recovery orchestrator")
	}

	// === OPERATIONAL API ===
	handler := api.NewHandler(cfg, st, schemas, registry, orchestrator, version)
	httpRouter := api.NewRouter(handler, api.NewMiddleware(cfg.Server))
	server := api.NewServer(cfg.Server, httpRouter.Setup())

	// === SUPERVISOR TREE ===
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(supervisor.NewGCService(st))

	if cfg.Backup.Enabled {
		backupMgr, err := backup.NewManager(cfg.Backup, st)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create backup manager")
		}
		tree.AddDataService(backupMgr)
		logging.Info().
			Str("dir", cfg.Backup.Dir).
			Dur("interval", cfg.Backup.Interval).
			Msg("Backup service added")
	} else {
		logging.Info().Msg("Backup functionality disabled (BACKUP_ENABLED=false)")
	}

	tree.AddMessagingService(supervisor.NewRouterService(router))
	tree.AddMessagingService(supervisor.NewRecoveryService(orchestrator))
	tree.AddAPIService(server)
	logging.Info().Str("addr", server.Addr()).Msg("HTTP server service added")

	// Publish uptime while the daemon runs.
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetUptime(startTime)
			}
		}
	}()

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

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Daemon stopped gracefully")
}
