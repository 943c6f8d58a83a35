// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package main is the entry point for the Wavemix server.
//
// Wavemix generates personalized playlists ("Wave Mix", artist mixes,
// genre mixes) for Echo music server users from their listening history.
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional config file (Koanf v2)
//  2. Database: DuckDB holding tracks, play history, and aggregates
//  3. Scoring engine: multi-factor track affinity scoring
//  4. Playlist generator: candidate selection, temporal balancing, sequencing
//  5. Cache: in-memory or BadgerDB bundle cache behind a circuit breaker
//  6. Scheduler: periodic background refresh of active users' bundles
//  7. HTTP server: REST API plus /health and /metrics
//
// The scheduler and HTTP server run under a suture supervision tree and
// shut down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/echo-music/wavemix/internal/api"
	"github.com/echo-music/wavemix/internal/cache"
	"github.com/echo-music/wavemix/internal/config"
	"github.com/echo-music/wavemix/internal/harmonic"
	"github.com/echo-music/wavemix/internal/logging"
	"github.com/echo-music/wavemix/internal/playlist"
	"github.com/echo-music/wavemix/internal/scheduler"
	"github.com/echo-music/wavemix/internal/scoring"
	"github.com/echo-music/wavemix/internal/storage"
	"github.com/echo-music/wavemix/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Starting Wavemix")

	db, err := storage.Open(&cfg.Database, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := newCacheStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize cache backend")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache backend")
		}
	}()

	engine := scoring.NewEngine(db, db, logger)
	generator := playlist.NewGenerator(engine, db, db, logger,
		playlist.WithDefaults(cfg.Playlist),
		playlist.WithDjAnalysis(db, harmonic.NewCamelotScorer()),
	)
	bundles := playlist.NewCache(generator, cache.NewBreaker(store, logger), db, logger)

	handler := api.NewHandler(bundles, generator, db, logger)
	router := api.NewRouter(handler, cfg.Server, logger)

	tree := supervisor.NewTree(supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(api.NewServer(router, cfg.Server, logger))
	if cfg.Scheduler.Enabled {
		tree.AddEngineService(scheduler.New(db, bundles, cfg.Scheduler, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Addr()).Msg("Wavemix running")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Wavemix stopped")
}

// newCacheStore builds the configured bundle cache backend.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "badger":
		return cache.NewBadger(cfg.Cache.Path, cfg.Cache.DefaultTTL)
	default:
		return cache.NewMemory(cfg.Cache.DefaultTTL), nil
	}
}
