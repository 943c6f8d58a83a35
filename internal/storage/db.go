// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package storage implements the engine's repository contracts on DuckDB.
// The engine packages declare the interfaces they consume; this package
// satisfies all of them from one embedded analytical database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/echo-music/wavemix/internal/config"
	"github.com/echo-music/wavemix/internal/metrics"
)

// DB wraps the DuckDB connection and provides the data access methods.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open creates the database connection and bootstraps the schema.
// An empty path opens an in-memory database, which tests rely on.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	dsn := ""
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		dsn = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, threads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{
		conn:   conn,
		logger: logger.With().Str("component", "storage").Logger(),
	}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	db.logger.Info().Str("path", cfg.Path).Int("threads", threads).Msg("database ready")
	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// createTables bootstraps the full schema. All columns are declared up
// front; there is no migration machinery yet.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist_id TEXT NOT NULL,
			artist_name TEXT NOT NULL,
			album_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS track_genres (
			track_id TEXT NOT NULL,
			genre TEXT NOT NULL,
			PRIMARY KEY (track_id, genre)
		)`,
		`CREATE TABLE IF NOT EXISTS play_stats (
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			item_type TEXT NOT NULL,
			play_count INTEGER NOT NULL DEFAULT 0,
			weighted_play_count DOUBLE NOT NULL DEFAULT 0,
			avg_completion_rate DOUBLE NOT NULL DEFAULT 0,
			last_played_at TIMESTAMP,
			PRIMARY KEY (user_id, item_id, item_type)
		)`,
		`CREATE TABLE IF NOT EXISTS play_history (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			played_at TIMESTAMP NOT NULL,
			completion_rate DOUBLE NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			item_type TEXT NOT NULL,
			rating INTEGER,
			updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			PRIMARY KEY (user_id, item_id, item_type)
		)`,
		`CREATE TABLE IF NOT EXISTS track_dj_data (
			track_id TEXT PRIMARY KEY,
			bpm DOUBLE,
			key_signature TEXT,
			camelot_key TEXT,
			energy DOUBLE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_user_time
			ON play_history (user_id, played_at)`,
		`CREATE INDEX IF NOT EXISTS idx_play_stats_user_type
			ON play_stats (user_id, item_type)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_artist
			ON tracks (artist_id)`,
	}
	for _, q := range queries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(q), err)
		}
	}
	return nil
}

// firstLine trims a multi-line DDL statement for error messages.
func firstLine(q string) string {
	if i := strings.IndexByte(q, '\n'); i > 0 {
		return strings.TrimSpace(q[:i]) + " ..."
	}
	return q
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// stringArgs widens a string slice for variadic query parameters.
func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// observe records a query metric for a named operation.
func observe(operation string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, time.Since(start), err)
}
