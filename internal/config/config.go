// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then WAVEMIX_-prefixed environment variables.
// Precedence is ENV > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/echo-music/wavemix/internal/playlist"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/wavemix/config.yaml",
	"/etc/wavemix/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "WAVEMIX_CONFIG_PATH"

// envPrefix namespaces every wavemix environment variable.
const envPrefix = "WAVEMIX_"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Database  DatabaseConfig  `koanf:"database" validate:"required"`
	Cache     CacheConfig     `koanf:"cache" validate:"required"`
	Playlist  playlist.Config `koanf:"playlist"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// RateLimit is requests per client IP per RateLimitWindow; zero
	// disables rate limiting.
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig tunes the embedded DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`

	// Threads caps DuckDB worker threads; zero means NumCPU.
	Threads      int `koanf:"threads" validate:"min=0"`
	MaxOpenConns int `koanf:"max_open_conns" validate:"min=1"`
}

// CacheConfig selects and tunes the playlist bundle cache backend.
type CacheConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// Path is the BadgerDB directory; ignored by the memory backend.
	Path       string        `koanf:"path"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// SchedulerConfig tunes the background mix refresh.
type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// RunOnStartup runs a refresh batch as soon as the service starts
	// instead of waiting out the first interval.
	RunOnStartup bool `koanf:"run_on_startup"`

	// Workers is the fixed refresh worker pool size.
	Workers int `koanf:"workers" validate:"min=1"`

	// RatePerSecond paces refresh starts across the batch; zero disables
	// pacing.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"min=0"`

	// ActiveWindow bounds which users are refreshed: anyone who played
	// something within the window.
	ActiveWindow time.Duration `koanf:"active_window"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:         "/data/wavemix.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			MaxOpenConns: 4,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Path:       "/data/wavemix-cache",
			DefaultTTL: 24 * time.Hour,
		},
		Playlist: playlist.DefaultConfig(),
		Scheduler: SchedulerConfig{
			Enabled:       true,
			Interval:      24 * time.Hour,
			RunOnStartup:  true,
			Workers:       4,
			RatePerSecond: 2,
			ActiveWindow:  30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	// Env vars arrive as strings; split known slice fields on commas.
	if v := k.Get("server.cors_origins"); v != nil {
		if s, ok := v.(string); ok {
			parts := strings.Split(s, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			if err := k.Set("server.cors_origins", parts); err != nil {
				return nil, fmt.Errorf("normalizing cors origins: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// configSections enumerates the top-level keys the env transform can
// target. Anything else is ignored so unrelated variables cannot leak in.
var configSections = []string{"server", "database", "cache", "playlist", "scheduler", "logging"}

// envTransform maps WAVEMIX_SECTION_SOME_KEY to section.some_key.
// The nested temporal balance block gets its own rule:
// WAVEMIX_PLAYLIST_TEMPORAL_BALANCE_LAST_WEEK -> playlist.temporal_balance.last_week.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	const tbPrefix = "playlist_temporal_balance_"
	if strings.HasPrefix(key, tbPrefix) {
		return "playlist.temporal_balance." + strings.TrimPrefix(key, tbPrefix)
	}

	for _, section := range configSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return ""
}

// Validate checks field constraints and the cross-field invariants the
// pipeline depends on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if err := c.Playlist.Validate(); err != nil {
		return fmt.Errorf("playlist: %w", err)
	}
	if c.Cache.Backend == "badger" && c.Cache.Path == "" {
		return fmt.Errorf("cache: badger backend requires a path")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive when enabled")
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return c.Server.Addr()
}

// Addr returns the listen address in host:port form.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
