// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package cache provides the TTL key-value stores backing the playlist
// cache: an in-memory store, a BadgerDB-persistent store, and a
// circuit-breaker wrapper that degrades store failures to cache misses.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store for serialized cache entries.
//
// Usage:
//
//	var store Store = NewMemory(24 * time.Hour)
//	// or persistent across restarts:
//	store, err := NewBadger(cfg.Path, 24 * time.Hour)
//	// and fail-open against store outages:
//	store = NewBreaker(store, logger)
type Store interface {
	// Get retrieves a value. The second return is false on a miss;
	// an expired entry is a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A non-positive TTL uses the
	// store's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// Stats tracks store performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Backend names a store implementation in configuration.
type Backend string

const (
	// BackendMemory is the in-process TTL map store.
	BackendMemory Backend = "memory"
	// BackendBadger is the BadgerDB-persistent store.
	BackendBadger Backend = "badger"
)
