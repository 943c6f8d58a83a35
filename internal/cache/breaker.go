// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/echo-music/wavemix/internal/metrics"
)

// Breaker wraps a Store with a circuit breaker so a failing cache backend
// degrades to misses instead of taking playlist generation down with it.
// When the circuit is open, Get reports a miss and Set/Delete are dropped;
// the caller recomputes from source, which is always correct.
type Breaker struct {
	store  Store
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger zerolog.Logger
}

// NewBreaker wraps a store with circuit-breaker protection.
// The circuit opens after a 60% failure rate over at least 10 requests and
// probes again after 30 seconds.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreaker(store Store, logger zerolog.Logger) *Breaker {
	cbName := "playlist-cache"
	metrics.CacheBreakerState.WithLabelValues(cbName).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache breaker state change")
			metrics.CacheBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Breaker{
		store:  store,
		cb:     cb,
		logger: logger.With().Str("component", "cache-breaker").Logger(),
	}
}

// recordResult feeds the per-request breaker counter.
func (b *Breaker) recordResult(err error) {
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.CacheBreakerRequests.WithLabelValues(b.cb.Name(), result).Inc()
}

// Get implements Store. Any breaker or backend error is reported as a
// miss; the error is logged, never propagated.
func (b *Breaker) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var found bool
	value, err := b.cb.Execute(func() ([]byte, error) {
		v, ok, err := b.store.Get(ctx, key)
		found = ok
		return v, err
	})
	b.recordResult(err)
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		return nil, false, nil
	}
	return value, found, nil
}

// Set implements Store. Failures are best-effort: logged and swallowed so
// a cache outage never fails a computed result.
func (b *Breaker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.store.Set(ctx, key, value, ttl)
	})
	b.recordResult(err)
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("cache set dropped")
	}
	return nil
}

// Delete implements Store. Unlike Set, delete failures propagate: callers
// invalidating stale data need to know the stale entry may still exist.
func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.store.Delete(ctx, key)
	})
	b.recordResult(err)
	return err
}

// Close closes the wrapped store.
func (b *Breaker) Close() error {
	return b.store.Close()
}

// breakerStateValue maps breaker states to gauge values.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
