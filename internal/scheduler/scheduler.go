// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package scheduler regenerates playlist bundles for active users in
// background batches. Concurrency is bounded by a fixed worker pool,
// dispatch is paced with a rate limiter, and one user's failure never
// aborts the batch.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/echo-music/wavemix/internal/config"
	"github.com/echo-music/wavemix/internal/metrics"
)

// UserSource lists the users whose mixes are worth regenerating.
type UserSource interface {
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// Refresher recomputes and re-caches one user's playlist bundle.
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// BatchResult summarizes one refresh batch.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Scheduler runs refresh batches on a fixed interval under suture
// supervision.
type Scheduler struct {
	users     UserSource
	refresher Refresher
	cfg       config.SchedulerConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a refresh scheduler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(users UserSource, refresher Refresher, cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Scheduler{
		users:     users,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger.With().Str("service", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Serve implements the suture.Service interface. It runs one batch per
// interval until the context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.cfg.RunOnStartup).
		Dur("interval", s.cfg.Interval).
		Int("workers", s.cfg.Workers).
		Float64("rate_per_second", s.cfg.RatePerSecond).
		Msg("refresh scheduler running")

	// Run a batch immediately if configured, so a restarted service
	// doesn't wait out the first interval with stale bundles.
	if s.cfg.RunOnStartup {
		s.runAndLog(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

// runAndLog runs one batch and logs its outcome; batch start failures
// are logged and left for the next tick.
func (s *Scheduler) runAndLog(ctx context.Context) {
	result, err := s.RunBatch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh batch failed to start")
		return
	}
	s.logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", result.Elapsed).
		Msg("refresh batch complete")
}

// RunBatch refreshes every active user once. The returned error covers
// only the active-user listing; per-user refresh failures are counted in
// the result and logged, never propagated.
func (s *Scheduler) RunBatch(ctx context.Context) (BatchResult, error) {
	start := s.now()
	metrics.RefreshBatchTotal.Inc()

	userIDs, err := s.users.ActiveUsers(ctx, start.Add(-s.cfg.ActiveWindow))
	if err != nil {
		return BatchResult{}, err
	}
	if len(userIDs) == 0 {
		return BatchResult{Elapsed: s.now().Sub(start)}, nil
	}

	var limiter *rate.Limiter
	if s.cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), 1)
	}

	var succeeded, failed atomic.Int64
	work := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range work {
				s.refreshOne(ctx, userID, &succeeded, &failed)
			}
		}()
	}

dispatch:
	for _, userID := range userIDs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break dispatch
			}
		}
		select {
		case work <- userID:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)
	wg.Wait()

	result := BatchResult{
		Total:     len(userIDs),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Elapsed:   s.now().Sub(start),
	}
	metrics.RefreshBatchDuration.Observe(result.Elapsed.Seconds())
	return result, nil
}

// refreshOne refreshes a single user, isolating any failure.
func (s *Scheduler) refreshOne(ctx context.Context, userID string, succeeded, failed *atomic.Int64) {
	if err := s.refresher.Refresh(ctx, userID); err != nil {
		failed.Add(1)
		metrics.RefreshUsersTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("refresh failed")
		return
	}
	succeeded.Add(1)
	metrics.RefreshUsersTotal.WithLabelValues("ok").Inc()
}
