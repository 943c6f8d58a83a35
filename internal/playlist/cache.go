// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/echo-music/wavemix/internal/cache"
	"github.com/echo-music/wavemix/internal/metrics"
	"github.com/echo-music/wavemix/internal/scoring"
)

const (
	// bundleKeyPrefix versions the serialized bundle format. Bump the
	// version when Bundle or Playlist changes incompatibly; stale entries
	// then age out as misses instead of failing to decode.
	bundleKeyPrefix = "playlists:v1:"

	// bundleArtists and bundleGenres bound how many focused mixes a bundle
	// carries alongside the wave mix.
	bundleArtists = 3
	bundleGenres  = 3

	// bundleSeedTracks is how many of the user's top tracks seed the
	// genre selection for the bundle.
	bundleSeedTracks = 50

	// BundleTTL is the cache lifetime of a playlist bundle. It matches the
	// shortest constituent playlist TTL so a cached bundle never outlives
	// its wave mix.
	BundleTTL = WaveMixTTL
)

// Bundle is the cached unit: every generated playlist for one user.
type Bundle struct {
	UserID      string      `json:"user_id"`
	Playlists   []*Playlist `json:"playlists"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// isEmpty reports whether no playlist in the bundle carries tracks.
func (b *Bundle) isEmpty() bool {
	for _, p := range b.Playlists {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// Cache is the cache-aside layer over full-bundle generation. Reads hit
// the store first; misses compute the bundle with concurrent fan-out and
// write it back only when it is non-empty, so a new user with no history
// is recomputed on every request until plays accumulate.
type Cache struct {
	gen    *Generator
	store  cache.Store
	stats  PlayStatsRepo
	logger zerolog.Logger
	now    func() time.Time
}

// NewCache builds the cache-aside layer. The store is typically a Breaker
// so backend failures degrade to misses instead of aborting generation.
func NewCache(gen *Generator, store cache.Store, stats PlayStatsRepo, logger zerolog.Logger) *Cache {
	return &Cache{
		gen:    gen,
		store:  store,
		stats:  stats,
		logger: logger.With().Str("component", "playlist_cache").Logger(),
		now:    time.Now,
	}
}

func bundleKey(userID string) string {
	return bundleKeyPrefix + userID
}

// All returns every playlist for a user, serving from the cache when
// possible. forceRefresh bypasses the cached bundle and recomputes.
func (c *Cache) All(ctx context.Context, userID string, forceRefresh bool) ([]*Playlist, error) {
	key := bundleKey(userID)

	if !forceRefresh {
		if data, ok, err := c.store.Get(ctx, key); err == nil && ok {
			var bundle Bundle
			if err := json.Unmarshal(data, &bundle); err == nil {
				metrics.PlaylistCacheHits.Inc()
				c.logger.Debug().Str("user_id", userID).Msg("playlist bundle cache hit")
				return bundle.Playlists, nil
			}
			// Undecodable entry, likely written by an older build. Drop it
			// and fall through to a recompute.
			c.logger.Warn().Str("user_id", userID).Msg("dropping undecodable playlist bundle")
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to drop playlist bundle")
			}
		}
		metrics.PlaylistCacheMisses.Inc()
	}

	bundle, err := c.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !bundle.isEmpty() {
		if data, err := json.Marshal(bundle); err != nil {
			c.logger.Error().Err(err).Str("user_id", userID).Msg("failed to encode playlist bundle")
		} else if err := c.store.Set(ctx, key, data, BundleTTL); err != nil {
			c.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to cache playlist bundle")
		}
	} else {
		c.logger.Debug().Str("user_id", userID).Msg("empty bundle not cached")
	}

	return bundle.Playlists, nil
}

// Refresh recomputes and re-caches a user's bundle. Used by the
// background scheduler.
func (c *Cache) Refresh(ctx context.Context, userID string) error {
	_, err := c.All(ctx, userID, true)
	return err
}

// Invalidate drops a user's cached bundle. Callers invoke this after
// writing interaction data that should be reflected immediately; nothing
// triggers it automatically.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.store.Delete(ctx, bundleKey(userID)); err != nil {
		return fmt.Errorf("invalidating bundle for user %s: %w", userID, err)
	}
	metrics.PlaylistCacheInvalidations.Inc()
	c.logger.Info().Str("user_id", userID).Msg("playlist bundle invalidated")
	return nil
}

// compute generates the full bundle. The wave mix and each focused mix are
// independent sub-pipelines: they share no mutable state, so they fan out
// on an errgroup and join by writing to fixed slots.
func (c *Cache) compute(ctx context.Context, userID string) (*Bundle, error) {
	artistIDs, genres, err := c.bundleSeeds(ctx, userID)
	if err != nil {
		return nil, err
	}

	playlists := make([]*Playlist, 1+len(artistIDs)+len(genres))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := c.gen.WaveMix(gctx, userID, nil)
		if err != nil {
			return fmt.Errorf("wave mix: %w", err)
		}
		playlists[0] = p
		return nil
	})
	for i, artistID := range artistIDs {
		slot, id := 1+i, artistID
		g.Go(func() error {
			p, err := c.gen.ArtistMix(gctx, userID, id)
			if err != nil {
				return fmt.Errorf("artist mix %s: %w", id, err)
			}
			playlists[slot] = p
			return nil
		})
	}
	for i, genre := range genres {
		slot, name := 1+len(artistIDs)+i, genre
		g.Go(func() error {
			p, err := c.gen.GenreMix(gctx, userID, name)
			if err != nil {
				return fmt.Errorf("genre mix %s: %w", name, err)
			}
			playlists[slot] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Bundle{
		UserID:      userID,
		Playlists:   playlists,
		GeneratedAt: c.now(),
	}, nil
}

// bundleSeeds picks which artists and genres get a focused mix: the
// user's most-played artists, plus the most frequent genres among their
// top tracks.
func (c *Cache) bundleSeeds(ctx context.Context, userID string) (artistIDs, genres []string, err error) {
	topArtists, err := c.stats.TopItems(ctx, userID, scoring.ItemTypeArtist, bundleArtists)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching top artists: %w", err)
	}
	for _, item := range topArtists {
		artistIDs = append(artistIDs, item.ItemID)
	}

	topTracks, err := c.stats.TopItems(ctx, userID, scoring.ItemTypeTrack, bundleSeedTracks)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching top tracks: %w", err)
	}
	if len(topTracks) == 0 {
		return artistIDs, nil, nil
	}
	ids := make([]string, len(topTracks))
	for i, item := range topTracks {
		ids[i] = item.ItemID
	}
	infos, err := c.gen.lookupInfo(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving top tracks: %w", err)
	}

	counts := make(map[string]int)
	for _, info := range infos {
		for _, genre := range info.Genres {
			counts[genre]++
		}
	}
	genres = make([]string, 0, len(counts))
	for genre := range counts {
		genres = append(genres, genre)
	}
	sort.Slice(genres, func(i, j int) bool {
		if counts[genres[i]] != counts[genres[j]] {
			return counts[genres[i]] > counts[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > bundleGenres {
		genres = genres[:bundleGenres]
	}
	return artistIDs, genres, nil
}
