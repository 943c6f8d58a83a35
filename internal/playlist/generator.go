// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/echo-music/wavemix/internal/harmonic"
	"github.com/echo-music/wavemix/internal/metrics"
	"github.com/echo-music/wavemix/internal/scoring"
)

// PlayStatsRepo provides a user's aggregated play behavior and raw history.
type PlayStatsRepo interface {
	// TopItems returns the user's most-played items of a type, best first.
	TopItems(ctx context.Context, userID string, itemType scoring.ItemType, limit int) ([]TopItem, error)

	// UserPlayStats returns all play stats of a type for a user.
	UserPlayStats(ctx context.Context, userID string, itemType scoring.ItemType) ([]scoring.PlayStat, error)

	// UserPlayHistory returns the user's most recent play events.
	UserPlayHistory(ctx context.Context, userID string, limit int) ([]PlayEvent, error)
}

// TrackCatalog resolves track identities. Implemented by the library
// metadata store.
type TrackCatalog interface {
	// Lookup resolves identities for the given track IDs. Unknown IDs are
	// silently absent from the result.
	Lookup(ctx context.Context, trackIDs []string) ([]TrackInfo, error)

	// TracksByArtist returns every known track of an artist.
	TracksByArtist(ctx context.Context, artistID string) ([]TrackInfo, error)

	// TracksByGenre returns every known track tagged with a genre.
	TracksByGenre(ctx context.Context, genre string) ([]TrackInfo, error)
}

// DjAnalysisRepo provides DJ analysis rows for tracks that have them.
// This collaborator is optional; a Generator built without one never
// attempts harmonic sequencing.
type DjAnalysisRepo interface {
	ByTrackIDs(ctx context.Context, trackIDs []string) ([]harmonic.TrackDjData, error)
}

// playHistoryLimit bounds the raw history fetch behind the metadata
// histogram.
const playHistoryLimit = 2000

// Generator assembles the three playlist variants. It is stateless apart
// from its collaborators and safe for concurrent use.
type Generator struct {
	scorer    *scoring.Engine
	playStats PlayStatsRepo
	catalog   TrackCatalog
	composer  *Composer
	dj        DjAnalysisRepo // nil when harmonic analysis is not configured
	defaults  Config
	logger    zerolog.Logger
	now       func() time.Time
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithDjAnalysis enables harmonic sequencing backed by the given analysis
// repository and compatibility scorer. The capability is resolved here,
// once, rather than nil-checked inside the algorithms.
func WithDjAnalysis(repo DjAnalysisRepo, scorer CompatibilityScorer) GeneratorOption {
	return func(g *Generator) {
		g.dj = repo
		g.composer.scorer = scorer
	}
}

// WithRand injects a deterministic random source. Tests use this; the
// default is a time-seeded system source.
func WithRand(rng Rand) GeneratorOption {
	return func(g *Generator) {
		g.composer.rng = rng
	}
}

// WithDefaults overrides the built-in wave mix tuning.
func WithDefaults(cfg Config) GeneratorOption {
	return func(g *Generator) {
		g.defaults = cfg
	}
}

// WithClock pins the generator's notion of "now" for tests.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a playlist generator.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGenerator(scorer *scoring.Engine, playStats PlayStatsRepo, catalog TrackCatalog, logger zerolog.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		scorer:    scorer,
		playStats: playStats,
		catalog:   catalog,
		composer:  NewComposer(NewSystemRand(), nil),
		defaults:  DefaultConfig(),
		logger:    logger.With().Str("component", "playlist").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WaveMix generates the library-wide mix for a user. A nil override uses
// the configured defaults; non-zero override fields win.
func (g *Generator) WaveMix(ctx context.Context, userID string, override *Config) (*Playlist, error) {
	start := g.now()
	cfg := g.defaults.Merge(override)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("wave mix config: %w", err)
	}

	top, err := g.playStats.TopItems(ctx, userID, scoring.ItemTypeTrack, waveMixCandidatePool)
	if err != nil {
		return nil, fmt.Errorf("load top tracks: %w", err)
	}
	if len(top) == 0 {
		metrics.GenerationTotal.WithLabelValues(string(TypeWaveMix), "empty").Inc()
		return g.emptyPlaylist(userID, TypeWaveMix, "Wave Mix",
			"Your Wave Mix will appear here once you start listening."), nil
	}

	ids := make([]string, len(top))
	for i, item := range top {
		ids[i] = item.ItemID
	}

	infoByID, err := g.lookupInfo(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked, err := g.scorer.RankTracks(ctx, userID, ids, artistMap(infoByID))
	if err != nil {
		return nil, fmt.Errorf("rank tracks: %w", err)
	}

	selected := QualifyCandidates(ranked, cfg.MinScore, cfg.MaxTracks)
	if len(selected) == 0 {
		metrics.GenerationTotal.WithLabelValues(string(TypeWaveMix), "empty").Inc()
		return g.emptyPlaylist(userID, TypeWaveMix, "Wave Mix",
			"Your Wave Mix will appear here once you start listening."), nil
	}

	stats, err := g.playStats.UserPlayStats(ctx, userID, scoring.ItemTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("load play stats: %w", err)
	}
	statsByID := make(map[string]scoring.PlayStat, len(stats))
	for _, s := range stats {
		statsByID[s.ItemID] = s
	}

	balanced := BalanceTemporal(selected, statsByID, cfg.TemporalBalance, cfg.MaxTracks, g.now())
	sequenced := g.sequence(ctx, balanced, infoByID)

	playlist, err := g.assemble(ctx, userID, TypeWaveMix, "Wave Mix",
		"Fresh picks from across your library, tuned to how you listen.",
		sequenced, infoByID, WaveMixTTL)
	if err != nil {
		return nil, err
	}

	metrics.GenerationTotal.WithLabelValues(string(TypeWaveMix), "ok").Inc()
	metrics.GenerationDuration.WithLabelValues(string(TypeWaveMix)).Observe(g.now().Sub(start).Seconds())

	g.logger.Debug().
		Str("user_id", userID).
		Int("candidates", len(ranked)).
		Int("tracks", len(playlist.Tracks)).
		Msg("wave mix generated")

	return playlist, nil
}

// ArtistMix generates a single-artist mix: same scoring and shuffle as the
// wave mix, no temporal balancing, capped at the 30 best tracks.
func (g *Generator) ArtistMix(ctx context.Context, userID, artistID string) (*Playlist, error) {
	start := g.now()

	tracks, err := g.catalog.TracksByArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("load artist tracks: %w", err)
	}

	artistName := artistID
	if len(tracks) > 0 && tracks[0].ArtistName != "" {
		artistName = tracks[0].ArtistName
	}
	name := artistName + " Mix"

	playlist, err := g.focusedMix(ctx, userID, TypeArtist, name,
		fmt.Sprintf("The best of %s, based on your listening.", artistName),
		tracks, artistMixSize, ArtistMixTTL)
	if err != nil {
		return nil, err
	}

	playlist.Metadata.ArtistID = artistID
	playlist.Metadata.ArtistName = artistName

	outcome := "ok"
	if playlist.IsEmpty() {
		outcome = "empty"
	}
	metrics.GenerationTotal.WithLabelValues(string(TypeArtist), outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(string(TypeArtist)).Observe(g.now().Sub(start).Seconds())

	return playlist, nil
}

// GenreMix generates a single-genre mix with the same shape as ArtistMix.
func (g *Generator) GenreMix(ctx context.Context, userID, genre string) (*Playlist, error) {
	start := g.now()

	tracks, err := g.catalog.TracksByGenre(ctx, genre)
	if err != nil {
		return nil, fmt.Errorf("load genre tracks: %w", err)
	}

	playlist, err := g.focusedMix(ctx, userID, TypeGenre, genre+" Mix",
		fmt.Sprintf("%s tracks picked for you.", genre),
		tracks, genreMixSize, GenreMixTTL)
	if err != nil {
		return nil, err
	}

	outcome := "ok"
	if playlist.IsEmpty() {
		outcome = "empty"
	}
	metrics.GenerationTotal.WithLabelValues(string(TypeGenre), outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(string(TypeGenre)).Observe(g.now().Sub(start).Seconds())

	return playlist, nil
}

// focusedMix is the shared artist/genre pipeline: rank the full candidate
// set, qualify with threshold fallback, shuffle, aggregate.
func (g *Generator) focusedMix(ctx context.Context, userID string, typ Type, name, description string, tracks []TrackInfo, maxTracks int, ttl time.Duration) (*Playlist, error) {
	if len(tracks) == 0 {
		return g.emptyPlaylist(userID, typ, name,
			"Nothing to mix yet. Add more music to your library."), nil
	}

	infoByID := make(map[string]TrackInfo, len(tracks))
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		infoByID[t.ID] = t
		ids[i] = t.ID
	}

	ranked, err := g.scorer.RankTracks(ctx, userID, ids, artistMap(infoByID))
	if err != nil {
		return nil, fmt.Errorf("rank tracks: %w", err)
	}

	selected := SelectCandidates(ranked, g.defaults.MinScore, maxTracks)
	if len(selected) == 0 {
		return g.emptyPlaylist(userID, typ, name,
			"Nothing to mix yet. Add more music to your library."), nil
	}

	sequenced := g.sequence(ctx, selected, infoByID)
	return g.assemble(ctx, userID, typ, name, description, sequenced, infoByID, ttl)
}

// sequence runs the composer, fetching DJ data first when the capability
// is configured. Analysis failures degrade to the basic shuffle rather
// than failing the mix.
func (g *Generator) sequence(ctx context.Context, tracks []scoring.TrackScore, infoByID map[string]TrackInfo) []scoring.TrackScore {
	var djByID map[string]harmonic.TrackDjData
	if g.dj != nil && g.composer.HarmonicCapable() {
		ids := make([]string, len(tracks))
		for i, t := range tracks {
			ids[i] = t.TrackID
		}
		rows, err := g.dj.ByTrackIDs(ctx, ids)
		if err != nil {
			g.logger.Warn().Err(err).Msg("dj analysis unavailable, using basic shuffle")
		} else {
			djByID = make(map[string]harmonic.TrackDjData, len(rows))
			for _, row := range rows {
				djByID[row.TrackID] = row
			}
		}
	}
	return g.composer.Compose(tracks, infoByID, djByID)
}

// assemble builds the final playlist object with aggregated metadata.
func (g *Generator) assemble(ctx context.Context, userID string, typ Type, name, description string, tracks []scoring.TrackScore, infoByID map[string]TrackInfo, ttl time.Duration) (*Playlist, error) {
	history, err := g.playStats.UserPlayHistory(ctx, userID, playHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load play history: %w", err)
	}

	metrics.TracksSelected.WithLabelValues(string(typ)).Observe(float64(len(tracks)))

	now := g.now()
	return &Playlist{
		ID:          uuid.NewString(),
		Type:        typ,
		UserID:      userID,
		Name:        name,
		Description: description,
		Tracks:      tracks,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Metadata:    BuildMetadata(tracks, infoByID, history, now),
		CoverColor:  coverColorFor(userID, string(typ), name),
	}, nil
}

// emptyPlaylist is the well-formed zero-track variant returned when a user
// has no qualifying history. Callers never see nil or an error for "no
// data yet".
func (g *Generator) emptyPlaylist(userID string, typ Type, name, description string) *Playlist {
	now := g.now()
	ttl := WaveMixTTL
	if typ != TypeWaveMix {
		ttl = ArtistMixTTL
	}
	return &Playlist{
		ID:          uuid.NewString(),
		Type:        typ,
		UserID:      userID,
		Name:        name,
		Description: description,
		Tracks:      []scoring.TrackScore{},
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Metadata:    Metadata{TemporalDistribution: map[Bucket]int{}},
		CoverColor:  coverColorFor(userID, string(typ), name),
	}
}

// lookupInfo resolves track info into a map keyed by track ID.
func (g *Generator) lookupInfo(ctx context.Context, ids []string) (map[string]TrackInfo, error) {
	infos, err := g.catalog.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup tracks: %w", err)
	}
	byID := make(map[string]TrackInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}
	return byID, nil
}

// artistMap projects track info down to the track→artist mapping the
// scoring engine's diversity signal needs.
func artistMap(infoByID map[string]TrackInfo) map[string]string {
	m := make(map[string]string, len(infoByID))
	for id, info := range infoByID {
		if info.ArtistID != "" {
			m[id] = info.ArtistID
		}
	}
	return m
}
