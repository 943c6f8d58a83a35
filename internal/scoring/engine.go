// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// PlayStatsSource provides aggregated play behavior for a user.
// Implemented by the storage layer; declared here to keep the scoring
// package free of storage imports.
type PlayStatsSource interface {
	// UserPlayStats returns all play stats of the given item type for a
	// user in a single call.
	UserPlayStats(ctx context.Context, userID string, itemType ItemType) ([]PlayStat, error)
}

// InteractionsSource provides explicit user feedback.
type InteractionsSource interface {
	// UserInteractions returns all of a user's ratings for the given item
	// type in a single call.
	UserInteractions(ctx context.Context, userID string, itemType ItemType) ([]InteractionSummary, error)
}

// Engine computes and ranks track scores for one user at a time.
// It is stateless apart from its collaborators and safe for concurrent use.
type Engine struct {
	playStats    PlayStatsSource
	interactions InteractionsSource
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEngine creates a scoring engine backed by the given data sources.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(playStats PlayStatsSource, interactions InteractionsSource, logger zerolog.Logger) *Engine {
	return &Engine{
		playStats:    playStats,
		interactions: interactions,
		logger:       logger.With().Str("component", "scoring").Logger(),
		now:          time.Now,
	}
}

// SetClock overrides the engine's notion of "now". Tests use this to pin
// recency calculations.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// ExplicitFeedback converts a 0-5 star rating into points. A nil rating
// contributes nothing; otherwise one star is worth 20 points.
func ExplicitFeedback(rating *int) float64 {
	if rating == nil {
		return 0
	}
	return clamp(float64(*rating)*20, -100, 100)
}

// ImplicitBehavior scores play behavior in [0, 100]. The play-count
// contribution saturates at 70 points (14 weighted plays); completion rate
// contributes at most 30.
func ImplicitBehavior(weightedPlayCount, avgCompletionRate float64) float64 {
	plays := math.Min(weightedPlayCount*5, 70)
	return clamp(plays+avgCompletionRate*30, 0, 100)
}

// Recency scores how recently the track was last played, decaying
// exponentially from 100 at zero days. A zero timestamp scores 0.
func Recency(lastPlayedAt, now time.Time) float64 {
	if lastPlayedAt.IsZero() {
		return 0
	}
	days := now.Sub(lastPlayedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return clamp(100*math.Exp(-recencyDecayRate*days), 0, 100)
}

// Diversity scores in [0, 100] how little the track's artist dominates the
// user's listening. With no plays at all there is nothing to be
// over-concentrated on, so every artist scores the maximum.
func Diversity(artistPlayCount, totalPlayCount float64) float64 {
	if totalPlayCount <= 0 {
		return 100
	}
	return clamp(100*(1-artistPlayCount/totalPlayCount), 0, 100)
}

// Total combines a breakdown into the weighted total score, clamped to
// [-100, 100].
func Total(b Breakdown) float64 {
	total := b.ExplicitFeedback*WeightExplicitFeedback +
		b.ImplicitBehavior*WeightImplicitBehavior +
		b.Recency*WeightRecency +
		b.Diversity*WeightDiversity
	return clamp(total, -100, 100)
}

// RankTracks scores the given tracks for a user and returns them sorted by
// descending total score with 1-based ranks assigned. Equal scores keep
// their input order.
//
// trackArtists maps track ID to artist ID and feeds the diversity signal;
// tracks without a mapping score neutral-maximal diversity. The map may be
// nil.
//
// All behavioral data is loaded in exactly three repository calls (track
// stats, artist stats, track interactions) no matter how many tracks are
// ranked.
func (e *Engine) RankTracks(ctx context.Context, userID string, trackIDs []string, trackArtists map[string]string) ([]TrackScore, error) {
	if len(trackIDs) == 0 {
		return []TrackScore{}, nil
	}

	trackStats, err := e.playStats.UserPlayStats(ctx, userID, ItemTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("load track play stats: %w", err)
	}

	artistStats, err := e.playStats.UserPlayStats(ctx, userID, ItemTypeArtist)
	if err != nil {
		return nil, fmt.Errorf("load artist play stats: %w", err)
	}

	ratings, err := e.interactions.UserInteractions(ctx, userID, ItemTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}

	statsByTrack := make(map[string]PlayStat, len(trackStats))
	for _, s := range trackStats {
		statsByTrack[s.ItemID] = s
	}

	playsByArtist := make(map[string]float64, len(artistStats))
	var totalArtistPlays float64
	for _, s := range artistStats {
		playsByArtist[s.ItemID] = float64(s.PlayCount)
		totalArtistPlays += float64(s.PlayCount)
	}

	ratingByTrack := make(map[string]*int, len(ratings))
	for _, r := range ratings {
		ratingByTrack[r.ItemID] = r.Rating
	}

	now := e.now()
	scores := make([]TrackScore, 0, len(trackIDs))
	for _, id := range trackIDs {
		stat := statsByTrack[id]

		var artistPlays float64
		if artistID, ok := trackArtists[id]; ok {
			artistPlays = playsByArtist[artistID]
		}

		breakdown := Breakdown{
			ExplicitFeedback: ExplicitFeedback(ratingByTrack[id]),
			ImplicitBehavior: ImplicitBehavior(stat.WeightedPlayCount, stat.AvgCompletionRate),
			Recency:          Recency(stat.LastPlayedAt, now),
			Diversity:        Diversity(artistPlays, totalArtistPlays),
		}

		scores = append(scores, TrackScore{
			TrackID:   id,
			Total:     Total(breakdown),
			Breakdown: breakdown,
		})
	}

	// Stable sort: equal totals preserve candidate order.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}

	e.logger.Debug().
		Str("user_id", userID).
		Int("tracks", len(scores)).
		Msg("ranked tracks")

	return scores, nil
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
