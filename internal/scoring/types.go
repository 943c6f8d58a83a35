// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package scoring

import (
	"time"
)

// ItemType identifies what a play-stat or interaction row refers to.
type ItemType string

const (
	// ItemTypeTrack marks rows aggregated per track.
	ItemTypeTrack ItemType = "track"
	// ItemTypeArtist marks rows aggregated per artist.
	ItemTypeArtist ItemType = "artist"
)

// PlayStat aggregates a user's play behavior for one item. The weighted
// play count is already discounted for skips and short plays by the
// upstream scrobble pipeline.
type PlayStat struct {
	ItemID            string    `json:"item_id"`
	ItemType          ItemType  `json:"item_type"`
	PlayCount         int       `json:"play_count"`
	WeightedPlayCount float64   `json:"weighted_play_count"`
	AvgCompletionRate float64   `json:"avg_completion_rate"` // 0-1
	LastPlayedAt      time.Time `json:"last_played_at"`
}

// InteractionSummary carries a user's explicit feedback for one item.
// Rating is 0-5 stars; nil means the user never rated the item.
type InteractionSummary struct {
	ItemID string `json:"item_id"`
	Rating *int   `json:"rating,omitempty"`
}

// Breakdown holds the four sub-scores that make up a track's total.
// ExplicitFeedback is bounded to [-100, 100]; the others to [0, 100].
// Breakdowns are recomputed on every ranking pass and never persisted.
type Breakdown struct {
	ExplicitFeedback float64 `json:"explicit_feedback"`
	ImplicitBehavior float64 `json:"implicit_behavior"`
	Recency          float64 `json:"recency"`
	Diversity        float64 `json:"diversity"`
}

// TrackScore is a track's scored position within one ranking pass.
// Rank is 1-based and only meaningful inside the batch it was assigned in.
type TrackScore struct {
	TrackID   string    `json:"track_id"`
	Total     float64   `json:"total"` // [-100, 100]
	Breakdown Breakdown `json:"breakdown"`
	Rank      int       `json:"rank"`
}

// Fixed weights for the four scoring signals. They sum to exactly 1.0,
// which keeps the weighted total inside the [-100, 100] range of its
// inputs before clamping.
const (
	WeightExplicitFeedback = 0.30
	WeightImplicitBehavior = 0.50
	WeightRecency          = 0.18
	WeightDiversity        = 0.02
)

// recencyDecayRate controls the exponential decay of the recency score:
// e^(-rate * daysSinceLastPlay). At 0.03, a track played 30 days ago
// retains about 41% of the maximum recency score.
const recencyDecayRate = 0.03

// ParseTimestamp normalizes a last-played value coming out of a storage
// layer. Different backends hand back time.Time, *time.Time, or an ISO
// textual form; anything unparseable is treated as absent.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
