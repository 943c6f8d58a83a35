// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"math"
	"time"

	"github.com/echo-music/wavemix/internal/scoring"
)

// bucketFor classifies a last-played timestamp into a recency bucket.
// Tracks never timestamped land in the older bucket.
func bucketFor(lastPlayedAt, now time.Time) Bucket {
	if lastPlayedAt.IsZero() {
		return BucketOlder
	}
	age := now.Sub(lastPlayedAt)
	switch {
	case age <= 7*24*time.Hour:
		return BucketLastWeek
	case age <= 30*24*time.Hour:
		return BucketLastMonth
	case age <= 365*24*time.Hour:
		return BucketLastYear
	default:
		return BucketOlder
	}
}

// bucketOrder fixes the iteration order over recency buckets.
var bucketOrder = []Bucket{BucketLastWeek, BucketLastMonth, BucketLastYear, BucketOlder}

// BalanceTemporal redistributes qualified tracks across recency buckets
// according to the configured ratios. Only the wave mix uses this stage;
// artist and genre mixes keep pure score order into the shuffle.
//
// Each bucket contributes up to round(maxTracks * ratio) tracks in its own
// score-descending order (tracks is assumed score-descending, so bucket
// order follows). If the quota pass comes up short, remaining slots are
// backfilled from the leftover pool in global score order. The result is a
// selection, not a playback order; the sequence composer runs after this.
func BalanceTemporal(tracks []scoring.TrackScore, stats map[string]scoring.PlayStat, balance TemporalBalance, maxTracks int, now time.Time) []scoring.TrackScore {
	if len(tracks) == 0 || maxTracks <= 0 {
		return []scoring.TrackScore{}
	}

	buckets := make(map[Bucket][]scoring.TrackScore, len(bucketOrder))
	for _, t := range tracks {
		var lastPlayed time.Time
		if stat, ok := stats[t.TrackID]; ok {
			lastPlayed = stat.LastPlayedAt
		}
		b := bucketFor(lastPlayed, now)
		buckets[b] = append(buckets[b], t)
	}

	selected := make([]scoring.TrackScore, 0, maxTracks)
	taken := make(map[string]struct{}, maxTracks)

	// Quota pass: each bucket contributes up to its target count.
	for _, b := range bucketOrder {
		target := int(math.Round(float64(maxTracks) * balance.Ratio(b)))
		pool := buckets[b]
		for i := 0; i < len(pool) && i < target && len(selected) < maxTracks; i++ {
			selected = append(selected, pool[i])
			taken[pool[i].TrackID] = struct{}{}
		}
	}

	// Backfill pass: top up from the global remainder in score order.
	for _, t := range tracks {
		if len(selected) >= maxTracks {
			break
		}
		if _, ok := taken[t.TrackID]; ok {
			continue
		}
		selected = append(selected, t)
		taken[t.TrackID] = struct{}{}
	}

	return selected
}
