// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"fmt"
	"testing"
	"time"

	"github.com/echo-music/wavemix/internal/scoring"
)

func TestBucketFor(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		zero bool
		want Bucket
	}{
		{name: "yesterday", age: 24 * time.Hour, want: BucketLastWeek},
		{name: "exactly seven days", age: 7 * 24 * time.Hour, want: BucketLastWeek},
		{name: "eight days", age: 8 * 24 * time.Hour, want: BucketLastMonth},
		{name: "exactly thirty days", age: 30 * 24 * time.Hour, want: BucketLastMonth},
		{name: "ninety days", age: 90 * 24 * time.Hour, want: BucketLastYear},
		{name: "exactly one year", age: 365 * 24 * time.Hour, want: BucketLastYear},
		{name: "two years", age: 2 * 365 * 24 * time.Hour, want: BucketOlder},
		{name: "never played", zero: true, want: BucketOlder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lastPlayed time.Time
			if !tt.zero {
				lastPlayed = now.Add(-tt.age)
			}
			if got := bucketFor(lastPlayed, now); got != tt.want {
				t.Errorf("bucketFor = %s, want %s", got, tt.want)
			}
		})
	}
}

// balancedFixture builds perBucket tracks in each recency bucket, scores
// descending across the whole set so input order is globally sorted.
func balancedFixture(now time.Time, perBucket int) ([]scoring.TrackScore, map[string]scoring.PlayStat) {
	ages := map[Bucket]time.Duration{
		BucketLastWeek:  2 * 24 * time.Hour,
		BucketLastMonth: 20 * 24 * time.Hour,
		BucketLastYear:  200 * 24 * time.Hour,
		BucketOlder:     500 * 24 * time.Hour,
	}

	var tracks []scoring.TrackScore
	stats := make(map[string]scoring.PlayStat)
	score := 100.0
	for _, b := range bucketOrder {
		for i := 0; i < perBucket; i++ {
			id := fmt.Sprintf("%s-%d", b, i)
			tracks = append(tracks, scoring.TrackScore{TrackID: id, Total: score})
			stats[id] = scoring.PlayStat{ItemID: id, LastPlayedAt: now.Add(-ages[b])}
			score--
		}
	}
	return tracks, stats
}

func TestBalanceTemporalQuotas(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tracks, stats := balancedFixture(now, 10)
	balance := TemporalBalance{LastWeek: 0.4, LastMonth: 0.3, LastYear: 0.2, Older: 0.1}

	got := BalanceTemporal(tracks, stats, balance, 10, now)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}

	counts := make(map[Bucket]int)
	for _, tr := range got {
		counts[bucketFor(stats[tr.TrackID].LastPlayedAt, now)]++
	}
	want := map[Bucket]int{BucketLastWeek: 4, BucketLastMonth: 3, BucketLastYear: 2, BucketOlder: 1}
	for b, n := range want {
		if counts[b] != n {
			t.Errorf("bucket %s contributed %d tracks, want %d", b, counts[b], n)
		}
	}
}

func TestBalanceTemporalBackfill(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// Only recent tracks exist; the month/year/older quotas cannot be met
	// and must be backfilled from the remaining recent pool.
	var tracks []scoring.TrackScore
	stats := make(map[string]scoring.PlayStat)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("recent-%d", i)
		tracks = append(tracks, scoring.TrackScore{TrackID: id, Total: float64(100 - i)})
		stats[id] = scoring.PlayStat{ItemID: id, LastPlayedAt: now.Add(-24 * time.Hour)}
	}
	balance := TemporalBalance{LastWeek: 0.4, LastMonth: 0.3, LastYear: 0.2, Older: 0.1}

	got := BalanceTemporal(tracks, stats, balance, 10, now)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10 after backfill", len(got))
	}

	seen := make(map[string]bool)
	for _, tr := range got {
		if seen[tr.TrackID] {
			t.Fatalf("track %s selected twice", tr.TrackID)
		}
		seen[tr.TrackID] = true
	}
}

func TestBalanceTemporalNeverExceedsMax(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tracks, stats := balancedFixture(now, 25)

	// Rounded quotas can sum past maxTracks; the cap must hold regardless.
	balance := TemporalBalance{LastWeek: 0.35, LastMonth: 0.35, LastYear: 0.2, Older: 0.1}
	got := BalanceTemporal(tracks, stats, balance, 7, now)
	if len(got) > 7 {
		t.Fatalf("len = %d, want at most 7", len(got))
	}
}

func TestBalanceTemporalMissingStats(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// A track without a play stat row lands in the older bucket.
	tracks := []scoring.TrackScore{
		{TrackID: "known", Total: 90},
		{TrackID: "unknown", Total: 80},
	}
	stats := map[string]scoring.PlayStat{
		"known": {ItemID: "known", LastPlayedAt: now.Add(-24 * time.Hour)},
	}
	balance := TemporalBalance{LastWeek: 0.5, Older: 0.5}

	got := BalanceTemporal(tracks, stats, balance, 2, now)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestBalanceTemporalEmptyInput(t *testing.T) {
	got := BalanceTemporal(nil, nil, TemporalBalance{}, 10, time.Now())
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty slice", got)
	}
}
