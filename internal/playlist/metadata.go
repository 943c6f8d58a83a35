// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"math"
	"sort"
	"time"

	"github.com/echo-music/wavemix/internal/scoring"
)

// maxTopEntries caps the top-artist and top-genre lists.
const maxTopEntries = 5

// BuildMetadata aggregates summary statistics for an assembled playlist.
//
// The temporal distribution counts the user's raw play-history events for
// the selected tracks into the same four day-windows the balancer uses.
// It describes past listening; it is deliberately not the balancer's
// selection quota.
func BuildMetadata(tracks []scoring.TrackScore, info map[string]TrackInfo, history []PlayEvent, now time.Time) Metadata {
	md := Metadata{
		TotalTracks:          len(tracks),
		TemporalDistribution: map[Bucket]int{},
	}
	if len(tracks) == 0 {
		return md
	}

	var sum float64
	artistCounts := make(map[string]int)
	genreCounts := make(map[string]int)
	for _, t := range tracks {
		sum += t.Total
		meta := info[t.TrackID]
		if meta.ArtistID != "" {
			artistCounts[meta.ArtistID]++
		}
		for _, g := range meta.Genres {
			genreCounts[g]++
		}
	}

	md.AvgScore = math.Round(sum/float64(len(tracks))*10) / 10
	md.TopArtists = topByCount(artistCounts, maxTopEntries)
	md.TopGenres = topByCount(genreCounts, maxTopEntries)

	selected := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		selected[t.TrackID] = struct{}{}
	}
	for _, ev := range history {
		if _, ok := selected[ev.TrackID]; !ok {
			continue
		}
		md.TemporalDistribution[bucketFor(ev.PlayedAt, now)]++
	}

	return md
}

// topByCount returns up to limit keys ordered by descending count, with a
// stable alphabetical tie-break so output does not flap between calls.
func topByCount(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
