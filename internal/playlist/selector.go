// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"github.com/echo-music/wavemix/internal/scoring"
)

// QualifyCandidates qualifies ranked tracks against a minimum score,
// backing off in steps so demand is met whenever any candidates exist:
//
//  1. keep tracks scoring at least minScore
//  2. if that falls short of demand, retry at half the threshold
//  3. if still short, drop the threshold entirely
//
// The result is never capped: demand only drives the backoff steps. The
// wave mix hands the full qualified pool to the temporal balancer, which
// enforces the track limit while applying the recency quotas.
//
// The input must already be sorted by descending score; order is preserved.
// An empty input returns an empty slice, which the generator maps to an
// explicit empty playlist rather than an error.
func QualifyCandidates(ranked []scoring.TrackScore, minScore float64, demand int) []scoring.TrackScore {
	if len(ranked) == 0 || demand <= 0 {
		return []scoring.TrackScore{}
	}

	selected := filterByScore(ranked, minScore)
	if len(selected) < demand {
		selected = filterByScore(ranked, minScore*0.5)
	}
	if len(selected) < demand {
		selected = ranked
	}

	out := make([]scoring.TrackScore, len(selected))
	copy(out, selected)
	return out
}

// SelectCandidates qualifies and then caps at maxTracks. Used by the
// artist and genre mixes, which take the best tracks by score with no
// temporal balancing stage behind them.
func SelectCandidates(ranked []scoring.TrackScore, minScore float64, maxTracks int) []scoring.TrackScore {
	selected := QualifyCandidates(ranked, minScore, maxTracks)
	if len(selected) > maxTracks {
		selected = selected[:maxTracks]
	}
	return selected
}

// filterByScore keeps tracks scoring at or above the threshold.
func filterByScore(ranked []scoring.TrackScore, minScore float64) []scoring.TrackScore {
	out := make([]scoring.TrackScore, 0, len(ranked))
	for _, t := range ranked {
		if t.Total >= minScore {
			out = append(out, t)
		}
	}
	return out
}
