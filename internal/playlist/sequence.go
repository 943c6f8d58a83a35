// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"github.com/echo-music/wavemix/internal/harmonic"
	"github.com/echo-music/wavemix/internal/scoring"
)

// CompatibilityScorer rates the transition from one analyzed track to the
// next, 0-100. *harmonic.CamelotScorer is the default implementation.
type CompatibilityScorer interface {
	Score(a, b harmonic.TrackDjData) float64
}

// harmonicCoverageThreshold is the minimum share of input tracks that must
// carry DJ analysis before the harmonic strategy is attempted.
const harmonicCoverageThreshold = 0.5

// Composer orders a selected track set for playback. The scorer is an
// optional capability resolved at construction; when absent, or when too
// few tracks are analyzed, composition degrades to the basic anti-repeat
// shuffle.
type Composer struct {
	rng    Rand
	scorer CompatibilityScorer
}

// NewComposer creates a sequence composer. scorer may be nil when no DJ
// analysis collaborator is configured.
func NewComposer(rng Rand, scorer CompatibilityScorer) *Composer {
	return &Composer{rng: rng, scorer: scorer}
}

// HarmonicCapable reports whether a compatibility scorer is configured.
func (c *Composer) HarmonicCapable() bool {
	return c.scorer != nil
}

// Compose returns the playback order for the selected tracks. The harmonic
// strategy is used when a scorer is configured and at least half of the
// tracks carry DJ data; otherwise the basic shuffle runs over the full set.
func (c *Composer) Compose(tracks []scoring.TrackScore, info map[string]TrackInfo, djData map[string]harmonic.TrackDjData) []scoring.TrackScore {
	if len(tracks) <= 1 {
		out := make([]scoring.TrackScore, len(tracks))
		copy(out, tracks)
		return out
	}

	if c.scorer != nil && analysisCoverage(tracks, djData) >= harmonicCoverageThreshold {
		return c.harmonicShuffle(tracks, djData)
	}
	return c.basicShuffle(tracks, info)
}

// analysisCoverage returns the fraction of tracks with DJ data.
func analysisCoverage(tracks []scoring.TrackScore, djData map[string]harmonic.TrackDjData) float64 {
	if len(tracks) == 0 {
		return 0
	}
	analyzed := 0
	for _, t := range tracks {
		if _, ok := djData[t.TrackID]; ok {
			analyzed++
		}
	}
	return float64(analyzed) / float64(len(tracks))
}

// basicShuffle orders tracks randomly while avoiding back-to-back plays of
// the same artist or album. At each step it draws uniformly from the
// remaining tracks whose artist and album both differ from the previous
// pick, falling back to a fully uniform draw when no such track remains.
func (c *Composer) basicShuffle(tracks []scoring.TrackScore, info map[string]TrackInfo) []scoring.TrackScore {
	remaining := make([]scoring.TrackScore, len(tracks))
	copy(remaining, tracks)

	out := make([]scoring.TrackScore, 0, len(tracks))

	idx := c.rng.Intn(len(remaining))
	out = append(out, remaining[idx])
	remaining = append(remaining[:idx], remaining[idx+1:]...)

	for len(remaining) > 0 {
		prev := info[out[len(out)-1].TrackID]

		fresh := make([]int, 0, len(remaining))
		for i, t := range remaining {
			cur := info[t.TrackID]
			if cur.ArtistID != prev.ArtistID && cur.AlbumID != prev.AlbumID {
				fresh = append(fresh, i)
			}
		}

		var pick int
		if len(fresh) > 0 {
			pick = fresh[c.rng.Intn(len(fresh))]
		} else {
			pick = c.rng.Intn(len(remaining))
		}

		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}

	return out
}

// harmonicShuffle chains analyzed tracks by weighted compatibility and
// slots the unanalyzed remainder in at random positions. The selection
// weight is (score/100)^2: quadratic bias toward clean transitions without
// ever making a low-compatibility pick impossible.
func (c *Composer) harmonicShuffle(tracks []scoring.TrackScore, djData map[string]harmonic.TrackDjData) []scoring.TrackScore {
	analyzed := make([]scoring.TrackScore, 0, len(tracks))
	setAside := make([]scoring.TrackScore, 0)
	for _, t := range tracks {
		if _, ok := djData[t.TrackID]; ok {
			analyzed = append(analyzed, t)
		} else {
			setAside = append(setAside, t)
		}
	}

	chain := make([]scoring.TrackScore, 0, len(analyzed))

	idx := c.rng.Intn(len(analyzed))
	chain = append(chain, analyzed[idx])
	analyzed = append(analyzed[:idx], analyzed[idx+1:]...)

	for len(analyzed) > 0 {
		last := djData[chain[len(chain)-1].TrackID]

		weights := make([]float64, len(analyzed))
		var totalWeight float64
		for i, t := range analyzed {
			score := c.scorer.Score(last, djData[t.TrackID])
			w := (score / 100) * (score / 100)
			weights[i] = w
			totalWeight += w
		}

		pick := c.weightedPick(weights, totalWeight)
		chain = append(chain, analyzed[pick])
		analyzed = append(analyzed[:pick], analyzed[pick+1:]...)
	}

	// Unanalyzed tracks land at uniformly random positions in the chain.
	for _, t := range setAside {
		pos := c.rng.Intn(len(chain) + 1)
		chain = append(chain, scoring.TrackScore{})
		copy(chain[pos+1:], chain[pos:])
		chain[pos] = t
	}

	return chain
}

// weightedPick draws an index proportionally to weights. When every weight
// is zero (all transitions fully incompatible), it degrades to uniform.
func (c *Composer) weightedPick(weights []float64, totalWeight float64) int {
	if totalWeight <= 0 {
		return c.rng.Intn(len(weights))
	}

	target := c.rng.Float64() * totalWeight
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}
