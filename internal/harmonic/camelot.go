// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package harmonic

import "math"

// Component weights for the overall compatibility score.
const (
	keyWeight    = 0.6
	tempoWeight  = 0.3
	energyWeight = 0.1
)

// CamelotScorer scores the harmonic compatibility of two analyzed tracks
// on the Camelot wheel. It is stateless and safe for concurrent use.
type CamelotScorer struct{}

// NewCamelotScorer returns the default compatibility scorer.
func NewCamelotScorer() *CamelotScorer {
	return &CamelotScorer{}
}

// Score rates how well b follows a in a mix, from 0 (clashing) to 100
// (seamless). Key relationship dominates, tempo proximity and energy
// continuity refine it. Missing or malformed analysis fields fall back to
// neutral sub-scores rather than failing.
func (s *CamelotScorer) Score(a, b TrackDjData) float64 {
	total := keyWeight*keyScore(a.CamelotKey, b.CamelotKey) +
		tempoWeight*tempoScore(a.BPM, b.BPM) +
		energyWeight*energyScore(a.Energy, b.Energy)

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

// keyScore rates two Camelot keys. Same key is perfect; the relative
// major/minor and adjacent hours on the wheel mix cleanly; each further
// hour of separation drops sharply.
func keyScore(rawA, rawB string) float64 {
	ka, okA := parseCamelot(rawA)
	kb, okB := parseCamelot(rawB)
	if !okA || !okB {
		return 50 // unanalyzed key, neither reward nor punish
	}

	dist := wheelDistance(ka.hour, kb.hour)
	sameMode := ka.minor == kb.minor

	switch {
	case dist == 0 && sameMode:
		return 100
	case dist == 0: // relative major/minor
		return 90
	case dist == 1 && sameMode:
		return 85
	case dist == 1:
		return 55
	case dist == 2 && sameMode:
		return 40
	default:
		score := 30 - 8*float64(dist-2)
		if score < 0 {
			return 0
		}
		return score
	}
}

// tempoScore rates BPM proximity. Within 2% is a clean blend; the score
// falls off linearly and hits zero at 16% difference. Half/double time
// relationships are normalized before comparing.
func tempoScore(bpmA, bpmB float64) float64 {
	if bpmA <= 0 || bpmB <= 0 {
		return 50
	}

	// Treat 140 vs 70 as compatible half-time mixing.
	for bpmA >= bpmB*1.5 {
		bpmA /= 2
	}
	for bpmB >= bpmA*1.5 {
		bpmB /= 2
	}

	diff := math.Abs(bpmA-bpmB) / math.Max(bpmA, bpmB)
	switch {
	case diff <= 0.02:
		return 100
	case diff >= 0.16:
		return 0
	default:
		return 100 * (1 - (diff-0.02)/0.14)
	}
}

// energyScore rewards smooth energy transitions between tracks.
func energyScore(a, b float64) float64 {
	if a <= 0 && b <= 0 {
		return 50
	}
	diff := math.Abs(a - b)
	if diff > 1 {
		diff = 1
	}
	return 100 * (1 - diff)
}
