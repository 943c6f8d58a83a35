// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/echo-music/wavemix/internal/harmonic"
	"github.com/echo-music/wavemix/internal/scoring"
)

// scriptedRand replays fixed draws so shuffle outcomes are exact.
type scriptedRand struct {
	ints   []int
	floats []float64
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// recordingScorer counts invocations and scores via a pair lookup.
type recordingScorer struct {
	calls  int
	scores map[[2]string]float64
}

func (s *recordingScorer) Score(a, b harmonic.TrackDjData) float64 {
	s.calls++
	return s.scores[[2]string{a.TrackID, b.TrackID}]
}

func trackSet(n int) []scoring.TrackScore {
	out := make([]scoring.TrackScore, n)
	for i := range out {
		out[i] = scoring.TrackScore{TrackID: fmt.Sprintf("t%d", i), Total: float64(100 - i)}
	}
	return out
}

func assertPermutation(t *testing.T, in, out []scoring.TrackScore) {
	t.Helper()
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	seen := make(map[string]bool, len(out))
	for _, tr := range out {
		if seen[tr.TrackID] {
			t.Fatalf("track %s appears twice", tr.TrackID)
		}
		seen[tr.TrackID] = true
	}
	for _, tr := range in {
		if !seen[tr.TrackID] {
			t.Fatalf("track %s missing from output", tr.TrackID)
		}
	}
}

func TestComposeSmallInputs(t *testing.T) {
	c := NewComposer(rand.New(rand.NewSource(1)), nil)

	if got := c.Compose(nil, nil, nil); got == nil || len(got) != 0 {
		t.Fatalf("empty input: got %v, want empty slice", got)
	}

	single := trackSet(1)
	got := c.Compose(single, nil, nil)
	if len(got) != 1 || got[0].TrackID != "t0" {
		t.Fatalf("single input: got %v", got)
	}
	got[0].TrackID = "mutated"
	if single[0].TrackID == "mutated" {
		t.Error("output aliases the input slice")
	}
}

func TestBasicShuffleAvoidsRepeats(t *testing.T) {
	// Three artists with four tracks each: perfect alternation is always
	// possible, so no draw should ever place an artist next to itself.
	var tracks []scoring.TrackScore
	info := make(map[string]TrackInfo)
	for a := 0; a < 3; a++ {
		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("a%d-t%d", a, i)
			tracks = append(tracks, scoring.TrackScore{TrackID: id})
			info[id] = TrackInfo{
				ID:       id,
				ArtistID: fmt.Sprintf("artist-%d", a),
				AlbumID:  fmt.Sprintf("album-%d", a),
			}
		}
	}

	for seed := int64(0); seed < 20; seed++ {
		c := NewComposer(rand.New(rand.NewSource(seed)), nil)
		got := c.Compose(tracks, info, nil)
		assertPermutation(t, tracks, got)
		for i := 1; i < len(got); i++ {
			prev, cur := info[got[i-1].TrackID], info[got[i].TrackID]
			if prev.ArtistID == cur.ArtistID {
				t.Fatalf("seed %d: artist %s repeats at positions %d-%d", seed, cur.ArtistID, i-1, i)
			}
		}
	}
}

func TestBasicShuffleSingleArtistFallsBack(t *testing.T) {
	tracks := trackSet(5)
	info := make(map[string]TrackInfo)
	for _, tr := range tracks {
		info[tr.TrackID] = TrackInfo{ID: tr.TrackID, ArtistID: "solo", AlbumID: "only"}
	}

	c := NewComposer(rand.New(rand.NewSource(7)), nil)
	got := c.Compose(tracks, info, nil)
	assertPermutation(t, tracks, got)
}

func TestComposeHarmonicGate(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		analyzed     int
		wantHarmonic bool
	}{
		{name: "no coverage", total: 5, analyzed: 0, wantHarmonic: false},
		{name: "below half coverage", total: 5, analyzed: 2, wantHarmonic: false},
		{name: "exactly half coverage", total: 4, analyzed: 2, wantHarmonic: true},
		{name: "above half coverage", total: 5, analyzed: 3, wantHarmonic: true},
		{name: "full coverage", total: 5, analyzed: 5, wantHarmonic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := trackSet(tt.total)
			info := make(map[string]TrackInfo)
			for i, tr := range tracks {
				info[tr.TrackID] = TrackInfo{ID: tr.TrackID, ArtistID: fmt.Sprintf("artist-%d", i)}
			}

			scorer := &recordingScorer{}
			c := NewComposer(rand.New(rand.NewSource(3)), scorer)

			djData := make(map[string]harmonic.TrackDjData)
			for i := 0; i < tt.analyzed; i++ {
				id := tracks[i].TrackID
				djData[id] = harmonic.TrackDjData{TrackID: id, BPM: 120, CamelotKey: "8A"}
			}

			got := c.Compose(tracks, info, djData)
			assertPermutation(t, tracks, got)

			if tt.wantHarmonic && scorer.calls == 0 {
				t.Error("expected harmonic sequencing, scorer never invoked")
			}
			if !tt.wantHarmonic && scorer.calls > 0 {
				t.Errorf("expected basic shuffle, scorer invoked %d times", scorer.calls)
			}
		})
	}
}

func TestComposeNilScorerNeverHarmonic(t *testing.T) {
	tracks := trackSet(4)
	djData := make(map[string]harmonic.TrackDjData)
	for _, tr := range tracks {
		djData[tr.TrackID] = harmonic.TrackDjData{TrackID: tr.TrackID}
	}

	c := NewComposer(rand.New(rand.NewSource(9)), nil)
	got := c.Compose(tracks, map[string]TrackInfo{}, djData)
	assertPermutation(t, tracks, got)
}

func TestHarmonicShuffleFollowsCompatibility(t *testing.T) {
	// From a, only c is compatible; from c, only b. With the start pinned
	// to a, weighted selection must produce a, c, b: a zero weight is
	// never drawn while any positive weight remains.
	tracks := []scoring.TrackScore{
		{TrackID: "a", Total: 90},
		{TrackID: "b", Total: 80},
		{TrackID: "c", Total: 70},
	}
	djData := map[string]harmonic.TrackDjData{
		"a": {TrackID: "a"},
		"b": {TrackID: "b"},
		"c": {TrackID: "c"},
	}
	scorer := &recordingScorer{scores: map[[2]string]float64{
		{"a", "c"}: 100,
		{"c", "b"}: 100,
	}}

	rng := &scriptedRand{ints: []int{0}, floats: []float64{0.5, 0.5}}
	c := NewComposer(rng, scorer)

	got := c.Compose(tracks, nil, djData)
	want := []string{"a", "c", "b"}
	for i, id := range want {
		if got[i].TrackID != id {
			t.Fatalf("position %d = %s, want %s (full order %v)", i, got[i].TrackID, id, got)
		}
	}
}

func TestHarmonicShuffleAllIncompatible(t *testing.T) {
	// Every transition scores zero; selection degrades to uniform and must
	// still emit every track once.
	tracks := trackSet(6)
	djData := make(map[string]harmonic.TrackDjData)
	for _, tr := range tracks {
		djData[tr.TrackID] = harmonic.TrackDjData{TrackID: tr.TrackID}
	}
	scorer := &recordingScorer{}

	c := NewComposer(rand.New(rand.NewSource(11)), scorer)
	got := c.Compose(tracks, nil, djData)
	assertPermutation(t, tracks, got)
}

func TestHarmonicShuffleInsertsUnanalyzed(t *testing.T) {
	tracks := trackSet(6)
	djData := make(map[string]harmonic.TrackDjData)
	for i := 0; i < 4; i++ {
		id := tracks[i].TrackID
		djData[id] = harmonic.TrackDjData{TrackID: id, BPM: 128, CamelotKey: "5A"}
	}
	scorer := &recordingScorer{}

	c := NewComposer(rand.New(rand.NewSource(5)), scorer)
	got := c.Compose(tracks, nil, djData)
	assertPermutation(t, tracks, got)
}
