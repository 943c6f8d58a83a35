// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package harmonic

import "testing"

func TestParseCamelot(t *testing.T) {
	tests := []struct {
		input     string
		wantHour  int
		wantMinor bool
		wantOK    bool
	}{
		{"8A", 8, true, true},
		{"8B", 8, false, true},
		{"12A", 12, true, true},
		{"1B", 1, false, true},
		{"12b", 12, false, true},
		{" 5A ", 5, true, true},
		{"13A", 0, false, false},
		{"0A", 0, false, false},
		{"8C", 0, false, false},
		{"A", 0, false, false},
		{"", 0, false, false},
		{"Am", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCamelot(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseCamelot(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && (got.hour != tt.wantHour || got.minor != tt.wantMinor) {
				t.Errorf("parseCamelot(%q) = %+v, want hour=%d minor=%v", tt.input, got, tt.wantHour, tt.wantMinor)
			}
		})
	}
}

func TestWheelDistance(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{8, 8, 0},
		{8, 9, 1},
		{12, 1, 1},
		{1, 12, 1},
		{1, 7, 6},
		{2, 11, 3},
	}

	for _, tt := range tests {
		if got := wheelDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("wheelDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScoreKeyRelationships(t *testing.T) {
	scorer := NewCamelotScorer()

	base := TrackDjData{TrackID: "a", BPM: 128, CamelotKey: "8A", Energy: 0.7}

	sameKey := TrackDjData{TrackID: "b", BPM: 128, CamelotKey: "8A", Energy: 0.7}
	relative := TrackDjData{TrackID: "c", BPM: 128, CamelotKey: "8B", Energy: 0.7}
	adjacent := TrackDjData{TrackID: "d", BPM: 128, CamelotKey: "9A", Energy: 0.7}
	distant := TrackDjData{TrackID: "e", BPM: 128, CamelotKey: "2A", Energy: 0.7}

	sSame := scorer.Score(base, sameKey)
	sRel := scorer.Score(base, relative)
	sAdj := scorer.Score(base, adjacent)
	sDist := scorer.Score(base, distant)

	if sSame != 100 {
		t.Errorf("same key score = %v, want 100", sSame)
	}
	if !(sSame > sRel && sRel > sAdj && sAdj > sDist) {
		t.Errorf("expected same > relative > adjacent > distant, got %v, %v, %v, %v", sSame, sRel, sAdj, sDist)
	}
}

func TestScoreTempoEffect(t *testing.T) {
	scorer := NewCamelotScorer()

	base := TrackDjData{BPM: 128, CamelotKey: "8A", Energy: 0.5}
	near := TrackDjData{BPM: 129, CamelotKey: "8A", Energy: 0.5}
	far := TrackDjData{BPM: 170, CamelotKey: "8A", Energy: 0.5}

	if sClose, sFar := scorer.Score(base, near), scorer.Score(base, far); sClose <= sFar {
		t.Errorf("close tempo (%v) should beat distant tempo (%v)", sClose, sFar)
	}
}

func TestScoreHalfTimeTempo(t *testing.T) {
	scorer := NewCamelotScorer()

	base := TrackDjData{BPM: 140, CamelotKey: "8A", Energy: 0.5}
	half := TrackDjData{BPM: 70, CamelotKey: "8A", Energy: 0.5}
	unrelated := TrackDjData{BPM: 101, CamelotKey: "8A", Energy: 0.5}

	if sHalf, sUn := scorer.Score(base, half), scorer.Score(base, unrelated); sHalf <= sUn {
		t.Errorf("half-time tempo (%v) should beat unrelated tempo (%v)", sHalf, sUn)
	}
}

func TestScoreMissingAnalysisIsNeutral(t *testing.T) {
	scorer := NewCamelotScorer()

	a := TrackDjData{TrackID: "a"}
	b := TrackDjData{TrackID: "b"}

	got := scorer.Score(a, b)
	if got < 0 || got > 100 {
		t.Fatalf("score out of bounds: %v", got)
	}
	if got == 0 || got == 100 {
		t.Errorf("missing analysis should score neutral, got %v", got)
	}
}

func TestScoreBounds(t *testing.T) {
	scorer := NewCamelotScorer()

	worst := scorer.Score(
		TrackDjData{BPM: 60, CamelotKey: "1A", Energy: 0},
		TrackDjData{BPM: 179, CamelotKey: "7B", Energy: 1},
	)
	if worst < 0 || worst > 100 {
		t.Errorf("score out of bounds: %v", worst)
	}
}
