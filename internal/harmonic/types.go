// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package harmonic

import (
	"strconv"
	"strings"
)

// TrackDjData holds the audio analysis attributes used for harmonic
// sequencing. Rows exist only for tracks the analysis pipeline has
// processed; absence must be tolerated everywhere.
type TrackDjData struct {
	TrackID    string  `json:"track_id"`
	BPM        float64 `json:"bpm"`
	Key        string  `json:"key"`         // musical notation, e.g. "Am"
	CamelotKey string  `json:"camelot_key"` // e.g. "8A"
	Energy     float64 `json:"energy"`      // 0-1
}

// camelotKey is a parsed Camelot wheel position.
type camelotKey struct {
	hour  int  // 1-12
	minor bool // A = minor, B = major
}

// parseCamelot parses notations like "8A" or "12b". Returns false for
// anything malformed.
func parseCamelot(s string) (camelotKey, bool) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 {
		return camelotKey{}, false
	}

	letter := s[len(s)-1]
	if letter != 'A' && letter != 'B' {
		return camelotKey{}, false
	}

	hour, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || hour < 1 || hour > 12 {
		return camelotKey{}, false
	}

	return camelotKey{hour: hour, minor: letter == 'A'}, true
}

// wheelDistance returns the circular distance between two hours (0-6).
func wheelDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}
