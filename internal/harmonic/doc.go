// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package harmonic models DJ-style track analysis data and scores how well
// two tracks mix together.
//
// Compatibility follows the Camelot wheel: keys are written as an hour
// (1-12) plus a letter (A for minor, B for major). Tracks in the same key,
// the relative major/minor, or an adjacent hour mix cleanly; keys further
// apart clash. Tempo proximity and energy continuity refine the key score.
//
// Analysis data is optional throughout the engine. Sequence composition
// only consults this package when enough of a playlist has been analyzed;
// everything degrades to plain shuffling otherwise.
package harmonic
