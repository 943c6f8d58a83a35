// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package playlist assembles ranked, time-boxed playlists from scored
// tracks.
//
// The pipeline runs in a fixed order: candidate selection with threshold
// fallback, temporal balancing across recency buckets (wave mix only),
// sequence composition for playback order, and metadata aggregation. The
// Generator composes these stages into the three playlist variants (wave
// mix, artist mix, genre mix); Cache wraps the whole bundle in a
// cache-aside layer.
//
// Shuffling is intentionally non-deterministic. Every randomized stage
// draws from an injectable Rand so tests can seed reproducible sequences.
// A playlist is never nil: a user with no listening history gets a
// well-formed playlist with an empty track list.
package playlist
