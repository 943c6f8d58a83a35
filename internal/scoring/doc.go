// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package scoring computes per-track recommendation scores from a single
// user's listening behavior.
//
// A track's score combines four independently bounded signals:
//
//   - explicit feedback: the user's star rating, worth rating*20 points
//   - implicit behavior: weighted play count (capped) plus completion rate
//   - recency: exponential decay from the last time the track was played
//   - diversity: how little the track's artist dominates the user's plays
//
// The weighted total uses fixed weights (0.30, 0.50, 0.18, 0.02) that sum
// to exactly 1.0, and is clamped to [-100, 100]. Every sub-score is kept in
// the breakdown so a ranking can be explained after the fact.
//
// Engine.RankTracks batch-loads all behavioral data up front: one play-stat
// query per item type plus one interactions query, regardless of how many
// tracks are being ranked. This is a contract, not an optimization detail;
// per-track lookups would turn a constant number of repository round trips
// into three per candidate.
//
// Missing data is never an error. No rating contributes zero explicit
// points, a never-played track scores zero implicit and recency points, and
// a user with no plays at all sees maximal diversity for every artist.
package scoring
