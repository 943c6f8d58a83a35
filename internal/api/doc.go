// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

// Package api exposes the playlist engine over HTTP using the Chi
// router. All playlist endpoints live under /api/v1/users/{userID} and
// return a uniform JSON envelope; /health and /metrics sit outside the
// versioned tree for probes and Prometheus scraping.
package api
