// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/echo-music/wavemix/internal/playlist"
)

// PlaylistProvider serves cached playlist bundles.
type PlaylistProvider interface {
	All(ctx context.Context, userID string, forceRefresh bool) ([]*playlist.Playlist, error)
	Refresh(ctx context.Context, userID string) error
	Invalidate(ctx context.Context, userID string) error
}

// MixGenerator produces a single mix on demand, bypassing the bundle cache.
type MixGenerator interface {
	WaveMix(ctx context.Context, userID string, override *playlist.Config) (*playlist.Playlist, error)
}

// Pinger reports backend storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler implements the playlist HTTP endpoints.
type Handler struct {
	playlists PlaylistProvider
	mixer     MixGenerator
	db        Pinger
	logger    zerolog.Logger
}

// NewHandler creates the endpoint handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(playlists PlaylistProvider, mixer MixGenerator, db Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		playlists: playlists,
		mixer:     mixer,
		db:        db,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Playlists returns the cached playlist bundle for a user.
//
// Method: GET
// Path: /api/v1/users/{userID}/playlists
// Query: refresh=true to bypass the cache and recompute.
func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	forceRefresh := r.URL.Query().Get("refresh") == "true"

	playlists, err := h.playlists.All(r.Context(), userID, forceRefresh)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PLAYLIST_ERROR",
			"Failed to build playlists", err)
		return
	}

	respondData(w, http.StatusOK, playlists, start)
}

// RefreshPlaylists recomputes and re-caches the user's bundle.
//
// Method: POST
// Path: /api/v1/users/{userID}/playlists/refresh
func (h *Handler) RefreshPlaylists(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	if err := h.playlists.Refresh(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "PLAYLIST_ERROR",
			"Failed to refresh playlists", err)
		return
	}

	respondData(w, http.StatusAccepted, map[string]string{"user_id": userID}, start)
}

// InvalidateCache drops the user's cached bundle without recomputing.
//
// Method: DELETE
// Path: /api/v1/users/{userID}/playlists/cache
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	if err := h.playlists.Invalidate(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "CACHE_ERROR",
			"Failed to invalidate playlist cache", err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"user_id": userID}, start)
}

// WaveMix generates the library-wide mix on demand, skipping the bundle
// cache entirely.
//
// Method: GET
// Path: /api/v1/users/{userID}/playlists/wave
// Query: max_tracks to cap the playlist length (1-500).
func (h *Handler) WaveMix(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	var override *playlist.Config
	if raw := r.URL.Query().Get("max_tracks"); raw != "" {
		maxTracks, err := strconv.Atoi(raw)
		if err != nil || maxTracks < 1 || maxTracks > 500 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"max_tracks must be an integer between 1 and 500", err)
			return
		}
		override = &playlist.Config{MaxTracks: maxTracks}
	}

	mix, err := h.mixer.WaveMix(r.Context(), userID, override)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PLAYLIST_ERROR",
			"Failed to generate wave mix", err)
		return
	}

	respondData(w, http.StatusOK, mix, start)
}

// Health reports service and storage health for liveness probes.
//
// Method: GET
// Path: /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check database ping failed")
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	respondData(w, code, status, start)
}
