// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/echo-music/wavemix/internal/config"
	"github.com/echo-music/wavemix/internal/playlist"
)

type fakeProvider struct {
	bundle      []*playlist.Playlist
	err         error
	refreshed   []string
	invalidated []string
	lastForce   bool
}

func (f *fakeProvider) All(_ context.Context, userID string, forceRefresh bool) ([]*playlist.Playlist, error) {
	f.lastForce = forceRefresh
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

func (f *fakeProvider) Refresh(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.refreshed = append(f.refreshed, userID)
	return nil
}

func (f *fakeProvider) Invalidate(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.invalidated = append(f.invalidated, userID)
	return nil
}

type fakeMixer struct {
	mix          *playlist.Playlist
	err          error
	lastOverride *playlist.Config
}

func (f *fakeMixer) WaveMix(_ context.Context, userID string, override *playlist.Config) (*playlist.Playlist, error) {
	f.lastOverride = override
	if f.err != nil {
		return nil, f.err
	}
	return f.mix, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func testBundle(userID string) []*playlist.Playlist {
	return []*playlist.Playlist{
		{ID: "pl-wave", Type: playlist.TypeWaveMix, UserID: userID, Name: "Wave Mix"},
		{ID: "pl-artist", Type: playlist.TypeArtist, UserID: userID, Name: "Artist Mix"},
	}
}

func newTestRouter(provider *fakeProvider, mixer *fakeMixer, pinger *fakePinger) http.Handler {
	handler := NewHandler(provider, mixer, pinger, zerolog.Nop())
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8080}
	return NewRouter(handler, cfg, zerolog.Nop()).Routes()
}

func doRequest(t *testing.T, router http.Handler, method, path string) (*httptest.ResponseRecorder, *Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, &resp
}

func TestPlaylists(t *testing.T) {
	provider := &fakeProvider{bundle: testBundle("alice")}
	router := newTestRouter(provider, &fakeMixer{}, &fakePinger{})

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/users/alice/playlists")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q, want success", resp.Status)
	}
	if provider.lastForce {
		t.Error("forceRefresh = true on a plain GET, want false")
	}

	playlists, ok := resp.Data.([]any)
	if !ok {
		t.Fatalf("data is %T, want a playlist array", resp.Data)
	}
	if len(playlists) != 2 {
		t.Errorf("returned %d playlists, want 2", len(playlists))
	}
}

func TestPlaylistsRefreshQuery(t *testing.T) {
	provider := &fakeProvider{bundle: testBundle("alice")}
	router := newTestRouter(provider, &fakeMixer{}, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/users/alice/playlists?refresh=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !provider.lastForce {
		t.Error("refresh=true did not force a recompute")
	}
}

func TestPlaylistsError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("db offline")}
	router := newTestRouter(provider, &fakeMixer{}, &fakePinger{})

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/users/alice/playlists")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "PLAYLIST_ERROR" {
		t.Errorf("error envelope = %+v, want PLAYLIST_ERROR", resp.Error)
	}
	if resp.Error != nil && resp.Error.Message == "db offline" {
		t.Error("internal error detail leaked to the client")
	}
}

func TestRefreshPlaylists(t *testing.T) {
	provider := &fakeProvider{}
	router := newTestRouter(provider, &fakeMixer{}, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/users/alice/playlists/refresh")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(provider.refreshed) != 1 || provider.refreshed[0] != "alice" {
		t.Errorf("refreshed = %v, want [alice]", provider.refreshed)
	}
}

func TestInvalidateCache(t *testing.T) {
	provider := &fakeProvider{}
	router := newTestRouter(provider, &fakeMixer{}, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodDelete, "/api/v1/users/alice/playlists/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(provider.invalidated) != 1 || provider.invalidated[0] != "alice" {
		t.Errorf("invalidated = %v, want [alice]", provider.invalidated)
	}
}

func TestWaveMix(t *testing.T) {
	mixer := &fakeMixer{mix: &playlist.Playlist{ID: "pl-wave", Name: "Wave Mix"}}
	router := newTestRouter(&fakeProvider{}, mixer, &fakePinger{})

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/users/alice/playlists/wave")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q, want success", resp.Status)
	}
	if mixer.lastOverride != nil {
		t.Errorf("override = %+v without query params, want nil", mixer.lastOverride)
	}
}

func TestWaveMixMaxTracks(t *testing.T) {
	mixer := &fakeMixer{mix: &playlist.Playlist{ID: "pl-wave"}}
	router := newTestRouter(&fakeProvider{}, mixer, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/users/alice/playlists/wave?max_tracks=25")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if mixer.lastOverride == nil || mixer.lastOverride.MaxTracks != 25 {
		t.Errorf("override = %+v, want MaxTracks 25", mixer.lastOverride)
	}
}

func TestWaveMixInvalidMaxTracks(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"not a number", "max_tracks=lots"},
		{"zero", "max_tracks=0"},
		{"negative", "max_tracks=-5"},
		{"too large", "max_tracks=501"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mixer := &fakeMixer{mix: &playlist.Playlist{}}
			router := newTestRouter(&fakeProvider{}, mixer, &fakePinger{})

			rec, resp := doRequest(t, router, http.MethodGet,
				"/api/v1/users/alice/playlists/wave?"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error envelope = %+v, want VALIDATION_ERROR", resp.Error)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeProvider{}, &fakeMixer{}, &fakePinger{})

	rec, resp := doRequest(t, router, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q, want success", resp.Status)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	router := newTestRouter(&fakeProvider{}, &fakeMixer{}, &fakePinger{err: errors.New("no such file")})

	rec, _ := doRequest(t, router, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeProvider{}, &fakeMixer{}, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics endpoint returned an empty body")
	}
}

func TestRateLimitEnforced(t *testing.T) {
	provider := &fakeProvider{bundle: testBundle("alice")}
	handler := NewHandler(provider, &fakeMixer{}, &fakePinger{}, zerolog.Nop())
	cfg := config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            8080,
		RateLimit:       3,
		RateLimitWindow: time.Minute,
	}
	router := NewRouter(handler, cfg, zerolog.Nop()).Routes()

	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/playlists", nil)
		req.RemoteAddr = "10.0.0.1:52000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("no request was rate limited after exceeding the quota")
	}
}
