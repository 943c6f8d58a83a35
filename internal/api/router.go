// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/echo-music/wavemix/internal/config"
)

// Router assembles the HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
	logger  zerolog.Logger
}

// NewRouter creates the route assembler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(handler *Handler, cfg config.ServerConfig, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// Routes builds the Chi handler tree.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if len(rt.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		}))
	}

	r.Get("/health", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/users/{userID}/playlists", func(r chi.Router) {
		if rt.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimit, rt.cfg.RateLimitWindow))
		}
		r.Use(prometheusMetrics)

		r.Get("/", rt.handler.Playlists)
		r.Get("/wave", rt.handler.WaveMix)
		r.Post("/refresh", rt.handler.RefreshPlaylists)
		r.Delete("/cache", rt.handler.InvalidateCache)
	})

	return r
}

// Server runs the HTTP listener under suture supervision.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewServer wires the router into an http.Server with the configured
// address and timeouts.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(rt *Router, cfg config.ServerConfig, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      rt.Routes(),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger.With().Str("service", "http").Logger(),
	}
}

// Serve implements the suture.Service interface. It blocks until the
// listener fails or the context is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("http server shutdown forced")
			_ = s.srv.Close()
		}
		return ctx.Err()
	}
}
