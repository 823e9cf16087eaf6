// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the HTTP surface of the presentation daemon.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/api/middleware"
	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/presentation"
	"github.com/ManuGH/presentd/internal/scheduler"
)

// Presenter runs presentation requests.
type Presenter interface {
	Present(ctx context.Context, surveyID string, meta presentation.Meta) (presentation.Result, error)
}

// Queue is the scheduler surface used by the queue endpoints.
type Queue interface {
	Cancel(surveyID string) int
	Clear() int
	Snapshot() scheduler.Snapshot
}

// Gate answers lightweight trigger checks.
type Gate interface {
	Allow(surveyID string, source scheduler.Source) scheduler.Decision
}

// HealthCheck reports a dependency failure as a non-nil error.
type HealthCheck func(ctx context.Context) error

// Config tunes the HTTP surface.
type Config struct {
	Version        string
	RateLimit      int
	TracingService string
	EnableMetrics  bool
}

// Deps are the components the server routes to. Gate, Debug and Health are optional.
type Deps struct {
	Presenter Presenter
	Queue     Queue
	Gate      Gate
	Debug     http.Handler
	Health    map[string]HealthCheck
}

// Server wires HTTP routes to the presentation components.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a server.
func New(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("api"),
	}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
		RateLimit:      s.cfg.RateLimit,
	})

	r.Get("/healthz", s.handleHealth)
	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if s.deps.Debug != nil {
		r.Mount("/debug", s.deps.Debug)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/present", s.handlePresent)
		if s.deps.Gate != nil {
			r.Post("/gate", s.handleGate)
		}
		r.Get("/queue", s.handleQueue)
		r.Delete("/queue", s.handleClear)
		r.Delete("/queue/{surveyId}", s.handleCancel)
	})
	return r
}
