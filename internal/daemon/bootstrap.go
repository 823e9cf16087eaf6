// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon assembles the presentation components and owns their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/presentd/internal/api"
	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/config"
	"github.com/ManuGH/presentd/internal/debugger"
	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/perfmon"
	"github.com/ManuGH/presentd/internal/presentation"
	"github.com/ManuGH/presentd/internal/scheduler"
	"github.com/ManuGH/presentd/internal/sessionstore"
	"github.com/ManuGH/presentd/internal/telemetry"
)

// Components is one fully wired presentation core.
type Components struct {
	Config    config.AppConfig
	Bus       *bus.Bus
	Store     sessionstore.Store
	StoreName string
	Scheduler *scheduler.Scheduler
	Gate      *scheduler.Gate
	Presenter *presentation.Presenter
	Monitor   *perfmon.Monitor
	Debugger  *debugger.Debugger
	Telemetry *telemetry.Provider
	API       *api.Server
}

// Build wires every component from cfg. An unreachable session store degrades
// to memory and a failing tracer setup continues without tracing; a bad
// renderer URL is an error.
func Build(ctx context.Context, cfg config.AppConfig) (*Components, error) {
	logger := log.WithComponent("daemon")

	renderer, err := newRenderer(cfg.Renderer)
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.TelemetryConfig())
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
		tp = nil
	}

	c := &Components{Config: cfg, Telemetry: tp}
	c.Bus = bus.New(bus.WithHistorySize(cfg.Debug.EventHistory))
	c.Store, c.StoreName = sessionstore.OpenWithFallback(cfg.StoreConfig())
	c.Scheduler = scheduler.New(cfg.SchedulerConfig(),
		scheduler.WithBus(c.Bus),
		scheduler.WithStore(c.Store),
	)
	c.Gate = scheduler.NewGate(cfg.GateConfig())
	c.Presenter = presentation.New(c.Scheduler, renderer, c.Bus, cfg.PresentationConfig())
	c.Monitor = perfmon.New(c.Bus, perfmon.WithMaxMetrics(cfg.Debug.MaxMetrics))
	c.Debugger = debugger.New(c.Bus, c.Monitor,
		debugger.WithStateSource(c.Scheduler),
		debugger.WithEventLimit(cfg.Debug.EventHistory),
	)

	deps := api.Deps{
		Presenter: c.Presenter,
		Queue:     c.Scheduler,
		Gate:      c.Gate,
		Health:    map[string]api.HealthCheck{},
	}
	if hc, ok := c.Store.(interface{ HealthCheck(context.Context) error }); ok {
		deps.Health["store"] = hc.HealthCheck
	}
	if cfg.Debug.Enabled {
		deps.Debug = c.Debugger.Handler()
	}
	apiCfg := api.Config{
		Version:       cfg.Version,
		RateLimit:     cfg.Server.RateLimit,
		EnableMetrics: true,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.Telemetry.ServiceName
	}
	c.API = api.New(apiCfg, deps)

	logger.Info().
		Str(log.FieldBackend, c.StoreName).
		Bool("http_renderer", cfg.Renderer.URL != "").
		Bool("tracing", cfg.Telemetry.Enabled && tp != nil).
		Msg("components ready")
	return c, nil
}

func newRenderer(cfg config.RendererConfig) (presentation.Renderer, error) {
	if cfg.URL == "" {
		return presentation.NewLogRenderer(), nil
	}
	r, err := presentation.NewHTTPRenderer(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return r, nil
}

// Handler is the routed HTTP surface.
func (c *Components) Handler() http.Handler {
	return c.API.Handler()
}

// Close stops the scheduler first so no handler writes to a closed store.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if err := c.Scheduler.Close(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	c.Monitor.Close()
	if err := c.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session store: %w", err))
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
