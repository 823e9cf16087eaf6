// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/sessionstore"
	"github.com/ManuGH/presentd/internal/telemetry"
)

// Validate checks cross-field constraints. Every failure is reported, joined,
// and wrapped in ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		fail("server.listenAddr", "%v", err)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		fail("server.shutdownTimeout", "must be positive")
	}
	if cfg.Server.RateLimit < 0 {
		fail("server.rateLimit", "must not be negative")
	}

	if cfg.Scheduler.CooldownWindow <= 0 {
		fail("scheduler.cooldownWindow", "must be positive")
	}
	if cfg.Scheduler.MaxQueueSize < 1 {
		fail("scheduler.maxQueueSize", "must be at least 1")
	}
	if cfg.Scheduler.StoreKey == "" {
		fail("scheduler.storeKey", "must not be empty")
	}
	if cfg.Gate.ManualLockWindow < 0 || cfg.Gate.AutoCooldown < 0 {
		fail("gate", "windows must not be negative")
	}

	switch cfg.Store.Backend {
	case sessionstore.BackendMemory:
	case sessionstore.BackendFile, sessionstore.BackendSQLite:
		if cfg.Store.Path == "" {
			fail("store.path", "required for backend %q", cfg.Store.Backend)
		}
	case sessionstore.BackendBadger:
	case sessionstore.BackendRedis:
		if cfg.Store.Redis.Addr == "" {
			fail("store.redis.addr", "required for backend redis")
		}
	default:
		fail("store.backend", "unknown backend %q", cfg.Store.Backend)
	}

	if cfg.Renderer.Timeout <= 0 {
		fail("renderer.timeout", "must be positive")
	}
	if cfg.Presentation.ThrottleRate < 0 || cfg.Presentation.ThrottleBurst < 0 {
		fail("presentation.throttle", "must not be negative")
	}
	if cfg.Presentation.ThrottleRate > 0 && cfg.Presentation.ThrottleBurst < 1 {
		fail("presentation.throttleBurst", "must be at least 1 when throttling")
	}
	if cfg.Presentation.TagBreakerThreshold < 1 {
		fail("presentation.tagBreakerThreshold", "must be at least 1")
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != telemetry.ExporterGRPC && cfg.Telemetry.Exporter != telemetry.ExporterHTTP {
			fail("telemetry.exporter", "must be %q or %q", telemetry.ExporterGRPC, telemetry.ExporterHTTP)
		}
		if cfg.Telemetry.Endpoint == "" {
			fail("telemetry.endpoint", "required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		fail("telemetry.samplingRate", "must be within [0,1]")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		fail("log.level", "%v", err)
	}
	if cfg.Debug.EventHistory < 0 || cfg.Debug.MaxMetrics < 0 {
		fail("debug", "sizes must not be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
