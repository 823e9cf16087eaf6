// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, def)
}

// mergeEnvConfig applies PRESENTD_* overrides on top of file values.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	// Server
	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimit = l.envInt("RATE_LIMIT", cfg.Server.RateLimit)

	// Scheduler + gate
	cfg.Scheduler.CooldownWindow = l.envDuration("COOLDOWN_WINDOW", cfg.Scheduler.CooldownWindow)
	cfg.Scheduler.MaxQueueSize = l.envInt("MAX_QUEUE_SIZE", cfg.Scheduler.MaxQueueSize)
	cfg.Scheduler.StoreKey = l.envString("STORE_KEY", cfg.Scheduler.StoreKey)
	cfg.Gate.ManualLockWindow = l.envDuration("GATE_MANUAL_LOCK", cfg.Gate.ManualLockWindow)
	cfg.Gate.AutoCooldown = l.envDuration("GATE_AUTO_COOLDOWN", cfg.Gate.AutoCooldown)

	// Store
	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)
	cfg.Store.CleanupInterval = l.envDuration("STORE_CLEANUP_INTERVAL", cfg.Store.CleanupInterval)
	cfg.Store.Redis.Addr = l.envString("REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt("REDIS_DB", cfg.Store.Redis.DB)

	// Renderer + presentation
	cfg.Renderer.URL = l.envString("RENDERER_URL", cfg.Renderer.URL)
	cfg.Renderer.Timeout = l.envDuration("RENDERER_TIMEOUT", cfg.Renderer.Timeout)
	cfg.Presentation.ThrottleRate = l.envFloat("THROTTLE_RATE", cfg.Presentation.ThrottleRate)
	cfg.Presentation.ThrottleBurst = l.envInt("THROTTLE_BURST", cfg.Presentation.ThrottleBurst)
	cfg.Presentation.TagBreakerThreshold = l.envInt("TAG_BREAKER_THRESHOLD", cfg.Presentation.TagBreakerThreshold)
	cfg.Presentation.TagBreakerReset = l.envDuration("TAG_BREAKER_RESET", cfg.Presentation.TagBreakerReset)

	// Telemetry
	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = l.envString("TELEMETRY_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	// Log + debug
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)
	cfg.Debug.Enabled = l.envBool("DEBUG_ENABLED", cfg.Debug.Enabled)
	cfg.Debug.EventHistory = l.envInt("DEBUG_EVENT_HISTORY", cfg.Debug.EventHistory)
	cfg.Debug.MaxMetrics = l.envInt("DEBUG_MAX_METRICS", cfg.Debug.MaxMetrics)
}
