// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/presentd/internal/sessionstore"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.CooldownWindow)
	assert.Equal(t, 50, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, sessionstore.BackendMemory, cfg.Store.Backend)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "presentd.yaml", `
server:
  listenAddr: "127.0.0.1:9000"
scheduler:
  cooldownWindow: 3s
  maxQueueSize: 10
store:
  backend: file
  path: /var/lib/presentd
presentation:
  throttleRate: 0.5
  throttleBurst: 2
log:
  level: debug
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.CooldownWindow)
	assert.Equal(t, 10, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, "presentd:ledger", cfg.Scheduler.StoreKey, "unset keys keep defaults")
	assert.Equal(t, sessionstore.BackendFile, cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)

	pc := cfg.PresentationConfig()
	assert.InDelta(t, 0.5, pc.Throttle.Rate, 1e-9)
	assert.Equal(t, 2, pc.Throttle.Burst)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "presentd.yml", "scheduler:\n  maxQueueSize: 10\nlog:\n  level: warn\n")
	t.Setenv("PRESENTD_MAX_QUEUE_SIZE", "20")
	t.Setenv("PRESENTD_COOLDOWN_WINDOW", "8s")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, 8*time.Second, cfg.Scheduler.CooldownWindow)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Contains(t, l.ConsumedEnvKeys, "PRESENTD_MAX_QUEUE_SIZE")
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "scheduler:\n  cooldown: 3s\n")
		_, err := NewLoader(path, "").Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownConfigField)
	})

	t.Run("multiple documents", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "log:\n  level: info\n---\nlog:\n  level: debug\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorContains(t, err, "multiple documents")
	})

	t.Run("extension", func(t *testing.T) {
		path := writeConfig(t, "c.json", "{}")
		_, err := NewLoader(path, "").Load()
		assert.ErrorContains(t, err, "only YAML supported")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "")
		_, err := NewLoader(path, "").Load()
		assert.NoError(t, err)
	})
}

func TestFileExpandsEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache:6379")
	path := writeConfig(t, "c.yaml", "store:\n  backend: redis\n  redis:\n    addr: ${REDIS_HOST}\n")
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.StoreConfig().Redis.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"listen addr", func(c *AppConfig) { c.Server.ListenAddr = "nope" }, "server.listenAddr"},
		{"cooldown", func(c *AppConfig) { c.Scheduler.CooldownWindow = 0 }, "scheduler.cooldownWindow"},
		{"queue size", func(c *AppConfig) { c.Scheduler.MaxQueueSize = 0 }, "scheduler.maxQueueSize"},
		{"backend", func(c *AppConfig) { c.Store.Backend = "etcd" }, "store.backend"},
		{"file path", func(c *AppConfig) { c.Store.Backend = sessionstore.BackendSQLite }, "store.path"},
		{"redis addr", func(c *AppConfig) { c.Store.Backend = sessionstore.BackendRedis }, "store.redis.addr"},
		{"burst", func(c *AppConfig) { c.Presentation.ThrottleBurst = 0 }, "presentation.throttleBurst"},
		{"exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
		{"sampling", func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, "telemetry.samplingRate"},
		{"log level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.ErrorContains(t, err, tt.field)
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.MaxQueueSize = 0
	cfg.Renderer.Timeout = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "scheduler.maxQueueSize")
	assert.ErrorContains(t, err, "renderer.timeout")
}

func TestConverters(t *testing.T) {
	cfg := Defaults()
	cfg.Version = "v9"

	sc := cfg.SchedulerConfig()
	assert.Equal(t, cfg.Scheduler.CooldownWindow, sc.CooldownWindow)
	assert.Equal(t, cfg.Scheduler.StoreKey, sc.StoreKey)

	gc := cfg.GateConfig()
	assert.Equal(t, 10*time.Second, gc.ManualLockWindow)

	tc := cfg.TelemetryConfig()
	assert.Equal(t, "v9", tc.ServiceVersion)
	assert.Equal(t, "grpc", tc.ExporterType)
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Redis.Password = "hunter2"
	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "cooldownWindow: 5s")
	assert.Equal(t, "hunter2", cfg.Store.Redis.Password)
}
