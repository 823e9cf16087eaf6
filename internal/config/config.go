// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/presentd/internal/presentation"
	"github.com/ManuGH/presentd/internal/scheduler"
	"github.com/ManuGH/presentd/internal/sessionstore"
	"github.com/ManuGH/presentd/internal/telemetry"
)

// AppConfig is the full daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server       ServerConfig       `yaml:"server"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Gate         GateConfig         `yaml:"gate"`
	Store        StoreConfig        `yaml:"store"`
	Renderer     RendererConfig     `yaml:"renderer"`
	Presentation PresentationConfig `yaml:"presentation"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Log          LogConfig          `yaml:"log"`
	Debug        DebugConfig        `yaml:"debug"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// SchedulerConfig mirrors scheduler.Config.
type SchedulerConfig struct {
	CooldownWindow time.Duration `yaml:"cooldownWindow"`
	MaxQueueSize   int           `yaml:"maxQueueSize"`
	StoreKey       string        `yaml:"storeKey"`
}

// GateConfig mirrors scheduler.GateConfig.
type GateConfig struct {
	ManualLockWindow time.Duration `yaml:"manualLockWindow"`
	AutoCooldown     time.Duration `yaml:"autoCooldown"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Backend         string        `yaml:"backend"`
	Path            string        `yaml:"path"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when Backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RendererConfig points at the host page bridge. An empty URL logs steps only.
type RendererConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PresentationConfig tunes the presenter.
type PresentationConfig struct {
	ThrottleRate        float64       `yaml:"throttleRate"`
	ThrottleBurst       int           `yaml:"throttleBurst"`
	TagBreakerThreshold int           `yaml:"tagBreakerThreshold"`
	TagBreakerReset     time.Duration `yaml:"tagBreakerReset"`
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// DebugConfig sizes the debugging surfaces.
type DebugConfig struct {
	Enabled      bool `yaml:"enabled"`
	EventHistory int  `yaml:"eventHistory"`
	MaxMetrics   int  `yaml:"maxMetrics"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	sched := scheduler.DefaultConfig()
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
		},
		Scheduler: SchedulerConfig{
			CooldownWindow: sched.CooldownWindow,
			MaxQueueSize:   sched.MaxQueueSize,
			StoreKey:       sched.StoreKey,
		},
		Gate: GateConfig{
			ManualLockWindow: 10 * time.Second,
			AutoCooldown:     2 * time.Second,
		},
		Store: StoreConfig{
			Backend:         sessionstore.BackendMemory,
			CleanupInterval: time.Minute,
		},
		Renderer: RendererConfig{Timeout: 10 * time.Second},
		Presentation: PresentationConfig{
			ThrottleRate:        1,
			ThrottleBurst:       3,
			TagBreakerThreshold: 5,
			TagBreakerReset:     30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "presentd",
			Exporter:     telemetry.ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
		},
		Log:   LogConfig{Level: "info", Service: "presentd"},
		Debug: DebugConfig{Enabled: true, EventHistory: 500, MaxMetrics: 1000},
	}
}

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every PRESENTD_ key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path means ENV and defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configured file path.
func (l *Loader) Path() string { return l.configPath }

// Load runs defaults, file, env, then Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// SchedulerConfig converts to the scheduler's own type.
func (c AppConfig) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		CooldownWindow: c.Scheduler.CooldownWindow,
		MaxQueueSize:   c.Scheduler.MaxQueueSize,
		StoreKey:       c.Scheduler.StoreKey,
	}
}

// GateConfig converts to the gate's own type.
func (c AppConfig) GateConfig() scheduler.GateConfig {
	return scheduler.GateConfig{
		ManualLockWindow: c.Gate.ManualLockWindow,
		AutoCooldown:     c.Gate.AutoCooldown,
	}
}

// StoreConfig converts to the session store factory config.
func (c AppConfig) StoreConfig() sessionstore.Config {
	return sessionstore.Config{
		Backend:         c.Store.Backend,
		Path:            c.Store.Path,
		CleanupInterval: c.Store.CleanupInterval,
		Redis: sessionstore.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
		},
	}
}

// PresentationConfig converts to the presenter's own type.
func (c AppConfig) PresentationConfig() presentation.Config {
	return presentation.Config{
		Throttle: presentation.ThrottleConfig{
			Rate:  c.Presentation.ThrottleRate,
			Burst: c.Presentation.ThrottleBurst,
		},
		TagBreakerThreshold: c.Presentation.TagBreakerThreshold,
		TagBreakerReset:     c.Presentation.TagBreakerReset,
	}
}

// TelemetryConfig converts to the tracer config.
func (c AppConfig) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

// String renders the config as YAML with secrets masked.
func (c AppConfig) String() string {
	masked := c
	if masked.Store.Redis.Password != "" {
		masked.Store.Redis.Password = "***"
	}
	out, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
