// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sessionstore

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/log"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend         string
	Path            string
	Redis           RedisConfig
	CleanupInterval time.Duration
	Logger          *zerolog.Logger
}

func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return log.WithComponent("sessionstore")
}

// Open creates the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.CleanupInterval), nil
	case BackendFile:
		return NewFileStore(cfg.Path)
	case BackendRedis:
		return NewRedisStore(cfg.Redis, cfg.logger())
	case BackendBadger:
		return NewBadgerStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("sessionstore: unknown backend %q", cfg.Backend)
	}
}

// OpenWithFallback opens the configured backend and degrades to memory when it
// is unavailable. The returned name is the backend actually in use.
func OpenWithFallback(cfg Config) (Store, string) {
	store, err := Open(cfg)
	if err == nil {
		name := cfg.Backend
		if name == "" {
			name = BackendMemory
		}
		return store, name
	}

	logger := cfg.logger()
	logger.Warn().
		Err(err).
		Str(log.FieldBackend, cfg.Backend).
		Msg("session store unavailable, falling back to memory")
	return NewMemoryStore(cfg.CleanupInterval), BackendMemory
}
