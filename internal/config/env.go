// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/log"
)

// EnvPrefix starts every environment key the loader reads.
const EnvPrefix = "PRESENTD_"

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password") || strings.Contains(k, "secret")
}

// lookup returns the raw value of key; empty values count as unset.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	if v == "" {
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return v, true
}

func logEnv(logger zerolog.Logger, key string, value any) {
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", value)
	}
	ev.Msg("using environment variable")
}

func logInvalid(logger zerolog.Logger, key, raw, kind string, def any) {
	logger.Warn().
		Str("key", key).
		Str("value", raw).
		Interface("default", def).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads a string from the environment or returns the default.
// Sensitive keys are logged without their value.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	logEnv(logger, key, v)
	return v
}

// ParseInt reads an integer, falling back to the default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logInvalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, i)
	return i
}

// ParseFloat reads a float64, falling back to the default on parse errors.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logInvalid(logger, key, v, "float", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, f)
	return f
}

// ParseDuration reads a Go duration ("5s"), falling back to the default on
// parse errors.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logInvalid(logger, key, v, "duration", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, d.String())
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		logEnv(logger, key, true)
		return true
	case "false", "0", "no":
		logEnv(logger, key, false)
		return false
	default:
		logInvalid(logger, key, v, "boolean", defaultValue)
		return defaultValue
	}
}
