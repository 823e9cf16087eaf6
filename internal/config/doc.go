// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration.
//
// Precedence is ENV > file > defaults. The YAML file is parsed strictly:
// unknown keys are an error, not a warning. Every environment key starts
// with PRESENTD_.
package config
