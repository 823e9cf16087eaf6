// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/presentd/internal/config"
	"github.com/ManuGH/presentd/internal/daemon"
)

// runDump prints the debug dump of a freshly built core. With a persistent
// store this shows the rehydrated ledger.
func runDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("presentd dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(file)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	cfg.Telemetry.Enabled = false

	ctx := context.Background()
	comps, err := daemon.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Build failed: %v\n", err)
		return 1
	}
	defer func() { _ = comps.Close(ctx) }()

	if err := comps.Debugger.Dump(stdout); err != nil {
		fmt.Fprintf(stderr, "Dump failed: %v\n", err)
		return 1
	}
	return 0
}
