// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger not configured")
	ErrMissingAPIHandler = errors.New("daemon: no HTTP handler to serve")
	ErrMissingManager    = errors.New("daemon: app has no manager")
	// ErrManagerNotStarted is returned by Shutdown before Start ran.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps is what a Manager needs to serve.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler
}

// Validate rejects a disabled logger (zerolog.Nop) and a nil handler.
func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
