// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/presentd/internal/config"
	"github.com/ManuGH/presentd/internal/log"
)

// App owns the long-lived runtime: the config watcher, reload signal and the
// server manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		a.cfgHolder.OnReload(a.applyConfig)

		// Best-effort: a watcher failure never stops the daemon.
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, a.reloadSignal)
				defer signal.Stop(hup)

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-hup:
						a.logger.Info().
							Str(log.FieldEvent, "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")
						_ = a.cfgHolder.Reload()
					}
				}
			})
		}
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// applyConfig applies the settings that are safe to change at runtime. Only
// the log level qualifies; everything else needs a restart.
func (a *App) applyConfig(cfg config.AppConfig) {
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		a.logger.Warn().Err(err).Msg("ignoring invalid log level from reload")
		return
	}
	a.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Str("log_level", cfg.Log.Level).
		Msg("runtime configuration applied; other changes take effect on restart")
}
