// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/presentd/internal/config"
	"github.com/ManuGH/presentd/internal/log"
)

func TestAppRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	mgr := newTestManager(t, testServerConfig())
	holder := config.NewHolder(config.Defaults(), config.NewLoader("", "test"))
	app := NewApp(log.WithComponent("test"), mgr, holder)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApplyConfigSetsLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	app := NewApp(log.WithComponent("test"), nil, nil)

	cfg := config.Defaults()
	cfg.Log.Level = "error"
	app.applyConfig(cfg)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	cfg.Log.Level = "loud"
	app.applyConfig(cfg)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
