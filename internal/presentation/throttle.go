// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package presentation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/presentd/internal/scheduler"
)

// ThrottleConfig bounds how often automatic sources may trigger. A zero
// Rate disables throttling.
type ThrottleConfig struct {
	Rate  float64 // triggers per second, per source
	Burst int
}

// Throttle applies one token bucket per automatic source. Manual requests
// are never throttled.
type Throttle struct {
	cfg ThrottleConfig
	now func() time.Time

	mu       sync.Mutex
	limiters map[scheduler.Source]*rate.Limiter
}

// NewThrottle creates a throttle.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Throttle{
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[scheduler.Source]*rate.Limiter),
	}
}

// Allow consumes a token for source if one is available.
func (t *Throttle) Allow(source scheduler.Source) bool {
	if t == nil || t.cfg.Rate <= 0 || source == scheduler.SourceManual {
		return true
	}
	return t.limiter(source).AllowN(t.now(), 1)
}

func (t *Throttle) limiter(source scheduler.Source) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[source]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(t.cfg.Rate), t.cfg.Burst)
		t.limiters[source] = lim
	}
	return lim
}
