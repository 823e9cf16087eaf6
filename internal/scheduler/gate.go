// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/presentd/internal/metrics"
)

// GateConfig tunes the lightweight gate.
type GateConfig struct {
	ManualLockWindow time.Duration
	AutoCooldown     time.Duration
	Clock            Clock
}

// Gate reasons.
const (
	GateReasonInvalid    = "invalid"
	GateReasonManualLock = "manual_lock"
	GateReasonCooldown   = "cooldown"
)

// Decision is the gate's answer.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type recent struct {
	at     time.Time
	source Source
}

// Gate is a queue-less admission check for call sites that present directly.
// An allowed manual request opens a lock window during which non-manual
// requests are denied. Recent presentations are remembered for AutoCooldown
// and a repeat of the same survey inside it must pass CanOverride, so a
// second manual request for the survey is refused like in the Scheduler.
type Gate struct {
	cfg GateConfig

	mu        sync.Mutex
	lockUntil time.Time
	recent    map[string]recent
}

// NewGate creates a gate, filling zero durations with defaults.
func NewGate(cfg GateConfig) *Gate {
	if cfg.ManualLockWindow <= 0 {
		cfg.ManualLockWindow = 10 * time.Second
	}
	if cfg.AutoCooldown <= 0 {
		cfg.AutoCooldown = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Gate{cfg: cfg, recent: make(map[string]recent)}
}

// Allow decides and, when allowed, records the presentation.
func (g *Gate) Allow(surveyID string, source Source) Decision {
	d := g.decide(strings.TrimSpace(surveyID), source)
	metrics.RecordGateDecision(source.String(), d.Allowed)
	return d
}

func (g *Gate) decide(surveyID string, source Source) Decision {
	if surveyID == "" {
		return Decision{Reason: GateReasonInvalid}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.cfg.Clock.Now()
	g.pruneLocked(now)

	if source != SourceManual && now.Before(g.lockUntil) {
		return Decision{Reason: GateReasonManualLock}
	}
	if r, ok := g.recent[surveyID]; ok && now.Sub(r.at) < g.cfg.AutoCooldown && !CanOverride(source, r.source) {
		return Decision{Reason: GateReasonCooldown}
	}

	if source == SourceManual {
		g.lockUntil = now.Add(g.cfg.ManualLockWindow)
	}
	g.recent[surveyID] = recent{at: now, source: source}
	return Decision{Allowed: true}
}

// LockedUntil returns the end of the current manual lock window.
func (g *Gate) LockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lockUntil
}

func (g *Gate) pruneLocked(now time.Time) {
	for id, r := range g.recent {
		if now.Sub(r.at) >= g.cfg.AutoCooldown {
			delete(g.recent, id)
		}
	}
}
