// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes bounded exponential backoff.
type Policy struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // upper bound for any single delay
	Multiplier   float64       // growth factor between attempts, >= 1
	Jitter       float64       // relative jitter, 0.1 means ±10%
}

// DefaultPolicy returns 3 attempts starting at 1s, doubling, capped at 30s, ±10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Delay returns the un-jittered wait after the given failed attempt (1-based):
// min(MaxDelay, InitialDelay * Multiplier^(attempt-1)).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if raw >= float64(p.MaxDelay) || math.IsInf(raw, 1) {
		return p.MaxDelay
	}
	return time.Duration(raw)
}

// Jittered applies uniform ±Jitter to Delay(attempt), floored at zero.
func (p Policy) Jittered(attempt int, rnd *rand.Rand) time.Duration {
	p = p.normalized()
	base := p.Delay(attempt)
	if p.Jitter == 0 || base == 0 {
		return base
	}
	var f float64
	if rnd != nil {
		f = rnd.Float64()
	} else {
		f = rand.Float64() // #nosec G404 -- jitter only
	}
	spread := float64(base) * p.Jitter
	d := time.Duration(float64(base) + (f*2-1)*spread)
	if d < 0 {
		return 0
	}
	return d
}
