// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recovery

import (
	"sync"
	"time"

	"github.com/ManuGH/presentd/internal/metrics"
)

// BreakerState represents the circuit breaker state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker stops a strategy from hammering a collaborator that keeps
// failing after retries (e.g. a tag host that is down for everyone).
type CircuitBreaker struct {
	mu            sync.Mutex
	name          string
	state         BreakerState
	failures      int
	threshold     int
	resetTimeout  time.Duration
	openedAt      time.Time
	trialInFlight bool
	clock         clock
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock injects the breaker's time source.
func WithBreakerClock(c clock) BreakerOption {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures and admits a trial call again after resetTimeout.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	cb := &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Allow reports whether a call may proceed, moving open to half-open once the
// reset timeout has elapsed. Half-open admits a single trial call at a time.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	default:
		if cb.clock.Now().Sub(cb.openedAt) >= cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.trialInFlight = true
			return true
		}
		return false
	}
}

// RecordFailure counts a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.trialInFlight = false
	if cb.state == StateHalfOpen {
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
		return
	}
	if cb.state == StateClosed && cb.failures >= cb.threshold {
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trialInFlight = false
	if cb.state != StateClosed {
		cb.transitionTo(StateClosed)
	}
}

// RecordInconclusive ends a call that neither succeeded nor failed in a way
// that counts, such as a cancelled or terminal one. A half-open trial call must
// prove the collaborator healthy, so there it counts as a failure.
func (cb *CircuitBreaker) RecordInconclusive() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateHalfOpen {
		return
	}
	cb.trialInFlight = false
	metrics.RecordCircuitBreakerTrip(cb.name, "half_open_inconclusive")
	cb.transitionTo(StateOpen)
}

// Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState BreakerState) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
