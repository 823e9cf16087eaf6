// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package retry runs an operation with bounded attempts and exponential
// backoff. It knows nothing about what the operation does.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Hooks customise a single Do/Execute call.
type Hooks struct {
	// IsRetryable decides whether a failure may be retried. Nil retries everything.
	IsRetryable func(error) bool
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor applies a Policy to operations.
type Executor struct {
	policy Policy
	sleep  SleepFunc

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(e *Executor) { e.rnd = r }
}

// New creates an Executor for the given policy.
func New(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy.normalized(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy { return e.policy }

func (e *Executor) delay(attempt int) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Jittered(attempt, e.rnd)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt cap is reached, in which case the last error is returned.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error, hooks Hooks) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, hooks)
	return err
}

// Execute is the value-returning form of Executor.Do.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error), hooks Hooks) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	var last error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return zero, errors.Join(err, last)
			}
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		last = err

		if hooks.IsRetryable != nil && !hooks.IsRetryable(err) {
			return zero, err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		wait := e.delay(attempt)
		if hooks.OnRetry != nil {
			hooks.OnRetry(attempt, wait, err)
		}
		if serr := e.sleep(ctx, wait); serr != nil {
			return zero, errors.Join(serr, last)
		}
	}
	// Exhausted: the caller sees the last failure unchanged.
	return zero, last
}
