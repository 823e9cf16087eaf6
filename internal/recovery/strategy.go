// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package recovery holds the error taxonomy and the named recovery strategies
// that decide which failures of a presentation step are worth retrying.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/presentd/internal/bus"
	xglog "github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
	"github.com/ManuGH/presentd/internal/retry"
	"github.com/rs/zerolog"
)

// Strategy names a retry policy and the failures it considers transient.
type Strategy struct {
	Name    string
	Matches func(error) bool
	Policy  retry.Policy
}

// Retryable applies the strategy predicate on top of the terminal
// classification, which always wins.
func (s Strategy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindValidation, KindCapacity, KindCancelled, KindNotFound, KindCircuit:
		return false
	}
	if s.Matches == nil {
		return IsRetryable(err)
	}
	return s.Matches(err)
}

// Network retries fetch and connectivity failures.
func Network() Strategy {
	return Strategy{Name: "network", Matches: isNetworkError, Policy: retry.DefaultPolicy()}
}

// TagLoading retries failures of the tag script bootstrap.
func TagLoading() Strategy {
	p := retry.DefaultPolicy()
	p.InitialDelay = 500 * time.Millisecond
	p.MaxDelay = 5 * time.Second
	return Strategy{Name: "tag", Matches: isTagError, Policy: p}
}

// PlayerInit retries player iframe and bridge handshake failures.
func PlayerInit() Strategy {
	p := retry.DefaultPolicy()
	p.InitialDelay = 500 * time.Millisecond
	p.MaxDelay = 5 * time.Second
	return Strategy{Name: "player", Matches: isPlayerError, Policy: p}
}

// Presentation retries anything the generic classifier allows except
// "not found" and "invalid" failures: retrying cannot fix a missing survey.
func Presentation() Strategy {
	return Strategy{
		Name: "presentation",
		Matches: func(err error) bool {
			return IsRetryable(err) && !errors.Is(err, ErrNotFound) && !isTerminalMessage(err)
		},
		Policy: retry.DefaultPolicy(),
	}
}

// Recoverer runs operations under one Strategy.
type Recoverer struct {
	strategy Strategy
	exec     *retry.Executor
	bus      *bus.Bus
	breaker  *CircuitBreaker
	logger   zerolog.Logger
}

// Option configures a Recoverer.
type Option func(*recovererConfig)

type recovererConfig struct {
	bus       *bus.Bus
	breaker   *CircuitBreaker
	logger    *zerolog.Logger
	retryOpts []retry.Option
}

// WithBus emits a retry:attempt event before every backoff wait.
func WithBus(b *bus.Bus) Option {
	return func(c *recovererConfig) { c.bus = b }
}

// WithBreaker guards the strategy with a circuit breaker.
func WithBreaker(cb *CircuitBreaker) Option {
	return func(c *recovererConfig) { c.breaker = cb }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *recovererConfig) { c.logger = &l }
}

// WithRetryOptions passes options to the underlying retry.Executor.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(c *recovererConfig) { c.retryOpts = append(c.retryOpts, opts...) }
}

// NewRecoverer binds a strategy to a retry executor.
func NewRecoverer(s Strategy, opts ...Option) *Recoverer {
	var cfg recovererConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := xglog.WithComponent("recovery").With().Str(xglog.FieldStrategy, s.Name).Logger()
	if cfg.logger != nil {
		logger = *cfg.logger
	}
	return &Recoverer{
		strategy: s,
		exec:     retry.New(s.Policy, cfg.retryOpts...),
		bus:      cfg.bus,
		breaker:  cfg.breaker,
		logger:   logger,
	}
}

// Strategy returns the bound strategy.
func (r *Recoverer) Strategy() Strategy { return r.strategy }

// Run executes fn for surveyID with retries. Errors the strategy considers
// terminal are returned after the first attempt.
func (r *Recoverer) Run(ctx context.Context, surveyID string, fn func(ctx context.Context) error) error {
	if r.breaker != nil && !r.breaker.Allow() {
		metrics.RecordRetryAttempt(r.strategy.Name, "circuit_open")
		return fmt.Errorf("%s: %w", r.strategy.Name, ErrCircuitOpen)
	}

	logger := xglog.WithContext(ctx, r.logger)
	attempts := 0
	err := r.exec.Do(ctx, func(ctx context.Context) error {
		attempts++
		return fn(ctx)
	}, retry.Hooks{
		IsRetryable: r.strategy.Retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.RecordRetryAttempt(r.strategy.Name, "retry")
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "recovery.retry").
				Str(xglog.FieldSurveyID, surveyID).
				Int(xglog.FieldAttempt, attempt).
				Dur(xglog.FieldDelay, delay).
				Msg("transient failure, retrying")
			if r.bus != nil {
				r.bus.Emit("recovery", bus.RetryAttempt{
					Strategy: r.strategy.Name,
					SurveyID: surveyID,
					Attempt:  attempt,
					Delay:    delay,
					Error:    err.Error(),
				})
			}
		},
	})

	switch {
	case err == nil:
		metrics.RecordRetryAttempt(r.strategy.Name, "success")
		if r.breaker != nil {
			r.breaker.RecordSuccess()
		}
	case Classify(err) == KindCancelled:
		metrics.RecordRetryAttempt(r.strategy.Name, "canceled")
		if r.breaker != nil {
			r.breaker.RecordInconclusive()
		}
	case !r.strategy.Retryable(err):
		metrics.RecordRetryAttempt(r.strategy.Name, "terminal")
		if r.breaker != nil {
			r.breaker.RecordInconclusive()
		}
		logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "recovery.terminal").
			Str(xglog.FieldSurveyID, surveyID).
			Msg("non-retryable failure")
	default:
		metrics.RecordRetryAttempt(r.strategy.Name, "exhausted")
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "recovery.exhausted").
			Str(xglog.FieldSurveyID, surveyID).
			Int(xglog.FieldAttempt, attempts).
			Msg("retries exhausted")
	}
	return err
}
