// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package presentation is the orchestration entry point: it asks the
// scheduler for authorization and then drives the rendering steps of one
// attempt under the matching recovery strategies.
package presentation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
	"github.com/ManuGH/presentd/internal/recovery"
	"github.com/ManuGH/presentd/internal/retry"
	"github.com/ManuGH/presentd/internal/scheduler"
	"github.com/ManuGH/presentd/internal/telemetry"
)

const (
	eventSource = "presentation"
	tracerName  = "presentd.presentation"
)

const (
	stepBackground = "background"
	stepPlayer     = "player"
	stepTag        = "tag"
	stepShow       = "show"
)

// ReasonThrottled marks a request dropped by the trigger throttle.
const ReasonThrottled = "throttled"

// Meta is the caller's intent for one presentation.
type Meta struct {
	Source         scheduler.Source
	Priority       scheduler.Priority
	Force          bool
	AllowDuplicate bool
}

// priority promotes manual requests to manual priority.
func (m Meta) priority() scheduler.Priority {
	if m.Source == scheduler.SourceManual {
		return scheduler.PriorityManual
	}
	return m.Priority
}

// Result describes a finished Present call.
type Result struct {
	SurveyID   string           `json:"surveyId"`
	Source     scheduler.Source `json:"source"`
	Suppressed bool             `json:"suppressed"`
	Reason     string           `json:"reason,omitempty"`
	AttemptID  string           `json:"attemptId,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Config tunes the presenter.
type Config struct {
	Throttle            ThrottleConfig
	TagBreakerThreshold int
	TagBreakerReset     time.Duration
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Presenter) { p.logger = l }
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Presenter) { p.tracer = t }
}

// WithRetryOptions is passed to every step's retry executor.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(p *Presenter) { p.retryOpts = append(p.retryOpts, opts...) }
}

type step struct {
	name      string
	next      Stage
	recoverer *recovery.Recoverer
	run       func(r Renderer, ctx context.Context, surveyID string) error
}

// Presenter runs authorized presentation attempts.
type Presenter struct {
	sched    *scheduler.Scheduler
	renderer Renderer
	bus      *bus.Bus
	throttle *Throttle
	breaker  *recovery.CircuitBreaker
	steps    []step

	retryOpts []retry.Option
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// New wires a presenter. b may be nil.
func New(sched *scheduler.Scheduler, renderer Renderer, b *bus.Bus, cfg Config, opts ...Option) *Presenter {
	if cfg.TagBreakerThreshold <= 0 {
		cfg.TagBreakerThreshold = 5
	}
	if cfg.TagBreakerReset <= 0 {
		cfg.TagBreakerReset = 30 * time.Second
	}
	p := &Presenter{
		sched:    sched,
		renderer: renderer,
		bus:      b,
		throttle: NewThrottle(cfg.Throttle),
		breaker:  recovery.NewCircuitBreaker(stepTag, cfg.TagBreakerThreshold, cfg.TagBreakerReset),
		tracer:   telemetry.Tracer(tracerName),
		logger:   log.WithComponent("presentation"),
	}
	for _, opt := range opts {
		opt(p)
	}

	rec := func(s recovery.Strategy, extra ...recovery.Option) *recovery.Recoverer {
		o := []recovery.Option{
			recovery.WithBus(b),
			recovery.WithRetryOptions(p.retryOpts...),
			recovery.WithLogger(p.logger.With().Str(log.FieldStrategy, s.Name).Logger()),
		}
		return recovery.NewRecoverer(s, append(o, extra...)...)
	}
	p.steps = []step{
		{stepBackground, StageBackgroundReady, rec(recovery.Network()), Renderer.PrepareBackground},
		{stepPlayer, StagePlayerReady, rec(recovery.PlayerInit()), Renderer.InitPlayer},
		{stepTag, StageTagReady, rec(recovery.TagLoading(), recovery.WithBreaker(p.breaker)), Renderer.BootTag},
		{stepShow, StagePresented, rec(recovery.Presentation()), Renderer.Show},
	}
	return p
}

// Breaker exposes the tag-boot circuit breaker.
func (p *Presenter) Breaker() *recovery.CircuitBreaker { return p.breaker }

type attemptResult struct {
	id       string
	duration time.Duration
}

// Present requests authorization and, once granted, runs one attempt.
// Suppression is not an error: it comes back as Result.Suppressed.
func (p *Presenter) Present(ctx context.Context, surveyID string, meta Meta) (Result, error) {
	prio := meta.priority()
	ctx, span := p.tracer.Start(ctx, "presentation.present",
		trace.WithAttributes(telemetry.PresentationAttributes(surveyID, "", meta.Source.String(), prio.String())...))
	defer span.End()

	res := Result{SurveyID: surveyID, Source: meta.Source}
	logger := log.WithContext(ctx, p.logger).With().
		Str(log.FieldSurveyID, surveyID).
		Str(log.FieldSource, meta.Source.String()).
		Logger()

	if strings.TrimSpace(surveyID) != "" && !p.throttle.Allow(meta.Source) {
		metrics.IncThrottled(meta.Source.String())
		if p.bus != nil {
			p.bus.Emit(eventSource, bus.Suppressed{SurveyID: surveyID, Source: meta.Source.String(), Reason: ReasonThrottled})
		}
		logger.Debug().Msg("trigger throttled")
		res.Suppressed, res.Reason = true, ReasonThrottled
		span.SetAttributes(telemetry.OutcomeAttributes(true, ReasonThrottled)...)
		return res, nil
	}

	attempts := make(chan attemptResult, 1)
	outcome, err := p.sched.Enqueue(ctx, surveyID, scheduler.Options{
		Priority:       prio,
		Source:         meta.Source,
		Force:          meta.Force,
		AllowDuplicate: meta.AllowDuplicate,
	}, func(schedCtx context.Context, req scheduler.Request) error {
		actx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(schedCtx, cancel)
		defer stop()

		ar, err := p.runAttempt(actx, req)
		attempts <- ar
		return err
	})

	select {
	case ar := <-attempts:
		res.AttemptID, res.Duration = ar.id, ar.duration
	default:
	}

	if err != nil {
		kind := string(recovery.Classify(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(kind)...)
		logger.Warn().Err(err).Str("kind", kind).Msg("presentation failed")
		return res, err
	}

	res.Suppressed, res.Reason = outcome.Suppressed, outcome.Reason
	span.SetAttributes(telemetry.OutcomeAttributes(res.Suppressed, res.Reason)...)
	if res.Suppressed {
		logger.Debug().Str("reason", res.Reason).Msg("presentation suppressed")
	} else {
		logger.Info().Str(log.FieldAttemptID, res.AttemptID).Dur("duration", res.Duration).Msg("survey presented")
	}
	return res, nil
}

func (p *Presenter) runAttempt(ctx context.Context, req scheduler.Request) (attemptResult, error) {
	a := &attempt{
		ID:       uuid.NewString(),
		SurveyID: req.SurveyID,
		Source:   req.Source.String(),
		Started:  time.Now(),
	}
	ctx = log.ContextWithAttemptID(log.ContextWithSurveyID(ctx, a.SurveyID), a.ID)
	logger := log.WithContext(ctx, p.logger)
	m := newAttemptMachine(a, p.bus, logger)

	p.emit(bus.Preparing{SurveyID: a.SurveyID, AttemptID: a.ID, Source: a.Source})

	for _, st := range p.steps {
		sctx, span := p.tracer.Start(ctx, "presentation."+st.name,
			trace.WithAttributes(telemetry.StageAttributes(st.name, st.recoverer.Strategy().Name)...))
		err := st.recoverer.Run(sctx, a.SurveyID, func(c context.Context) error {
			return st.run(p.renderer, c, a.SurveyID)
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			a.Step, a.Err = st.name, err
			m.Transition(StageFailed, a)
			d := time.Since(a.Started)
			metrics.ObservePresentation("failed", d.Seconds())
			p.emit(bus.Failed{SurveyID: a.SurveyID, AttemptID: a.ID, Stage: st.name, Error: err.Error(), Duration: d})
			logger.Warn().Err(err).Str("step", st.name).Msg("presentation attempt failed")
			return attemptResult{id: a.ID, duration: d}, err
		}
		span.End()
		m.Transition(st.next, a)
	}

	d := time.Since(a.Started)
	metrics.ObservePresentation("presented", d.Seconds())
	p.emit(bus.Presented{SurveyID: a.SurveyID, AttemptID: a.ID, Duration: d})
	return attemptResult{id: a.ID, duration: d}, nil
}

func (p *Presenter) emit(payload bus.Payload) {
	if p.bus != nil {
		p.bus.Emit(eventSource, payload)
	}
}
