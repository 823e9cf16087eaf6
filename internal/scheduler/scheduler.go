// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package scheduler decides whether a survey presentation may happen now.
// It owns a priority queue, a per-survey ledger used for duplicate
// suppression and a single worker that authorizes one request at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
	"github.com/ManuGH/presentd/internal/recovery"
	"github.com/ManuGH/presentd/internal/sessionstore"
)

const eventSource = "scheduler"

// ErrClosed is returned for requests submitted to, or still queued in, a closed scheduler.
var ErrClosed = errors.New("scheduler closed")

// Handler performs the presentation once the request is authorized. Its
// error rejects the request; a nil Handler only authorizes.
type Handler func(ctx context.Context, req Request) error

// Config holds scheduler tunables.
type Config struct {
	CooldownWindow time.Duration
	MaxQueueSize   int
	StoreKey       string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CooldownWindow: 5 * time.Second,
		MaxQueueSize:   50,
		StoreKey:       "presentd:ledger",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = def.CooldownWindow
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.StoreKey == "" {
		c.StoreKey = def.StoreKey
	}
	return c
}

// retention is how long ledger entries are kept.
func (c Config) retention() time.Duration {
	return 2 * c.CooldownWindow
}

// Clock is the scheduler's time source.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithStore sets the ledger persistence backend. Defaults to an in-memory store.
func WithStore(st sessionstore.Store) Option {
	return func(s *Scheduler) { s.store = st }
}

// WithBus publishes lifecycle events on b.
func WithBus(b *bus.Bus) Option {
	return func(s *Scheduler) { s.bus = b }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

type job struct {
	req     Request
	handler Handler
	pending *Pending
	started time.Time
	ledger  []LedgerEntry
}

// Scheduler serializes presentation authorizations.
type Scheduler struct {
	cfg    Config
	clock  Clock
	store  sessionstore.Store
	bus    *bus.Bus
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	current *job
	queue   []*job
	ledger  map[string]LedgerEntry
	closed  bool

	outMu    sync.Mutex
	outbox   []bus.Payload
	flushing bool

	ctx       context.Context
	cancel    context.CancelFunc
	jobs      chan *job
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a scheduler, rehydrates the ledger and starts the worker.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg.withDefaults(),
		clock:  realClock{},
		logger: log.WithComponent("scheduler"),
		state:  StateIdle,
		jobs:   make(chan *job, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = sessionstore.NewMemoryStore(0)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ledger = s.loadLedger()
	metrics.SetSchedulerLedgerSize(len(s.ledger))

	go s.run()
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Submit validates, deduplicates and queues a request without blocking.
// Suppressed requests come back already resolved. Validation and capacity
// failures are returned as errors and never queued.
func (s *Scheduler) Submit(surveyID string, opts Options, handler Handler) (*Pending, error) {
	surveyID = strings.TrimSpace(surveyID)
	src := opts.Source.String()

	if surveyID == "" {
		err := &recovery.ValidationError{Field: "surveyId", Reason: "must not be empty"}
		metrics.RecordSchedulerRequest(src, "rejected")
		s.post(bus.Rejected{Source: src, Reason: err.Error()})
		s.flush()
		return nil, err
	}

	now := s.clock.Now()
	req := Request{
		ID:         uuid.New(),
		SurveyID:   surveyID,
		Priority:   opts.Priority,
		Source:     opts.Source,
		Options:    opts,
		EnqueuedAt: now,
	}
	logger := s.requestLogger(req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	if !opts.bypassDedup() {
		if recorded, blocked := s.conflictLocked(req, now, true); blocked {
			s.post(bus.Suppressed{
				SurveyID:       surveyID,
				Source:         src,
				RecordedSource: recorded.String(),
				Reason:         ReasonDuplicate,
			})
			s.mu.Unlock()
			s.flush()

			metrics.RecordSchedulerRequest(src, "suppressed")
			logger.Debug().Str("recorded_source", recorded.String()).Msg("duplicate presentation suppressed")

			p := newPending(req)
			p.resolve(suppressedOutcome(req, ReasonDuplicate))
			return p, nil
		}
	}

	if len(s.queue) >= s.cfg.MaxQueueSize {
		s.post(bus.Rejected{SurveyID: surveyID, Source: src, Reason: recovery.ErrQueueFull.Error()})
		s.mu.Unlock()
		s.flush()

		metrics.RecordSchedulerRequest(src, "rejected")
		logger.Warn().Int(log.FieldQueueLen, s.cfg.MaxQueueSize).Msg("presentation queue full")
		return nil, fmt.Errorf("%w: limit %d", recovery.ErrQueueFull, s.cfg.MaxQueueSize)
	}

	j := &job{req: req, handler: handler, pending: newPending(req)}
	pos := s.insertLocked(j)
	s.post(bus.Queued{
		SurveyID:    surveyID,
		RequestID:   req.ID.String(),
		Source:      src,
		Priority:    req.Priority.String(),
		Position:    pos,
		QueueLength: len(s.queue),
	})
	s.dispatchLocked()
	depth := len(s.queue)
	s.mu.Unlock()
	s.flush()

	metrics.SetSchedulerQueueDepth(depth)
	metrics.RecordSchedulerRequest(src, "queued")
	logger.Debug().Int("position", pos).Msg("presentation request queued")
	return j.pending, nil
}

// Enqueue submits a request and waits for its resolution. If ctx ends while
// the request is still queued it is removed from the queue.
func (s *Scheduler) Enqueue(ctx context.Context, surveyID string, opts Options, handler Handler) (Outcome, error) {
	p, err := s.Submit(surveyID, opts, handler)
	if err != nil {
		return Outcome{}, err
	}
	select {
	case <-p.Done():
		return p.outcome, p.err
	case <-ctx.Done():
		s.cancelWhere(func(j *job) bool { return j.req.ID == p.req.ID })
		return Outcome{}, ctx.Err()
	}
}

// Cancel removes every queued request for surveyID and rejects them with
// recovery.ErrCancelled. A request already processing is not affected.
func (s *Scheduler) Cancel(surveyID string) int {
	return s.cancelWhere(func(j *job) bool { return j.req.SurveyID == surveyID })
}

// Clear cancels all queued requests.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	removed := s.queue
	s.queue = nil
	s.post(bus.Cleared{Count: len(removed)})
	s.mu.Unlock()
	s.flush()

	metrics.SetSchedulerQueueDepth(0)
	for _, j := range removed {
		s.rejectCancelled(j)
	}
	if len(removed) > 0 {
		s.logger.Info().Int("count", len(removed)).Msg("presentation queue cleared")
	}
	return len(removed)
}

func (s *Scheduler) cancelWhere(match func(*job) bool) int {
	s.mu.Lock()
	var removed []*job
	kept := s.queue[:0]
	for _, j := range s.queue {
		if match(j) {
			removed = append(removed, j)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
	for _, j := range removed {
		s.post(bus.Cancelled{SurveyID: j.req.SurveyID, RequestID: j.req.ID.String()})
	}
	depth := len(s.queue)
	s.mu.Unlock()
	s.flush()

	metrics.SetSchedulerQueueDepth(depth)
	for _, j := range removed {
		s.rejectCancelled(j)
	}
	return len(removed)
}

func (s *Scheduler) rejectCancelled(j *job) {
	metrics.RecordSchedulerRequest(j.req.Source.String(), "cancelled")
	j.pending.reject(fmt.Errorf("%w: %s", recovery.ErrCancelled, j.req.SurveyID))
}

// State reports whether a request is being processed.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLength returns the number of waiting requests.
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns a copy of queue, ledger and loop state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:  s.state,
		Queue:  make([]Request, 0, len(s.queue)),
		Ledger: sortedLedger(s.ledger),
	}
	if s.current != nil {
		snap.CurrentSurveyID = s.current.req.SurveyID
	}
	for _, j := range s.queue {
		snap.Queue = append(snap.Queue, j.req)
	}
	return snap
}

// Close rejects queued requests with ErrClosed, cancels the context of a
// running handler and waits for the worker to exit.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		queued := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, j := range queued {
			j.pending.reject(ErrClosed)
		}
		s.cancel()
		close(s.stop)
		<-s.done

		s.mu.Lock()
		s.state = StateIdle
		s.current = nil
		s.mu.Unlock()
		metrics.SetSchedulerQueueDepth(0)
	})
	return nil
}

// conflictLocked returns the recorded source that blocks req, if any. The
// ledger counts inside the cooldown window; with includeQueue a queued
// request for the same survey counts as well.
func (s *Scheduler) conflictLocked(req Request, now time.Time, includeQueue bool) (Source, bool) {
	if e, ok := s.ledger[req.SurveyID]; ok && now.Sub(e.LastPresentedAt) < s.cfg.CooldownWindow {
		if !CanOverride(req.Source, e.LastSource) {
			return e.LastSource, true
		}
	}
	if includeQueue {
		for _, j := range s.queue {
			if j.req.SurveyID == req.SurveyID && !CanOverride(req.Source, j.req.Source) {
				return j.req.Source, true
			}
		}
	}
	return SourceUnknown, false
}

// insertLocked places manual requests before the first automatic one and
// appends automatic ones. It returns the zero-based position.
func (s *Scheduler) insertLocked(j *job) int {
	if j.req.Priority == PriorityManual {
		for i, q := range s.queue {
			if q.req.Priority == PriorityAuto {
				s.queue = append(s.queue, nil)
				copy(s.queue[i+1:], s.queue[i:])
				s.queue[i] = j
				return i
			}
		}
	}
	s.queue = append(s.queue, j)
	return len(s.queue) - 1
}

// dispatchLocked hands the next eligible request to the worker when idle.
// The ledger entry is written here, before the handler runs.
func (s *Scheduler) dispatchLocked() {
	if s.closed || s.state != StateIdle {
		return
	}
	for len(s.queue) > 0 {
		j := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		now := s.clock.Now()

		if !j.req.Options.bypassDedup() {
			if recorded, blocked := s.conflictLocked(j.req, now, false); blocked {
				s.post(bus.Suppressed{
					SurveyID:       j.req.SurveyID,
					Source:         j.req.Source.String(),
					RecordedSource: recorded.String(),
					Reason:         ReasonSuperseded,
				})
				metrics.RecordSchedulerRequest(j.req.Source.String(), "suppressed")
				j.pending.resolve(suppressedOutcome(j.req, ReasonSuperseded))
				continue
			}
		}

		s.state = StateProcessing
		s.current = j
		j.started = now
		s.ledger[j.req.SurveyID] = LedgerEntry{
			SurveyID:        j.req.SurveyID,
			LastPresentedAt: now,
			LastSource:      j.req.Source,
		}
		gcLedger(s.ledger, now, s.cfg.retention())
		j.ledger = sortedLedger(s.ledger)
		metrics.SetSchedulerLedgerSize(len(s.ledger))

		s.post(bus.Processing{
			SurveyID:  j.req.SurveyID,
			RequestID: j.req.ID.String(),
			Source:    j.req.Source.String(),
		})
		s.jobs <- j
		return
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.jobs:
			s.process(j)
		case <-s.stop:
			for {
				select {
				case j := <-s.jobs:
					j.pending.reject(ErrClosed)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) process(j *job) {
	logger := s.requestLogger(j.req)
	s.saveLedger(j.ledger)

	logger.Debug().Msg("processing presentation request")
	err := s.invoke(j)
	elapsed := s.clock.Now().Sub(j.started)

	s.mu.Lock()
	s.state = StateIdle
	s.current = nil
	if err != nil {
		s.post(bus.Error{SurveyID: j.req.SurveyID, RequestID: j.req.ID.String(), Error: err.Error()})
	}
	s.post(bus.Processed{
		SurveyID:  j.req.SurveyID,
		RequestID: j.req.ID.String(),
		Source:    j.req.Source.String(),
		Success:   err == nil,
		Elapsed:   elapsed,
	})
	s.dispatchLocked()
	depth := len(s.queue)
	s.mu.Unlock()
	s.flush()

	metrics.SetSchedulerQueueDepth(depth)
	if err != nil {
		metrics.RecordSchedulerRequest(j.req.Source.String(), "failed")
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("presentation request failed")
		j.pending.reject(err)
		return
	}
	metrics.RecordSchedulerRequest(j.req.Source.String(), "processed")
	logger.Debug().Dur("elapsed", elapsed).Msg("presentation request processed")
	j.pending.resolve(Outcome{
		SurveyID: j.req.SurveyID,
		Source:   j.req.Source,
		Options:  j.req.Options,
	})
}

func (s *Scheduler) invoke(j *job) (err error) {
	if j.handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("presentation handler panic: %v", r)
		}
	}()
	return j.handler(s.ctx, j.req)
}

// post queues an event for in-order delivery by flush. Events posted while
// holding s.mu keep the order of the state changes they describe.
func (s *Scheduler) post(p bus.Payload) {
	if s.bus == nil {
		return
	}
	s.outMu.Lock()
	s.outbox = append(s.outbox, p)
	s.outMu.Unlock()
}

// flush delivers queued events. Only one goroutine delivers at a time; a
// reentrant call from a bus handler leaves its events to the active flusher.
func (s *Scheduler) flush() {
	if s.bus == nil {
		return
	}
	s.outMu.Lock()
	if s.flushing {
		s.outMu.Unlock()
		return
	}
	s.flushing = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.outMu.Unlock()
		for _, p := range batch {
			s.bus.Emit(eventSource, p)
		}
		s.outMu.Lock()
	}
	s.flushing = false
	s.outMu.Unlock()
}

func (s *Scheduler) requestLogger(req Request) zerolog.Logger {
	return s.logger.With().
		Str(log.FieldSurveyID, req.SurveyID).
		Str(log.FieldRequestID, req.ID.String()).
		Str(log.FieldSource, req.Source.String()).
		Str(log.FieldPriority, req.Priority.String()).
		Logger()
}

func suppressedOutcome(req Request, reason string) Outcome {
	return Outcome{
		SurveyID:   req.SurveyID,
		Source:     req.Source,
		Options:    req.Options,
		Suppressed: true,
		Reason:     reason,
	}
}
