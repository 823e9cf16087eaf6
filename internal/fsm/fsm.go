// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsm is a small finite-state-machine runtime: declared states with
// enter/exit hooks, guarded transitions with actions, and a bounded history.
// It carries no knowledge of what the states mean.
package fsm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/presentd/internal/log"
	"github.com/rs/zerolog"
)

// DefaultHistorySize bounds the transition history.
const DefaultHistorySize = 100

var (
	ErrUnknownInitial   = errors.New("initial state not declared")
	ErrUnknownState     = errors.New("transition references undeclared state")
	ErrDuplicateEdge    = errors.New("duplicate transition")
	ErrEmptyDefinitions = errors.New("no states declared")
)

// State holds optional hooks for one state.
type State[C any] struct {
	OnEnter func(C)
	OnExit  func(C)
}

// Transition is one allowed edge.
type Transition[S comparable, C any] struct {
	From   S
	To     S
	Guard  func(C) bool
	Action func(C)
}

// Definition describes a machine.
type Definition[S comparable, C any] struct {
	Initial     S
	States      map[S]State[C]
	Transitions []Transition[S, C]
}

// HistoryEntry records one committed hop.
type HistoryEntry[S comparable, C any] struct {
	From    S
	To      S
	At      time.Time
	Context C
}

type edge[S comparable] struct{ from, to S }

// Machine is one running instance. It is safe for concurrent use; hooks run
// with the machine lock held and must not call back into the same machine.
type Machine[S comparable, C any] struct {
	mu          sync.Mutex
	def         Definition[S, C]
	edges       map[edge[S]]Transition[S, C]
	current     S
	history     []HistoryEntry[S, C]
	historySize int
	now         func() time.Time
	observer    func(from, to S)
	logger      zerolog.Logger
}

// Option configures a Machine.
type Option[S comparable, C any] func(*Machine[S, C])

// WithHistorySize overrides the history bound.
func WithHistorySize[S comparable, C any](n int) Option[S, C] {
	return func(m *Machine[S, C]) {
		if n < 0 {
			n = 0
		}
		m.historySize = n
	}
}

// WithNow injects the time source for history timestamps.
func WithNow[S comparable, C any](now func() time.Time) Option[S, C] {
	return func(m *Machine[S, C]) { m.now = now }
}

// WithObserver is called after every committed transition, including resets.
func WithObserver[S comparable, C any](fn func(from, to S)) Option[S, C] {
	return func(m *Machine[S, C]) { m.observer = fn }
}

// WithLogger overrides the component logger.
func WithLogger[S comparable, C any](l zerolog.Logger) Option[S, C] {
	return func(m *Machine[S, C]) { m.logger = l }
}

// New validates def and returns a machine in its initial state.
func New[S comparable, C any](def Definition[S, C], opts ...Option[S, C]) (*Machine[S, C], error) {
	if len(def.States) == 0 {
		return nil, ErrEmptyDefinitions
	}
	if _, ok := def.States[def.Initial]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownInitial, def.Initial)
	}
	edges := make(map[edge[S]]Transition[S, C], len(def.Transitions))
	for _, tr := range def.Transitions {
		if _, ok := def.States[tr.From]; !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownState, tr.From)
		}
		if _, ok := def.States[tr.To]; !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownState, tr.To)
		}
		k := edge[S]{tr.From, tr.To}
		if _, dup := edges[k]; dup {
			return nil, fmt.Errorf("%w: %v -> %v", ErrDuplicateEdge, tr.From, tr.To)
		}
		edges[k] = tr
	}

	m := &Machine[S, C]{
		def:         def,
		edges:       edges,
		current:     def.Initial,
		historySize: DefaultHistorySize,
		now:         time.Now,
		logger:      xglog.WithComponent("fsm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustNew is New for static definitions; it panics on an invalid definition.
func MustNew[S comparable, C any](def Definition[S, C], opts ...Option[S, C]) *Machine[S, C] {
	m, err := New(def, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Current returns the current state.
func (m *Machine[S, C]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanTransition reports whether an edge current → to exists and its guard,
// if any, returns true. A panicking guard counts as "not allowed".
func (m *Machine[S, C]) CanTransition(to S, ctx C) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.allowed(to, ctx)
	return ok
}

func (m *Machine[S, C]) allowed(to S, ctx C) (Transition[S, C], bool) {
	tr, ok := m.edges[edge[S]{m.current, to}]
	if !ok {
		return tr, false
	}
	if tr.Guard == nil {
		return tr, true
	}
	return tr, m.runGuard(tr, ctx)
}

func (m *Machine[S, C]) runGuard(tr Transition[S, C], ctx C) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str(xglog.FieldEvent, "fsm.guard_panic").
				Str(xglog.FieldOldState, fmt.Sprint(tr.From)).
				Str(xglog.FieldNewState, fmt.Sprint(tr.To)).
				Interface("panic", r).
				Msg("transition guard panicked; treating as not allowed")
			ok = false
		}
	}()
	return tr.Guard(ctx)
}

// Transition moves to the given state if allowed and returns whether it did.
// Order: exit hook, transition action, commit, enter hook, history.
func (m *Machine[S, C]) Transition(to S, ctx C) bool {
	m.mu.Lock()
	tr, ok := m.allowed(to, ctx)
	if !ok {
		m.mu.Unlock()
		return false
	}
	from := m.current
	m.hook("exit", from, m.def.States[from].OnExit, ctx)
	if tr.Action != nil {
		m.hook("action", from, tr.Action, ctx)
	}
	m.commit(from, to, ctx)
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, to)
	}
	return true
}

// Reset returns to the initial state through the exit and enter hooks,
// bypassing guards. Used for hard recovery.
func (m *Machine[S, C]) Reset(ctx C) {
	m.mu.Lock()
	from := m.current
	m.hook("exit", from, m.def.States[from].OnExit, ctx)
	m.commit(from, m.def.Initial, ctx)
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, m.def.Initial)
	}
}

// Caller must hold lock.
func (m *Machine[S, C]) commit(from, to S, ctx C) {
	m.current = to
	m.hook("enter", to, m.def.States[to].OnEnter, ctx)
	if m.historySize == 0 {
		return
	}
	m.history = append(m.history, HistoryEntry[S, C]{From: from, To: to, At: m.now(), Context: ctx})
	if over := len(m.history) - m.historySize; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
}

func (m *Machine[S, C]) hook(kind string, state S, fn func(C), ctx C) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str(xglog.FieldEvent, "fsm.hook_panic").
				Str("hook", kind).
				Str("state", fmt.Sprint(state)).
				Interface("panic", r).
				Msg("state machine hook panicked")
		}
	}()
	fn(ctx)
}

// History returns a copy of the recorded transitions, oldest first.
func (m *Machine[S, C]) History() []HistoryEntry[S, C] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry[S, C](nil), m.history...)
}

// Available lists the declared targets reachable from the current state,
// ignoring guards, in declaration order.
func (m *Machine[S, C]) Available() []S {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []S
	for _, tr := range m.def.Transitions {
		if tr.From == m.current {
			out = append(out, tr.To)
		}
	}
	return out
}
