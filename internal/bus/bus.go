// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is the in-process publish/subscribe substrate shared by the
// scheduler, the presenter and the observers. Delivery is synchronous on the
// emitting goroutine; history is a bounded in-memory ring and is never persisted.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultHistorySize bounds the history ring when no option overrides it.
const DefaultHistorySize = 100

// Event is one emitted message together with its envelope.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"data"`
}

// Handler receives events. Handlers run on the emitting goroutine and should return quickly.
type Handler func(Event)

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize overrides the history bound. Zero disables history.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n < 0 {
			n = 0
		}
		b.historySize = n
	}
}

// WithClock injects the time source used to stamp events.
func WithClock(c clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// Bus is a typed publish/subscribe hub with bounded history.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	seq         uint64
	subs        map[Type][]*subscription
	any         []*subscription
	history     []Event
	historySize int
	clock       clock
	logger      zerolog.Logger
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:        make(map[Type][]*subscription),
		historySize: DefaultHistorySize,
		clock:       realClock{},
		logger:      xglog.WithComponent("bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit records the event and delivers it to the type subscribers first and
// the wildcard subscribers second. It never panics: a failing handler is
// logged and skipped.
func (b *Bus) Emit(source string, p Payload) {
	if p == nil {
		return
	}
	b.mu.Lock()
	b.seq++
	ev := Event{
		Seq:       b.seq,
		Type:      p.Type(),
		Source:    source,
		Timestamp: b.clock.Now(),
		Payload:   p,
	}
	if b.historySize > 0 {
		b.history = append(b.history, ev)
		if over := len(b.history) - b.historySize; over > 0 {
			b.history = append(b.history[:0:0], b.history[over:]...)
		}
	}
	direct := append([]*subscription(nil), b.subs[ev.Type]...)
	wildcard := append([]*subscription(nil), b.any...)
	b.mu.Unlock()

	metrics.IncBusEvent(string(ev.Type))

	for _, s := range direct {
		b.deliver(s, ev)
	}
	for _, s := range wildcard {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *subscription, ev Event) {
	if !s.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBusHandlerPanic(string(ev.Type))
			b.logger.Error().
				Str(xglog.FieldEvent, "bus.handler_panic").
				Str("type", string(ev.Type)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.handler(ev)
}

// On registers h for events of type t and returns its unsubscribe function.
// It may be called from inside a handler.
func (b *Bus) On(t Type, h Handler) func() {
	s := b.newSubscription(h)
	b.mu.Lock()
	b.subs[t] = append(b.subs[t], s)
	b.mu.Unlock()
	return func() { b.remove(t, s, false) }
}

// OnAny registers h for every event type.
func (b *Bus) OnAny(h Handler) func() {
	s := b.newSubscription(h)
	b.mu.Lock()
	b.any = append(b.any, s)
	b.mu.Unlock()
	return func() { b.remove("", s, true) }
}

// Once registers h for the next event of type t only.
func (b *Bus) Once(t Type, h Handler) func() {
	var fired atomic.Bool
	var unsubscribe func()
	var mu sync.Mutex
	mu.Lock()
	unsubscribe = b.On(t, func(ev Event) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		mu.Lock()
		u := unsubscribe
		mu.Unlock()
		u()
		h(ev)
	})
	mu.Unlock()
	return unsubscribe
}

func (b *Bus) newSubscription(h Handler) *subscription {
	b.mu.Lock()
	b.nextID++
	s := &subscription{id: b.nextID, handler: h}
	b.mu.Unlock()
	s.active.Store(true)
	return s
}

func (b *Bus) remove(t Type, s *subscription, wildcard bool) {
	s.active.Store(false)
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[t]
	if wildcard {
		lst = b.any
	}
	out := make([]*subscription, 0, len(lst))
	for _, c := range lst {
		if c.id != s.id {
			out = append(out, c)
		}
	}
	switch {
	case wildcard:
		b.any = out
	case len(out) == 0:
		delete(b.subs, t)
	default:
		b.subs[t] = out
	}
}

// History returns recorded events, oldest first. An empty t matches every
// type; limit <= 0 returns all matches, otherwise the most recent limit.
func (b *Bus) History(t Type, limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.history))
	for _, ev := range b.history {
		if t == "" || ev.Type == t {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ClearHistory drops all recorded events.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

// SubscriberCount reports the direct subscribers for t, or the wildcard
// subscribers when t is empty.
func (b *Bus) SubscriberCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t == "" {
		return len(b.any)
	}
	return len(b.subs[t])
}

// Subscribe registers a handler typed on the payload struct P.
func Subscribe[P Payload](b *Bus, h func(Event, P)) func() {
	var zero P
	return b.On(zero.Type(), func(ev Event) {
		if p, ok := ev.Payload.(P); ok {
			h(ev, p)
		}
	})
}
