// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package perfmon keeps a bounded buffer of presentation timings fed from the
// event bus and derives percentile and error-rate statistics from it. It is
// observational only.
package perfmon

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/metrics"
)

// OperationPresentation is the operation name recorded for attempts seen on the bus.
const OperationPresentation = "presentation"

// DefaultMaxMetrics bounds the sample buffer.
const DefaultMaxMetrics = 1000

// Metric is one timed operation.
type Metric struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Err       string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stats summarizes the samples of a window. Empty windows yield zero values.
type Stats struct {
	Count       int           `json:"count"`
	Successes   int           `json:"successes"`
	Failures    int           `json:"failures"`
	SuccessRate float64       `json:"successRate"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
	Avg         time.Duration `json:"avg"`
}

// ErrorRate is one error bucket.
type ErrorRate struct {
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxMetrics overrides the buffer bound.
func WithMaxMetrics(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock injects the time source used for windows.
func WithClock(c clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor collects presentation timings.
type Monitor struct {
	mu      sync.Mutex
	samples []Metric
	starts  map[string]time.Time
	max     int
	clock   clock
	logger  zerolog.Logger
	unsub   []func()
}

// New creates a monitor subscribed to the presentation events of b. A nil
// bus gives a monitor fed only through Record.
func New(b *bus.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		starts: make(map[string]time.Time),
		max:    DefaultMaxMetrics,
		clock:  realClock{},
		logger: log.WithComponent("perfmon"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if b != nil {
		m.unsub = append(m.unsub,
			bus.Subscribe(b, func(ev bus.Event, p bus.Preparing) {
				m.start(p.AttemptID, ev.Timestamp)
			}),
			bus.Subscribe(b, func(ev bus.Event, p bus.Presented) {
				m.finish(p.AttemptID, p.Duration, true, "", ev.Timestamp)
			}),
			bus.Subscribe(b, func(ev bus.Event, p bus.Failed) {
				m.finish(p.AttemptID, p.Duration, false, p.Error, ev.Timestamp)
			}),
		)
	}
	return m
}

func (m *Monitor) start(attemptID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.starts) >= m.max {
		// Attempts that never finished; forget the oldest.
		var oldestID string
		var oldest time.Time
		for id, t := range m.starts {
			if oldestID == "" || t.Before(oldest) {
				oldestID, oldest = id, t
			}
		}
		delete(m.starts, oldestID)
	}
	m.starts[attemptID] = at
}

func (m *Monitor) finish(attemptID string, reported time.Duration, success bool, errMsg string, at time.Time) {
	m.mu.Lock()
	d := reported
	if started, ok := m.starts[attemptID]; ok {
		if d <= 0 {
			d = at.Sub(started)
		}
		delete(m.starts, attemptID)
	}
	m.mu.Unlock()

	m.Record(Metric{
		Operation: OperationPresentation,
		Duration:  d,
		Success:   success,
		Err:       errMsg,
		Timestamp: at,
	})
}

// Record appends a sample, evicting the oldest beyond the bound.
func (m *Monitor) Record(s Metric) {
	if s.Timestamp.IsZero() {
		s.Timestamp = m.clock.Now()
	}
	m.mu.Lock()
	m.samples = append(m.samples, s)
	if over := len(m.samples) - m.max; over > 0 {
		m.samples = append(m.samples[:0:0], m.samples[over:]...)
	}
	n := len(m.samples)
	m.mu.Unlock()

	metrics.SetPerfmonBuffered(n)
	if !s.Success {
		m.logger.Debug().Str("operation", s.Operation).Str("error", s.Err).Msg("failure recorded")
	}
}

// Metrics returns a copy of the buffer, oldest first.
func (m *Monitor) Metrics() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Metric(nil), m.samples...)
}

// window returns samples for operation ("" = all) newer than now-window
// (window <= 0 = all).
func (m *Monitor) window(operation string, window time.Duration) []Metric {
	var since time.Time
	if window > 0 {
		since = m.clock.Now().Add(-window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Metric
	for _, s := range m.samples {
		if operation != "" && s.Operation != operation {
			continue
		}
		if window > 0 && s.Timestamp.Before(since) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Stats computes counts, success rate and duration percentiles.
func (m *Monitor) Stats(operation string, window time.Duration) Stats {
	samples := m.window(operation, window)
	if len(samples) == 0 {
		return Stats{}
	}

	durations := make([]time.Duration, 0, len(samples))
	var st Stats
	var total time.Duration
	for _, s := range samples {
		durations = append(durations, s.Duration)
		total += s.Duration
		if s.Success {
			st.Successes++
		} else {
			st.Failures++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	st.Count = len(samples)
	st.SuccessRate = float64(st.Successes) / float64(st.Count)
	st.P50 = percentile(durations, 0.50)
	st.P95 = percentile(durations, 0.95)
	st.P99 = percentile(durations, 0.99)
	st.Avg = total / time.Duration(st.Count)
	return st
}

// percentile picks index floor(n*p) of sorted, clamped to the last element.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRates buckets failures by the part of the message before the first ':'.
func (m *Monitor) ErrorRates(window time.Duration) map[string]ErrorRate {
	counts := make(map[string]int)
	total := 0
	for _, s := range m.window("", window) {
		if s.Success {
			continue
		}
		counts[errorBucket(s.Err)]++
		total++
	}

	out := make(map[string]ErrorRate, len(counts))
	for k, c := range counts {
		out[k] = ErrorRate{Count: c, Share: float64(c) / float64(total)}
	}
	return out
}

func errorBucket(msg string) string {
	key, _, _ := strings.Cut(msg, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}

// Reset drops all samples and pending starts.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.samples = nil
	m.starts = make(map[string]time.Time)
	m.mu.Unlock()
	metrics.SetPerfmonBuffered(0)
}

// Close unsubscribes from the bus.
func (m *Monitor) Close() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()
	for _, u := range unsub {
		u()
	}
}
