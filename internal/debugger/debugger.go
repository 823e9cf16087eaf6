// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package debugger composes bus history, performance statistics and the
// scheduler state into a read-only snapshot for operators.
package debugger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/perfmon"
	"github.com/ManuGH/presentd/internal/scheduler"
)

// DefaultEventLimit is how many recent events a snapshot carries.
const DefaultEventLimit = 100

// StateSource provides the scheduler's bookkeeping.
type StateSource interface {
	Snapshot() scheduler.Snapshot
}

// Snapshot is the exported debug document.
type Snapshot struct {
	GeneratedAt time.Time                    `json:"generatedAt"`
	Window      string                       `json:"window,omitempty"`
	Events      []bus.Event                  `json:"events"`
	Stats       perfmon.Stats                `json:"stats"`
	ErrorRates  map[string]perfmon.ErrorRate `json:"errorRates"`
	Scheduler   *scheduler.Snapshot          `json:"scheduler,omitempty"`
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Debugger.
type Option func(*Debugger)

// WithStateSource adds the scheduler state to snapshots.
func WithStateSource(s StateSource) Option {
	return func(d *Debugger) { d.state = s }
}

// WithClock injects the time source.
func WithClock(c clock) Option {
	return func(d *Debugger) { d.clock = c }
}

// WithEventLimit overrides DefaultEventLimit.
func WithEventLimit(n int) Option {
	return func(d *Debugger) {
		if n > 0 {
			d.eventLimit = n
		}
	}
}

// Debugger holds references only; it owns no state.
type Debugger struct {
	bus        *bus.Bus
	monitor    *perfmon.Monitor
	state      StateSource
	clock      clock
	eventLimit int
}

// New creates a debugger over b and m.
func New(b *bus.Bus, m *perfmon.Monitor, opts ...Option) *Debugger {
	d := &Debugger{
		bus:        b,
		monitor:    m,
		clock:      realClock{},
		eventLimit: DefaultEventLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the scheduler snapshot, if a source is configured.
func (d *Debugger) State() (scheduler.Snapshot, bool) {
	if d.state == nil {
		return scheduler.Snapshot{}, false
	}
	return d.state.Snapshot(), true
}

// Events returns up to limit recent events of type t ("" = all).
func (d *Debugger) Events(t bus.Type, limit int) []bus.Event {
	if d.bus == nil {
		return nil
	}
	if limit <= 0 || limit > d.eventLimit {
		limit = d.eventLimit
	}
	return d.bus.History(t, limit)
}

// Export builds a snapshot. window <= 0 covers everything retained.
func (d *Debugger) Export(window time.Duration) Snapshot {
	now := d.clock.Now()
	snap := Snapshot{
		GeneratedAt: now,
		Events:      []bus.Event{},
		ErrorRates:  map[string]perfmon.ErrorRate{},
	}
	if window > 0 {
		snap.Window = window.String()
	}

	for _, ev := range d.Events("", 0) {
		if window > 0 && ev.Timestamp.Before(now.Add(-window)) {
			continue
		}
		snap.Events = append(snap.Events, ev)
	}
	if d.monitor != nil {
		snap.Stats = d.monitor.Stats("", window)
		snap.ErrorRates = d.monitor.ErrorRates(window)
	}
	if st, ok := d.State(); ok {
		snap.Scheduler = &st
	}
	return snap
}

// ExportJSON is Export encoded as indented JSON.
func (d *Debugger) ExportJSON(window time.Duration) ([]byte, error) {
	return json.MarshalIndent(d.Export(window), "", "  ")
}

// Dump writes a console-formatted view of a full snapshot.
func (d *Debugger) Dump(w io.Writer) error {
	snap := d.Export(0)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "PRESENTD DEBUG DUMP\t%s\n", snap.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(tw)

	if s := snap.Scheduler; s != nil {
		fmt.Fprintln(tw, "SCHEDULER")
		fmt.Fprintf(tw, "state\t%s\n", s.State)
		fmt.Fprintf(tw, "current\t%s\n", orDash(s.CurrentSurveyID))
		fmt.Fprintf(tw, "queued\t%d\n", len(s.Queue))
		for _, q := range s.Queue {
			fmt.Fprintf(tw, "  queue\t%s\t%s\t%s\n", q.SurveyID, q.Priority, q.Source)
		}
		fmt.Fprintf(tw, "ledger\t%d\n", len(s.Ledger))
		for _, e := range s.Ledger {
			fmt.Fprintf(tw, "  ledger\t%s\t%s\t%s\n", e.SurveyID, e.LastSource, e.LastPresentedAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintln(tw)
	}

	st := snap.Stats
	fmt.Fprintln(tw, "PERFORMANCE")
	fmt.Fprintln(tw, "count\tok\tfailed\trate\tp50\tp95\tp99\tavg")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f%%\t%s\t%s\t%s\t%s\n",
		st.Count, st.Successes, st.Failures, st.SuccessRate*100, st.P50, st.P95, st.P99, st.Avg)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ERRORS")
	if len(snap.ErrorRates) == 0 {
		fmt.Fprintln(tw, "(none)")
	} else {
		fmt.Fprintln(tw, "bucket\tcount\tshare")
		for _, k := range sortedBuckets(snap.ErrorRates) {
			r := snap.ErrorRates[k]
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", k, r.Count, r.Share*100)
		}
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "EVENTS (%d)\n", len(snap.Events))
	for _, ev := range snap.Events {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			data = []byte(fmt.Sprintf("%q", err.Error()))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			ev.Seq, ev.Timestamp.UTC().Format("15:04:05.000"), ev.Type, ev.Source, data)
	}
	return tw.Flush()
}

// sortedBuckets orders by count, descending, then name.
func sortedBuckets(rates map[string]perfmon.ErrorRate) []string {
	keys := make([]string, 0, len(rates))
	for k := range rates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if rates[keys[i]].Count != rates[keys[j]].Count {
			return rates[keys[i]].Count > rates[keys[j]].Count
		}
		return keys[i] < keys[j]
	})
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
