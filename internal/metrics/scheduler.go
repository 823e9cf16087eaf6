// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SchedulerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presentd_scheduler_queue_depth",
		Help: "Number of presentation requests waiting in the scheduler queue",
	})

	SchedulerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_scheduler_requests_total",
		Help: "Presentation requests handled by the scheduler by source and outcome",
	}, []string{"source", "outcome"}) // outcome=queued|suppressed|rejected|processed|failed|cancelled

	SchedulerLedgerSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presentd_scheduler_ledger_entries",
		Help: "Number of surveys currently tracked in the presentation ledger",
	})

	SchedulerPersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_scheduler_persist_failures_total",
		Help: "Ledger persistence failures by operation",
	}, []string{"op"}) // op=load|save

	GateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_gate_decisions_total",
		Help: "Lightweight gate decisions by source and result",
	}, []string{"source", "result"})
)

// RecordSchedulerRequest increments the per-source outcome counter.
func RecordSchedulerRequest(source, outcome string) {
	if source == "" {
		source = "unknown"
	}
	SchedulerRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// SetSchedulerQueueDepth publishes the current queue length.
func SetSchedulerQueueDepth(n int) {
	SchedulerQueueDepth.Set(float64(n))
}

// SetSchedulerLedgerSize publishes the current ledger size.
func SetSchedulerLedgerSize(n int) {
	SchedulerLedgerSize.Set(float64(n))
}

// IncSchedulerPersistFailure records a failed ledger load or save.
func IncSchedulerPersistFailure(op string) {
	SchedulerPersistFailuresTotal.WithLabelValues(op).Inc()
}

// RecordGateDecision records an allow/deny decision of the lightweight gate.
func RecordGateDecision(source string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	GateDecisionsTotal.WithLabelValues(source, result).Inc()
}
