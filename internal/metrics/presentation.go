// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_retry_attempts_total",
		Help: "Retry engine attempts by strategy and outcome",
	}, []string{"strategy", "outcome"}) // outcome=success|retry|terminal|exhausted|canceled

	PresentationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "presentd_presentation_duration_seconds",
		Help:    "Duration of presentation attempts from preparing to a terminal state",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"}) // outcome=presented|failed

	PresentationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_presentation_transitions_total",
		Help: "Presentation attempt state transitions",
	}, []string{"from", "to"})

	ThrottledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_presentation_throttled_total",
		Help: "Automatic presentation requests dropped by the trigger throttle",
	}, []string{"source"})
)

// RecordRetryAttempt increments the retry outcome counter for a strategy.
func RecordRetryAttempt(strategy, outcome string) {
	if strategy == "" {
		strategy = "default"
	}
	RetryAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObservePresentation records the duration of a finished attempt.
func ObservePresentation(outcome string, seconds float64) {
	PresentationDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordPresentationTransition counts an attempt state change.
func RecordPresentationTransition(from, to string) {
	PresentationTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncThrottled records a throttled trigger.
func IncThrottled(source string) {
	ThrottledTotal.WithLabelValues(source).Inc()
}

var PerfmonBufferedMetrics = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "presentd_perfmon_buffered_metrics",
	Help: "Performance samples currently held by the monitor",
})

// SetPerfmonBuffered publishes the monitor buffer size.
func SetPerfmonBuffered(n int) {
	PerfmonBufferedMetrics.Set(float64(n))
}
