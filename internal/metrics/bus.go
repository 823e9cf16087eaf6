// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_bus_events_total",
		Help: "Total number of events emitted on the in-process event bus",
	}, []string{"type"})

	BusHandlerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentd_bus_handler_panics_total",
		Help: "Total number of event handlers that panicked during dispatch",
	}, []string{"type"})
)

// IncBusEvent records an emitted bus event.
func IncBusEvent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	BusEventsTotal.WithLabelValues(eventType).Inc()
}

// IncBusHandlerPanic records a recovered subscriber panic.
func IncBusHandlerPanic(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	BusHandlerPanicsTotal.WithLabelValues(eventType).Inc()
}
