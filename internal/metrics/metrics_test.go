// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/presentd/internal/metrics"
)

func TestPromhttpExposure(t *testing.T) {
	metrics.SetSchedulerQueueDepth(3)
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "presentd_scheduler_queue_depth 3")
}

func TestRecordSchedulerRequest(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantLabel string
	}{
		{name: "named source", source: "manual", wantLabel: "manual"},
		{name: "empty source", source: "", wantLabel: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := metrics.SchedulerRequestsTotal.WithLabelValues(tt.wantLabel, "queued")
			before := testutil.ToFloat64(c)
			metrics.RecordSchedulerRequest(tt.source, "queued")
			assert.Equal(t, before+1, testutil.ToFloat64(c))
		})
	}
}

func TestRecordGateDecision(t *testing.T) {
	allowed := metrics.GateDecisionsTotal.WithLabelValues("auto", "allowed")
	denied := metrics.GateDecisionsTotal.WithLabelValues("auto", "denied")
	a0, d0 := testutil.ToFloat64(allowed), testutil.ToFloat64(denied)

	metrics.RecordGateDecision("auto", true)
	metrics.RecordGateDecision("auto", false)
	metrics.RecordGateDecision("auto", false)

	assert.Equal(t, a0+1, testutil.ToFloat64(allowed))
	assert.Equal(t, d0+2, testutil.ToFloat64(denied))
}

func TestRetryStrategyDefaultsLabel(t *testing.T) {
	c := metrics.RetryAttemptsTotal.WithLabelValues("default", "retry")
	before := testutil.ToFloat64(c)
	metrics.RecordRetryAttempt("", "retry")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestBusCounters(t *testing.T) {
	c := metrics.BusEventsTotal.WithLabelValues("unknown")
	before := testutil.ToFloat64(c)
	metrics.IncBusEvent("")
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	p := metrics.BusHandlerPanicsTotal.WithLabelValues("presentation:failed")
	before = testutil.ToFloat64(p)
	metrics.IncBusHandlerPanic("presentation:failed")
	assert.Equal(t, before+1, testutil.ToFloat64(p))
}

func TestLedgerGauge(t *testing.T) {
	metrics.SetSchedulerLedgerSize(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.SchedulerLedgerSize))
}
