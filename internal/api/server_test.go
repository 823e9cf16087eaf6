// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/presentation"
	"github.com/ManuGH/presentd/internal/recovery"
	"github.com/ManuGH/presentd/internal/scheduler"
)

type fakePresenter struct {
	mu    sync.Mutex
	calls []presentation.Meta
	res   presentation.Result
	err   error
}

func (f *fakePresenter) Present(_ context.Context, surveyID string, meta presentation.Meta) (presentation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, meta)
	res := f.res
	res.SurveyID = surveyID
	return res, f.err
}

type fakeQueue struct {
	cancelled []string
	cleared   int
}

func (q *fakeQueue) Cancel(surveyID string) int {
	q.cancelled = append(q.cancelled, surveyID)
	return 2
}

func (q *fakeQueue) Clear() int {
	q.cleared++
	return 3
}

func (q *fakeQueue) Snapshot() scheduler.Snapshot {
	return scheduler.Snapshot{State: scheduler.StateProcessing, CurrentSurveyID: "s1", Queue: []scheduler.Request{{SurveyID: "s2"}}}
}

type fakeGate struct{}

func (fakeGate) Allow(surveyID string, source scheduler.Source) scheduler.Decision {
	if source == scheduler.SourceManual {
		return scheduler.Decision{Allowed: true}
	}
	return scheduler.Decision{Reason: scheduler.GateReasonManualLock}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPresentStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		res      presentation.Result
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "presented", res: presentation.Result{AttemptID: "a1"}, wantCode: http.StatusOK},
		{name: "suppressed", res: presentation.Result{Suppressed: true, Reason: scheduler.ReasonDuplicate}, wantCode: http.StatusAccepted},
		{name: "validation", err: &recovery.ValidationError{Field: "surveyId", Reason: "must not be empty"}, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "queue full", err: fmt.Errorf("%w: limit 50", recovery.ErrQueueFull), wantCode: http.StatusTooManyRequests, wantErr: "queue_full"},
		{name: "cancelled", err: recovery.ErrCancelled, wantCode: http.StatusConflict, wantErr: "cancelled"},
		{name: "closed", err: scheduler.ErrClosed, wantCode: http.StatusServiceUnavailable, wantErr: "shutting_down"},
		{name: "failed", err: errors.New("tag: bootstrap failed"), wantCode: http.StatusBadGateway, wantErr: "presentation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePresenter{res: tt.res, err: tt.err}
			h := New(Config{}, Deps{Presenter: p, Queue: &fakeQueue{}}).Handler()

			rec := do(t, h, http.MethodPost, "/api/v1/present", `{"surveyId":"s1","source":"auto"}`)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				body := decode[errorBody](t, rec)
				assert.Equal(t, tt.wantErr, body.Error)
				assert.NotEmpty(t, body.RequestID)
				return
			}
			res := decode[presentation.Result](t, rec)
			assert.Equal(t, "s1", res.SurveyID)
			assert.Equal(t, tt.res.Suppressed, res.Suppressed)
		})
	}
}

func TestPresentParsesMeta(t *testing.T) {
	p := &fakePresenter{}
	h := New(Config{}, Deps{Presenter: p, Queue: &fakeQueue{}}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/present",
		`{"surveyId":"s1","source":"url_param","priority":"manual","force":true,"allowDuplicate":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, p.calls, 1)
	assert.Equal(t, presentation.Meta{
		Source:         scheduler.SourceURLParam,
		Priority:       scheduler.PriorityManual,
		Force:          true,
		AllowDuplicate: true,
	}, p.calls[0])
}

func TestPresentRejectsBadInput(t *testing.T) {
	p := &fakePresenter{}
	h := New(Config{}, Deps{Presenter: p, Queue: &fakeQueue{}}).Handler()

	for _, body := range []string{
		`not json`,
		`{"surveyId":"s1","colour":"red"}`,
		`{"surveyId":"s1","priority":"urgent"}`,
	} {
		rec := do(t, h, http.MethodPost, "/api/v1/present", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, p.calls)
}

func TestQueueEndpoints(t *testing.T) {
	q := &fakeQueue{}
	h := New(Config{}, Deps{Presenter: &fakePresenter{}, Queue: q}).Handler()

	rec := do(t, h, http.MethodDelete, "/api/v1/queue/s9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"cancelled": 2}, decode[map[string]int](t, rec))
	assert.Equal(t, []string{"s9"}, q.cancelled)

	rec = do(t, h, http.MethodDelete, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"cleared": 3}, decode[map[string]int](t, rec))

	rec = do(t, h, http.MethodGet, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[scheduler.Snapshot](t, rec)
	assert.Equal(t, scheduler.StateProcessing, snap.State)
	assert.Len(t, snap.Queue, 1)
}

func TestGateEndpoint(t *testing.T) {
	h := New(Config{}, Deps{Presenter: &fakePresenter{}, Queue: &fakeQueue{}, Gate: fakeGate{}}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/gate", `{"surveyId":"s1","source":"behavior"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed":false,"reason":"manual_lock"}`, rec.Body.String())

	noGate := New(Config{}, Deps{Presenter: &fakePresenter{}, Queue: &fakeQueue{}}).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, noGate, http.MethodPost, "/api/v1/gate", `{}`).Code)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := New(Config{Version: "v1"}, Deps{
			Queue:  &fakeQueue{},
			Health: map[string]HealthCheck{"store": func(context.Context) error { return nil }},
		}).Handler()
		rec := do(t, h, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","version":"v1","state":"PROCESSING","queue":1,"checks":{"store":"ok"}}`, rec.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		h := New(Config{}, Deps{
			Health: map[string]HealthCheck{"store": func(context.Context) error { return errors.New("redis down") }},
		}).Handler()
		rec := do(t, h, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode[healthResponse](t, rec)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "redis down", body.Checks["store"])
	})
}

func TestMetricsAndDebugMounts(t *testing.T) {
	debug := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("debug:" + r.URL.Path))
	})
	h := New(Config{EnableMetrics: true}, Deps{Queue: &fakeQueue{}, Debug: debug}).Handler()

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "presentd_")

	rec = do(t, h, http.MethodGet, "/debug/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "debug:/state", rec.Body.String())

	plain := New(Config{}, Deps{Queue: &fakeQueue{}}).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, plain, http.MethodGet, "/metrics", "").Code)
}

// TestPresentEndToEnd drives the real scheduler and presenter: a manual
// presentation followed by an automatic retrigger inside the cooldown.
func TestPresentEndToEnd(t *testing.T) {
	b := bus.New(bus.WithLogger(zerolog.Nop()))
	sched := scheduler.New(scheduler.DefaultConfig(), scheduler.WithBus(b), scheduler.WithLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = sched.Close() })
	p := presentation.New(sched, presentation.NewLogRenderer(), b, presentation.Config{}, presentation.WithLogger(zerolog.Nop()))

	h := New(Config{}, Deps{Presenter: p, Queue: sched}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/present", `{"surveyId":"s1","source":"manual"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[presentation.Result](t, rec)
	assert.False(t, first.Suppressed)
	assert.NotEmpty(t, first.AttemptID)

	rec = do(t, h, http.MethodPost, "/api/v1/present", `{"surveyId":"s1","source":"auto"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	second := decode[presentation.Result](t, rec)
	assert.True(t, second.Suppressed)
	assert.Equal(t, scheduler.ReasonDuplicate, second.Reason)

	assert.NotEmpty(t, b.History(bus.TypePresentationPresented, 0))
}
