// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package debugger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/perfmon"
	"github.com/ManuGH/presentd/internal/scheduler"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticState scheduler.Snapshot

func (s staticState) Snapshot() scheduler.Snapshot { return scheduler.Snapshot(s) }

var epoch = time.Unix(1700000000, 0).UTC()

// fixture builds a debugger over three recorded events: a queued request,
// one presented attempt of 250ms and one failed attempt of 1s.
func fixture(t *testing.T, opts ...Option) (*Debugger, *bus.Bus) {
	t.Helper()
	clk := fixedClock{t: epoch}
	b := bus.New(bus.WithClock(clk))
	mon := perfmon.New(b, perfmon.WithClock(clk))
	t.Cleanup(mon.Close)

	b.Emit("scheduler", bus.Queued{SurveyID: "s2", RequestID: "r2", Source: "url_param", Priority: "auto", QueueLength: 1})
	b.Emit("presentation", bus.Presented{SurveyID: "s1", AttemptID: "a1", Duration: 250 * time.Millisecond})
	b.Emit("presentation", bus.Failed{SurveyID: "s1", AttemptID: "a2", Stage: "tag", Error: "tag: bootstrap failed", Duration: time.Second})

	return New(b, mon, append([]Option{WithClock(clk)}, opts...)...), b
}

func testState() StateSource {
	return staticState{
		State: scheduler.StateIdle,
		Queue: []scheduler.Request{{SurveyID: "s2", Priority: scheduler.PriorityAuto, Source: scheduler.SourceURLParam}},
		Ledger: []scheduler.LedgerEntry{
			{SurveyID: "s1", LastPresentedAt: epoch.Add(-time.Second), LastSource: scheduler.SourceManual},
		},
	}
}

func TestDumpGolden(t *testing.T) {
	d, _ := fixture(t, WithStateSource(testState()))

	var buf bytes.Buffer
	require.NoError(t, d.Dump(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump", buf.Bytes())
}

func TestExport(t *testing.T) {
	d, _ := fixture(t, WithStateSource(testState()))

	snap := d.Export(0)
	assert.Equal(t, epoch, snap.GeneratedAt)
	assert.Empty(t, snap.Window)
	require.Len(t, snap.Events, 3)
	assert.Equal(t, 2, snap.Stats.Count)
	assert.Equal(t, 625*time.Millisecond, snap.Stats.Avg)
	assert.Equal(t, map[string]perfmon.ErrorRate{"tag": {Count: 1, Share: 1}}, snap.ErrorRates)
	require.NotNil(t, snap.Scheduler)
	assert.Equal(t, scheduler.StateIdle, snap.Scheduler.State)
}

func TestExportWithoutState(t *testing.T) {
	d, _ := fixture(t)

	snap := d.Export(time.Minute)
	assert.Nil(t, snap.Scheduler)
	assert.Equal(t, "1m0s", snap.Window)

	_, ok := d.State()
	assert.False(t, ok)
}

func TestExportJSON(t *testing.T) {
	d, _ := fixture(t, WithStateSource(testState()))

	data, err := d.ExportJSON(0)
	require.NoError(t, err)

	var doc struct {
		Events []struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"events"`
		Scheduler struct {
			State  string `json:"state"`
			Ledger []struct {
				SurveyID   string `json:"surveyId"`
				LastSource string `json:"lastSource"`
			} `json:"ledger"`
		} `json:"scheduler"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Events, 3)
	assert.JSONEq(t, `{"surveyId":"s1","attemptId":"a1","duration":250000000}`, string(doc.Events[1].Data))
	assert.Equal(t, "IDLE", doc.Scheduler.State)
	require.Len(t, doc.Scheduler.Ledger, 1)
	assert.Equal(t, "manual", doc.Scheduler.Ledger[0].LastSource)
}

func TestEventLimit(t *testing.T) {
	d, _ := fixture(t, WithEventLimit(2))

	events := d.Events("", 0)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[0].Seq)

	assert.Len(t, d.Events("", 10), 2)
	assert.Len(t, d.Events(bus.TypePresentationFailed, 0), 1)
}

func TestDumpWithoutData(t *testing.T) {
	d := New(nil, nil, WithClock(fixedClock{t: epoch}))

	var buf bytes.Buffer
	require.NoError(t, d.Dump(&buf))
	assert.Contains(t, buf.String(), "(none)")
	assert.Contains(t, buf.String(), "EVENTS (0)")
	assert.NotContains(t, buf.String(), "SCHEDULER")
}

func TestHandler(t *testing.T) {
	d, _ := fixture(t, WithStateSource(testState()))
	h := d.Handler()

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("state", func(t *testing.T) {
		rec := get("/state")
		require.Equal(t, http.StatusOK, rec.Code)
		var st struct {
			State string `json:"state"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		assert.Equal(t, "IDLE", st.State)
	})

	t.Run("events filtered", func(t *testing.T) {
		rec := get("/events?type=presentation:presented&limit=5")
		require.Equal(t, http.StatusOK, rec.Code)
		var events []struct {
			Seq    uint64 `json:"seq"`
			Type   string `json:"type"`
			Source string `json:"source"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
		want := []struct {
			Seq    uint64 `json:"seq"`
			Type   string `json:"type"`
			Source string `json:"source"`
		}{{Seq: 2, Type: "presentation:presented", Source: "presentation"}}
		if diff := cmp.Diff(want, events); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("events unknown type", func(t *testing.T) {
		rec := get("/events?type=nope")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("bad limit", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get("/events?limit=x").Code)
	})

	t.Run("export window", func(t *testing.T) {
		rec := get("/export?window=30s")
		require.Equal(t, http.StatusOK, rec.Code)
		var snap struct {
			Window string `json:"window"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, "30s", snap.Window)
	})

	t.Run("bad window", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get("/export?window=soon").Code)
	})

	t.Run("dump", func(t *testing.T) {
		rec := get("/dump")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "PRESENTD DEBUG DUMP")
	})
}

func TestStateWithoutSource(t *testing.T) {
	d, _ := fixture(t)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
