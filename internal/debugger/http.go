// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package debugger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/presentd/internal/bus"
)

// Handler exposes the debugger read-only under the mount point:
//
//	GET /state
//	GET /export?window=30s
//	GET /events?type=scheduler:queued&limit=20
//	GET /dump
func (d *Debugger) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/state", d.handleState)
	r.Get("/export", d.handleExport)
	r.Get("/events", d.handleEvents)
	r.Get("/dump", d.handleDump)
	return r
}

func (d *Debugger) handleState(w http.ResponseWriter, _ *http.Request) {
	st, ok := d.State()
	if !ok {
		writeError(w, http.StatusNotFound, "no scheduler attached")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (d *Debugger) handleExport(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = v
	}
	writeJSON(w, http.StatusOK, d.Export(window))
}

func (d *Debugger) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	events := d.Events(bus.Type(q.Get("type")), limit)
	if events == nil {
		events = []bus.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (d *Debugger) handleDump(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = d.Dump(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
