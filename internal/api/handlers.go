// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/presentd/internal/log"
	"github.com/ManuGH/presentd/internal/presentation"
	"github.com/ManuGH/presentd/internal/recovery"
	"github.com/ManuGH/presentd/internal/scheduler"
)

const (
	maxBodyBytes       = 16 << 10
	healthCheckTimeout = 2 * time.Second
)

// PresentRequest is the body of POST /api/v1/present.
type PresentRequest struct {
	SurveyID       string `json:"surveyId"`
	Source         string `json:"source"`
	Priority       string `json:"priority"`
	Force          bool   `json:"force"`
	AllowDuplicate bool   `json:"allowDuplicate"`
}

// GateRequest is the body of POST /api/v1/gate.
type GateRequest struct {
	SurveyID string `json:"surveyId"`
	Source   string `json:"source"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &recovery.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code, name := statusFor(err)
	writeJSON(w, code, errorBody{
		Error:     name,
		Detail:    err.Error(),
		Kind:      string(recovery.Classify(err)),
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) handlePresent(w http.ResponseWriter, r *http.Request) {
	var req PresentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	prio, err := scheduler.ParsePriority(req.Priority)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	ctx := log.ContextWithSurveyID(r.Context(), req.SurveyID)
	res, err := s.deps.Presenter.Present(ctx, req.SurveyID, presentation.Meta{
		Source:         scheduler.ParseSource(req.Source),
		Priority:       prio,
		Force:          req.Force,
		AllowDuplicate: req.AllowDuplicate,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if res.Suppressed {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	var req GateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Gate.Allow(req.SurveyID, scheduler.ParseSource(req.Source)))
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Queue.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")
	n := s.deps.Queue.Cancel(surveyID)
	log.WithComponentFromContext(r.Context(), "api").Info().
		Str(log.FieldEvent, "queue.cancel").
		Str(log.FieldSurveyID, surveyID).
		Int("count", n).
		Msg("queued requests cancelled")
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n := s.deps.Queue.Clear()
	log.WithComponentFromContext(r.Context(), "api").Info().
		Str(log.FieldEvent, "queue.clear").
		Int("count", n).
		Msg("queue cleared")
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	State   scheduler.State   `json:"state,omitempty"`
	Queue   int               `json:"queue"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: s.cfg.Version}
	if s.deps.Queue != nil {
		snap := s.deps.Queue.Snapshot()
		resp.State, resp.Queue = snap.State, len(snap.Queue)
	}

	names := make([]string, 0, len(s.deps.Health))
	for name := range s.deps.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	code := http.StatusOK
	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.deps.Health[name](ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}
