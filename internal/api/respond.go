// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/presentd/internal/recovery"
	"github.com/ManuGH/presentd/internal/scheduler"
)

// errorBody is every non-2xx JSON response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a presentation error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, recovery.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, recovery.ErrQueueFull):
		return http.StatusTooManyRequests, "queue_full"
	case errors.Is(err, recovery.ErrCancelled), errors.Is(err, context.Canceled):
		return http.StatusConflict, "cancelled"
	case errors.Is(err, scheduler.ErrClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "presentation_failed"
	}
}
