// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldAttemptID = "attempt_id"
	FieldSurveyID  = "survey_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStrategy  = "strategy"

	// Scheduling fields
	FieldSource     = "source"
	FieldPriority   = "priority"
	FieldQueueLen   = "queue_len"
	FieldAttempt    = "attempt"
	FieldDelay      = "delay"
	FieldStoreKey   = "store_key"
	FieldBackend    = "backend"
	FieldSuppressed = "suppressed"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
