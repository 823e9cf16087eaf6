// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by presentd spans.
const (
	SurveyIDKey  = "presentd.survey_id"
	AttemptIDKey = "presentd.attempt_id"
	SourceKey    = "presentd.source"
	PriorityKey  = "presentd.priority"
	StageKey     = "presentd.stage"
	StrategyKey  = "presentd.strategy"
	SuppressKey  = "presentd.suppressed"
	ReasonKey    = "presentd.reason"

	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PresentationAttributes describes one presentation attempt.
func PresentationAttributes(surveyID, attemptID, source, priority string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SurveyIDKey, surveyID),
		attribute.String(AttemptIDKey, attemptID),
		attribute.String(SourceKey, source),
		attribute.String(PriorityKey, priority),
	}
}

// StageAttributes describes one step of an attempt.
func StageAttributes(stage, strategy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StageKey, stage),
		attribute.String(StrategyKey, strategy),
	}
}

// OutcomeAttributes describes how a request resolved.
func OutcomeAttributes(suppressed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(SuppressKey, suppressed)}
	if reason != "" {
		attrs = append(attrs, attribute.String(ReasonKey, reason))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with the given error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
