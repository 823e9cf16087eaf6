// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/presentd/internal/recovery"
)

// Priority is the scheduling class of a request. The zero value is PriorityAuto.
type Priority int

const (
	PriorityAuto Priority = iota
	PriorityManual
)

func (p Priority) String() string {
	if p == PriorityManual {
		return "manual"
	}
	return "auto"
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePriority parses "manual" or "auto". An empty string means auto.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PriorityAuto, nil
	case "manual":
		return PriorityManual, nil
	default:
		return PriorityAuto, &recovery.ValidationError{Field: "priority", Reason: "must be manual or auto"}
	}
}

// Source is the logical origin of a request, used by the override rules.
type Source int

const (
	SourceUnknown Source = iota
	SourceManual
	SourceAuto
	SourceURLParam
	SourceBehavior
)

var sourceNames = map[Source]string{
	SourceUnknown:  "unknown",
	SourceManual:   "manual",
	SourceAuto:     "auto",
	SourceURLParam: "url_param",
	SourceBehavior: "behavior",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSource maps a wire name to a Source. Unrecognised names yield SourceUnknown.
func ParseSource(name string) Source {
	name = strings.ToLower(strings.TrimSpace(name))
	for src, n := range sourceNames {
		if n == name {
			return src
		}
	}
	return SourceUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *Source) UnmarshalText(b []byte) error {
	*s = ParseSource(string(b))
	return nil
}

// Options carry the caller's scheduling intent.
type Options struct {
	Priority       Priority `json:"priority"`
	Source         Source   `json:"source"`
	Force          bool     `json:"force"`
	AllowDuplicate bool     `json:"allowDuplicate"`
}

func (o Options) bypassDedup() bool {
	return o.Force || o.AllowDuplicate
}

// Request is one queued presentation request.
type Request struct {
	ID         uuid.UUID `json:"id"`
	SurveyID   string    `json:"surveyId"`
	Priority   Priority  `json:"priority"`
	Source     Source    `json:"source"`
	Options    Options   `json:"options"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// LedgerEntry records the last authorized presentation of a survey.
type LedgerEntry struct {
	SurveyID        string    `json:"surveyId"`
	LastPresentedAt time.Time `json:"lastPresentedAt"`
	LastSource      Source    `json:"lastSource"`
}

// Outcome is the resolution of a request that did not fail.
type Outcome struct {
	SurveyID   string  `json:"surveyId"`
	Source     Source  `json:"source"`
	Options    Options `json:"options"`
	Suppressed bool    `json:"suppressed"`
	Reason     string  `json:"reason,omitempty"`
}

// Suppression reasons.
const (
	ReasonDuplicate  = "duplicate"
	ReasonSuperseded = "superseded"
)

// State of the scheduler loop.
type State string

const (
	StateIdle       State = "IDLE"
	StateProcessing State = "PROCESSING"
)

// Snapshot is a point-in-time copy of the scheduler's bookkeeping.
type Snapshot struct {
	State           State         `json:"state"`
	CurrentSurveyID string        `json:"currentSurveyId,omitempty"`
	Queue           []Request     `json:"queue"`
	Ledger          []LedgerEntry `json:"ledger"`
}
