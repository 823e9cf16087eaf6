// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import "time"

// Type names an event on the bus.
type Type string

// Well-known event types. The set is closed: every Type has exactly one
// payload struct below.
const (
	TypePresentationPreparing Type = "presentation:preparing"
	TypePresentationState     Type = "presentation:state"
	TypePresentationPresented Type = "presentation:presented"
	TypePresentationFailed    Type = "presentation:failed"

	TypeQueued     Type = "scheduler:queued"
	TypeProcessing Type = "scheduler:processing"
	TypeProcessed  Type = "scheduler:processed"
	TypeRejected   Type = "scheduler:rejected"
	TypeSuppressed Type = "scheduler:suppressed"
	TypeCancelled  Type = "scheduler:cancelled"
	TypeCleared    Type = "scheduler:cleared"
	TypeError      Type = "scheduler:error"

	TypeRetryAttempt Type = "retry:attempt"
)

// Payload is implemented only by the event structs of this package.
type Payload interface {
	Type() Type
	sealed()
}

// Preparing is emitted when a presentation attempt starts.
type Preparing struct {
	SurveyID  string `json:"surveyId"`
	AttemptID string `json:"attemptId"`
	Source    string `json:"source"`
}

// StateChanged is emitted on every presentation attempt state transition.
type StateChanged struct {
	SurveyID  string `json:"surveyId"`
	AttemptID string `json:"attemptId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// Presented is emitted when a survey was shown.
type Presented struct {
	SurveyID  string        `json:"surveyId"`
	AttemptID string        `json:"attemptId"`
	Duration  time.Duration `json:"duration"`
}

// Failed is emitted when a presentation attempt ends in failure.
type Failed struct {
	SurveyID  string        `json:"surveyId"`
	AttemptID string        `json:"attemptId"`
	Stage     string        `json:"stage"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

// Queued is emitted when a request enters the scheduler queue.
type Queued struct {
	SurveyID    string `json:"surveyId"`
	RequestID   string `json:"requestId"`
	Source      string `json:"source"`
	Priority    string `json:"priority"`
	Position    int    `json:"position"`
	QueueLength int    `json:"queueLength"`
}

// Processing is emitted when the scheduler starts authorizing a request.
type Processing struct {
	SurveyID  string `json:"surveyId"`
	RequestID string `json:"requestId"`
	Source    string `json:"source"`
}

// Processed is emitted when the scheduler has finished with a request.
type Processed struct {
	SurveyID  string        `json:"surveyId"`
	RequestID string        `json:"requestId"`
	Source    string        `json:"source"`
	Success   bool          `json:"success"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Rejected is emitted when a request is refused before queueing.
type Rejected struct {
	SurveyID string `json:"surveyId"`
	Source   string `json:"source"`
	Reason   string `json:"reason"`
}

// Suppressed is emitted when a request is dropped as a duplicate.
type Suppressed struct {
	SurveyID       string `json:"surveyId"`
	Source         string `json:"source"`
	RecordedSource string `json:"recordedSource"`
	Reason         string `json:"reason"`
}

// Cancelled is emitted for every queued request removed by a cancel.
type Cancelled struct {
	SurveyID  string `json:"surveyId"`
	RequestID string `json:"requestId"`
}

// Cleared is emitted when the whole queue is dropped.
type Cleared struct {
	Count int `json:"count"`
}

// Error is emitted when processing a request failed.
type Error struct {
	SurveyID  string `json:"surveyId"`
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
}

// RetryAttempt is emitted before a retry backoff wait.
type RetryAttempt struct {
	Strategy string        `json:"strategy"`
	SurveyID string        `json:"surveyId"`
	Attempt  int           `json:"attempt"`
	Delay    time.Duration `json:"delay"`
	Error    string        `json:"error"`
}

func (Preparing) Type() Type    { return TypePresentationPreparing }
func (StateChanged) Type() Type { return TypePresentationState }
func (Presented) Type() Type    { return TypePresentationPresented }
func (Failed) Type() Type       { return TypePresentationFailed }
func (Queued) Type() Type       { return TypeQueued }
func (Processing) Type() Type   { return TypeProcessing }
func (Processed) Type() Type    { return TypeProcessed }
func (Rejected) Type() Type     { return TypeRejected }
func (Suppressed) Type() Type   { return TypeSuppressed }
func (Cancelled) Type() Type    { return TypeCancelled }
func (Cleared) Type() Type      { return TypeCleared }
func (Error) Type() Type        { return TypeError }
func (RetryAttempt) Type() Type { return TypeRetryAttempt }

func (Preparing) sealed()    {}
func (StateChanged) sealed() {}
func (Presented) sealed()    {}
func (Failed) sealed()       {}
func (Queued) sealed()       {}
func (Processing) sealed()   {}
func (Processed) sealed()    {}
func (Rejected) sealed()     {}
func (Suppressed) sealed()   {}
func (Cancelled) sealed()    {}
func (Cleared) sealed()      {}
func (Error) sealed()        {}
func (RetryAttempt) sealed() {}
