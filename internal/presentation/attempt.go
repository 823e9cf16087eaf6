// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package presentation

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/presentd/internal/bus"
	"github.com/ManuGH/presentd/internal/fsm"
	"github.com/ManuGH/presentd/internal/metrics"
)

// Stage is the state of one presentation attempt.
type Stage string

const (
	StagePreparing       Stage = "preparing"
	StageBackgroundReady Stage = "background-ready"
	StagePlayerReady     Stage = "player-ready"
	StageTagReady        Stage = "tag-ready"
	StagePresented       Stage = "presented"
	StageFailed          Stage = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StagePresented || s == StageFailed
}

// attempt is the context carried through the attempt machine.
type attempt struct {
	ID       string
	SurveyID string
	Source   string
	Started  time.Time
	Step     string
	Err      error
}

var attemptDefinition = fsm.Definition[Stage, *attempt]{
	Initial: StagePreparing,
	States: map[Stage]fsm.State[*attempt]{
		StagePreparing:       {},
		StageBackgroundReady: {},
		StagePlayerReady:     {},
		StageTagReady:        {},
		StagePresented:       {},
		StageFailed:          {},
	},
	Transitions: []fsm.Transition[Stage, *attempt]{
		{From: StagePreparing, To: StageBackgroundReady},
		{From: StageBackgroundReady, To: StagePlayerReady},
		{From: StagePlayerReady, To: StageTagReady},
		{From: StageTagReady, To: StagePresented},

		{From: StagePreparing, To: StageFailed},
		{From: StageBackgroundReady, To: StageFailed},
		{From: StagePlayerReady, To: StageFailed},
		{From: StageTagReady, To: StageFailed},
	},
}

// newAttemptMachine builds the per-attempt machine. Every transition is
// published as presentation:state and counted.
func newAttemptMachine(a *attempt, b *bus.Bus, logger zerolog.Logger) *fsm.Machine[Stage, *attempt] {
	return fsm.MustNew(attemptDefinition,
		fsm.WithHistorySize[Stage, *attempt](8),
		fsm.WithLogger[Stage, *attempt](logger),
		fsm.WithObserver[Stage, *attempt](func(from, to Stage) {
			metrics.RecordPresentationTransition(string(from), string(to))
			if b != nil {
				b.Emit(eventSource, bus.StateChanged{
					SurveyID:  a.SurveyID,
					AttemptID: a.ID,
					From:      string(from),
					To:        string(to),
				})
			}
		}),
	)
}
