// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct {
	steps []string
}

func abcDefinition(tr *trace) Definition[string, *trace] {
	hooks := func(name string) State[*trace] {
		return State[*trace]{
			OnEnter: func(t *trace) { t.steps = append(t.steps, "enter:"+name) },
			OnExit:  func(t *trace) { t.steps = append(t.steps, "exit:"+name) },
		}
	}
	return Definition[string, *trace]{
		Initial: "A",
		States:  map[string]State[*trace]{"A": hooks("A"), "B": hooks("B"), "C": hooks("C")},
		Transitions: []Transition[string, *trace]{
			{From: "A", To: "B", Action: func(t *trace) { t.steps = append(t.steps, "action:A->B") }},
			{From: "B", To: "C"},
		},
	}
}

func newMachine(t *testing.T, def Definition[string, *trace], opts ...Option[string, *trace]) *Machine[string, *trace] {
	t.Helper()
	opts = append([]Option[string, *trace]{WithLogger[string, *trace](zerolog.Nop())}, opts...)
	m, err := New(def, opts...)
	require.NoError(t, err)
	return m
}

func TestTransition_UndefinedEdgeIsNoop(t *testing.T) {
	tr := &trace{}
	m := newMachine(t, abcDefinition(tr))

	require.False(t, m.CanTransition("C", tr))
	require.False(t, m.Transition("C", tr))
	require.Equal(t, "A", m.Current())
	require.Empty(t, tr.steps)
	require.Empty(t, m.History())
}

func TestTransition_HookOrder(t *testing.T) {
	tr := &trace{}
	m := newMachine(t, abcDefinition(tr))

	require.True(t, m.Transition("B", tr))
	require.Equal(t, []string{"exit:A", "action:A->B", "enter:B"}, tr.steps)

	hist := m.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "A", hist[0].From)
	assert.Equal(t, "B", hist[0].To)
}

func TestTransition_GuardMustReturnTrue(t *testing.T) {
	allow := false
	def := Definition[string, *trace]{
		Initial: "A",
		States:  map[string]State[*trace]{"A": {}, "B": {}},
		Transitions: []Transition[string, *trace]{
			{From: "A", To: "B", Guard: func(*trace) bool { return allow }},
		},
	}
	m := newMachine(t, def)

	require.False(t, m.Transition("B", &trace{}))
	allow = true
	require.True(t, m.Transition("B", &trace{}))
}

func TestTransition_GuardPanicMeansNotAllowed(t *testing.T) {
	def := Definition[string, *trace]{
		Initial: "A",
		States:  map[string]State[*trace]{"A": {}, "B": {}},
		Transitions: []Transition[string, *trace]{
			{From: "A", To: "B", Guard: func(*trace) bool { panic("guard exploded") }},
		},
	}
	m := newMachine(t, def)
	require.NotPanics(t, func() { require.False(t, m.CanTransition("B", &trace{})) })
	require.False(t, m.Transition("B", &trace{}))
	require.Equal(t, "A", m.Current())
}

func TestTransition_HookPanicDoesNotAbortCommit(t *testing.T) {
	def := Definition[string, *trace]{
		Initial: "A",
		States: map[string]State[*trace]{
			"A": {OnExit: func(*trace) { panic("exit") }},
			"B": {OnEnter: func(*trace) { panic("enter") }},
		},
		Transitions: []Transition[string, *trace]{
			{From: "A", To: "B", Action: func(*trace) { panic("action") }},
		},
	}
	m := newMachine(t, def)
	require.True(t, m.Transition("B", &trace{}))
	require.Equal(t, "B", m.Current())
	require.Len(t, m.History(), 1)
}

func TestReset_BypassesGuardsAndRunsHooks(t *testing.T) {
	tr := &trace{}
	m := newMachine(t, abcDefinition(tr))
	require.True(t, m.Transition("B", tr))
	require.True(t, m.Transition("C", tr))
	tr.steps = nil

	m.Reset(tr)
	require.Equal(t, "A", m.Current())
	require.Equal(t, []string{"exit:C", "enter:A"}, tr.steps)

	hist := m.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "C", hist[2].From)
	assert.Equal(t, "A", hist[2].To)
}

func TestHistory_BoundedFIFO(t *testing.T) {
	def := Definition[string, *trace]{
		Initial: "A",
		States:  map[string]State[*trace]{"A": {}, "B": {}},
		Transitions: []Transition[string, *trace]{
			{From: "A", To: "B"},
			{From: "B", To: "A"},
		},
	}
	m := newMachine(t, def, WithHistorySize[string, *trace](3))
	for i := 0; i < 5; i++ {
		target := "B"
		if m.Current() == "B" {
			target = "A"
		}
		require.True(t, m.Transition(target, &trace{}))
	}
	hist := m.History()
	require.Len(t, hist, 3)
	// hops: A>B, B>A, A>B, B>A, A>B; the last three remain.
	assert.Equal(t, "A", hist[0].From)
	assert.Equal(t, "B", hist[2].To)
}

func TestObserver_SeesTransitionsAndResets(t *testing.T) {
	var seen []string
	tr := &trace{}
	m := newMachine(t, abcDefinition(tr), WithObserver[string, *trace](func(from, to string) {
		seen = append(seen, from+">"+to)
	}))
	m.Transition("B", tr)
	m.Transition("A", tr) // not declared
	m.Reset(tr)
	require.Equal(t, []string{"A>B", "B>A"}, seen)
}

func TestNew_ValidatesDefinition(t *testing.T) {
	_, err := New(Definition[string, int]{Initial: "A"})
	require.ErrorIs(t, err, ErrEmptyDefinitions)

	_, err = New(Definition[string, int]{Initial: "Z", States: map[string]State[int]{"A": {}}})
	require.ErrorIs(t, err, ErrUnknownInitial)

	_, err = New(Definition[string, int]{
		Initial:     "A",
		States:      map[string]State[int]{"A": {}},
		Transitions: []Transition[string, int]{{From: "A", To: "B"}},
	})
	require.ErrorIs(t, err, ErrUnknownState)

	_, err = New(Definition[string, int]{
		Initial:     "A",
		States:      map[string]State[int]{"A": {}, "B": {}},
		Transitions: []Transition[string, int]{{From: "A", To: "B"}, {From: "A", To: "B"}},
	})
	require.ErrorIs(t, err, ErrDuplicateEdge)
}

func TestAvailable(t *testing.T) {
	tr := &trace{}
	m := newMachine(t, abcDefinition(tr))
	require.Equal(t, []string{"B"}, m.Available())
}
