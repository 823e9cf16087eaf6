// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(GateConfig{ManualLockWindow: 10 * time.Second, AutoCooldown: 2 * time.Second, Clock: clk})

	steps := []struct {
		name    string
		advance time.Duration
		survey  string
		source  Source
		want    Decision
	}{
		{name: "empty survey", survey: " ", source: SourceManual, want: Decision{Reason: GateReasonInvalid}},
		{name: "manual opens lock", survey: "s1", source: SourceManual, want: Decision{Allowed: true}},
		{name: "auto blocked by lock", survey: "s2", source: SourceAuto, want: Decision{Reason: GateReasonManualLock}},
		{name: "url param blocked by lock", survey: "s2", source: SourceURLParam, want: Decision{Reason: GateReasonManualLock}},
		{name: "manual repeat within cooldown", survey: "s1", source: SourceManual, want: Decision{Reason: GateReasonCooldown}},
		{name: "manual other survey allowed", survey: "s4", source: SourceManual, want: Decision{Allowed: true}},
		{name: "lock expired", advance: 10 * time.Second, survey: "s2", source: SourceAuto, want: Decision{Allowed: true}},
		{name: "auto cooldown", survey: "s2", source: SourceAuto, want: Decision{Reason: GateReasonCooldown}},
		{name: "url param overrides auto", survey: "s2", source: SourceURLParam, want: Decision{Allowed: true}},
		{name: "behavior cannot override url param", survey: "s2", source: SourceBehavior, want: Decision{Reason: GateReasonCooldown}},
		{name: "other survey unaffected", survey: "s3", source: SourceBehavior, want: Decision{Allowed: true}},
		{name: "cooldown elapsed", advance: 2 * time.Second, survey: "s2", source: SourceBehavior, want: Decision{Allowed: true}},
	}

	for _, st := range steps {
		clk.Advance(st.advance)
		assert.Equal(t, st.want, g.Allow(st.survey, st.source), st.name)
	}
}

func TestGate_Defaults(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(GateConfig{Clock: clk})

	assert.True(t, g.Allow("s1", SourceManual).Allowed)
	assert.Equal(t, clk.Now().Add(10*time.Second), g.LockedUntil())

	clk.Advance(10 * time.Second)
	assert.True(t, g.Allow("s1", SourceAuto).Allowed)
	clk.Advance(1999 * time.Millisecond)
	assert.False(t, g.Allow("s1", SourceAuto).Allowed)
}

func TestGate_AgreesWithOverrideMatrix(t *testing.T) {
	sources := []Source{SourceUnknown, SourceAuto, SourceBehavior, SourceURLParam, SourceManual}
	for _, existing := range sources {
		for _, next := range sources {
			t.Run(existing.String()+"_then_"+next.String(), func(t *testing.T) {
				g := NewGate(GateConfig{Clock: newFakeClock()})
				assert.True(t, g.Allow("s1", existing).Allowed)
				assert.Equal(t, CanOverride(next, existing), g.Allow("s1", next).Allowed)
			})
		}
	}
}

func TestGate_ManualRepeatAfterCooldown(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(GateConfig{ManualLockWindow: 10 * time.Second, AutoCooldown: 2 * time.Second, Clock: clk})

	assert.True(t, g.Allow("s1", SourceManual).Allowed)
	first := g.LockedUntil()

	clk.Advance(time.Second)
	assert.Equal(t, Decision{Reason: GateReasonCooldown}, g.Allow("s1", SourceManual))
	assert.Equal(t, first, g.LockedUntil(), "refused manual request must not extend the lock")

	clk.Advance(time.Second)
	assert.True(t, g.Allow("s1", SourceManual).Allowed)
	assert.Equal(t, clk.Now().Add(10*time.Second), g.LockedUntil())
}
