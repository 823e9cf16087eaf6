// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigure_AttachesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "presentd-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("scheduler")
	l.Info().Str(FieldEvent, "test.event").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "presentd-test", entry["service"])
	require.Equal(t, "v0.0.1", entry["version"])
	require.Equal(t, "scheduler", entry[FieldComponent])
	require.Equal(t, "test.event", entry[FieldEvent])
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSurveyID(ctx, "S1")
	ctx = ContextWithAttemptID(ctx, "att-9")

	l := WithComponentFromContext(ctx, "presenter")
	l.Info().Msg("attempt")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "req-1", entry[FieldRequestID])
	require.Equal(t, "S1", entry[FieldSurveyID])
	require.Equal(t, "att-9", entry[FieldAttemptID])
}

func TestContextAccessors(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{name: "nil context", ctx: nil, want: ""},
		{name: "empty context", ctx: context.Background(), want: ""},
		{name: "populated", ctx: ContextWithSurveyID(nil, "survey-42"), want: "survey-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SurveyIDFromContext(tt.ctx))
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	require.NoError(t, SetLevel("warn"))
	l := WithComponent("config")
	l.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	require.Error(t, SetLevel("loud"))
	l.Warn().Msg("kept")
	require.NotZero(t, buf.Len())
}
