// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type temporaryErr struct{ temp bool }

func (e temporaryErr) Error() string   { return "render host busy" }
func (e temporaryErr) Temporary() bool { return e.temp }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", &ValidationError{Field: "surveyId", Reason: "empty"}, KindValidation},
		{"wrapped queue full", fmt.Errorf("enqueue: %w", ErrQueueFull), KindCapacity},
		{"cancelled", ErrCancelled, KindCancelled},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"not found", fmt.Errorf("S9: %w", ErrNotFound), KindNotFound},
		{"circuit", ErrCircuitOpen, KindCircuit},
		{"net.Error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"fetch message", errors.New("Fetch failed: 503"), KindNetwork},
		{"tag message", errors.New("tag: bootstrap script did not load"), KindTag},
		{"player message", errors.New("bridge handshake lost"), KindPlayer},
		{"other", errors.New("something odd"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&ValidationError{Field: "surveyId", Reason: "empty"}))
	assert.False(t, IsRetryable(ErrQueueFull))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("survey S1 not found")))
	assert.False(t, IsRetryable(errors.New("invalid payload")))
	assert.False(t, IsRetryable(temporaryErr{temp: false}))
	assert.True(t, IsRetryable(temporaryErr{temp: true}))
	assert.True(t, IsRetryable(errors.New("render timeout")))
}

func TestValidationError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("submit: %w", &ValidationError{Field: "surveyId", Reason: "must not be empty"})
	assert.ErrorIs(t, err, ErrValidation)
	var v *ValidationError
	assert.ErrorAs(t, err, &v)
	assert.Equal(t, "surveyId", v.Field)
	assert.Equal(t, "invalid surveyId: must not be empty", v.Error())
}

func TestClassify_KeywordsMatchWholeWords(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"stage failed", KindUnknown},
		{"description missing", KindUnknown},
		{"redial scheduled", KindUnknown},
		{"invalidated cache entry", KindUnknown},
		{"tags did not load", KindTag},
		{"two iframes detached", KindPlayer},
		{"Connection reset", KindNetwork},
		{"unexpected EOF", KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(errors.New(tt.msg)))
		})
	}

	assert.False(t, TagLoading().Retryable(errors.New("stage failed")))
	assert.True(t, IsRetryable(errors.New("invalidated cache entry")))
}
