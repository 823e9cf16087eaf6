// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	// ErrValidation classifies malformed input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrQueueFull is the scheduler's capacity error. Not retried.
	ErrQueueFull = errors.New("presentation queue full")
	// ErrCancelled is returned to requests removed from the queue before processing.
	ErrCancelled = errors.New("presentation request cancelled")
	// ErrNotFound reports a survey that does not exist.
	ErrNotFound = errors.New("survey not found")
	// ErrCircuitOpen is returned while a strategy's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ValidationError describes malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Kind is a coarse error class used for metric labels and error buckets.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindCapacity   Kind = "capacity"
	KindCancelled  Kind = "cancelled"
	KindNotFound   Kind = "not_found"
	KindCircuit    Kind = "circuit_open"
	KindNetwork    Kind = "network"
	KindTag        Kind = "tag"
	KindPlayer     Kind = "player"
	KindUnknown    Kind = "unknown"
)

// Classify maps err to a Kind. Typed errors win over message matching.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrQueueFull):
		return KindCapacity
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuit
	case isNetworkError(err):
		return KindNetwork
	case isTagError(err):
		return KindTag
	case isPlayerError(err):
		return KindPlayer
	default:
		return KindUnknown
	}
}

// IsRetryable is the generic classifier shared by every strategy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindValidation, KindCapacity, KindCancelled, KindNotFound, KindCircuit:
		return false
	}
	if isTerminalMessage(err) {
		return false
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	return true
}

var (
	terminalWords = keywordPattern("not found", "invalid")
	networkWords  = keywordPattern("network", "fetch", "connection", "timeout", "eof", "dial")
	tagWords      = keywordPattern("tag", "script", "bootstrap")
	playerWords   = keywordPattern("player", "iframe", "bridge")
)

// keywordPattern matches any of words as whole words, plural allowed, so
// "tag" does not match "stage" and "script" does not match "description".
func keywordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)s?\b`)
}

func isTerminalMessage(err error) bool {
	return terminalWords.MatchString(err.Error())
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return networkWords.MatchString(err.Error())
}

func isTagError(err error) bool {
	return tagWords.MatchString(err.Error())
}

func isPlayerError(err error) bool {
	return playerWords.MatchString(err.Error())
}
