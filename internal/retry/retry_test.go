// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestPolicy_DelayGrowthAndCap(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(60))
}

func TestPolicy_JitterStaysWithinTenPercent(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: 0.1}
	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		d := p.Jittered(2, rnd)
		require.GreaterOrEqual(t, d, 1800*time.Millisecond)
		require.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestPolicy_JitterFlooredAtZero(t *testing.T) {
	p := Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 1, Jitter: 5}
	rnd := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		require.GreaterOrEqual(t, p.Jittered(1, rnd), time.Duration(0))
	}
}

func TestDo_BackoffGrowthAndAttemptCap(t *testing.T) {
	rec := &recordedSleep{}
	e := New(Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: 0.1},
		WithSleep(rec.sleep), WithRand(rand.New(rand.NewPCG(7, 7))))

	var attempts int
	var retried []int
	boom := errors.New("network: offline")
	err := e.Do(context.Background(), func(context.Context) error {
		attempts++
		return boom
	}, Hooks{OnRetry: func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }})

	require.ErrorIs(t, err, boom)
	require.Equal(t, boom, err, "exhaustion surfaces the last error unchanged")
	require.Equal(t, 3, attempts, "a 4th attempt never occurs")
	require.Equal(t, []int{1, 2}, retried)
	require.Len(t, rec.delays, 2)
	assert.InDelta(t, float64(time.Second), float64(rec.delays[0]), float64(100*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(rec.delays[1]), float64(200*time.Millisecond))
}

type validationErr struct{}

func (validationErr) Error() string { return "invalid survey id" }

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	rec := &recordedSleep{}
	e := New(DefaultPolicy(), WithSleep(rec.sleep))

	var attempts int
	err := e.Do(context.Background(), func(context.Context) error {
		attempts++
		return validationErr{}
	}, Hooks{IsRetryable: func(err error) bool {
		var v validationErr
		return !errors.As(err, &v)
	}})

	require.ErrorAs(t, err, new(validationErr))
	require.Equal(t, 1, attempts)
	require.Empty(t, rec.delays, "no backoff wait for terminal errors")
}

func TestExecute_ReturnsValueAfterTransientFailure(t *testing.T) {
	rec := &recordedSleep{}
	e := New(DefaultPolicy(), WithSleep(rec.sleep))

	calls := 0
	got, err := Execute(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("fetch failed")
		}
		return "ok", nil
	}, Hooks{})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Len(t, rec.delays, 1)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("player: iframe timeout")
	e := New(Policy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2},
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	err := e.Do(ctx, func(context.Context) error { return boom }, Hooks{})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, boom)
}

func TestDo_RealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	e := New(Policy{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2})

	start := time.Now()
	err := e.Do(ctx, func(context.Context) error { return errors.New("tag: script load") }, Hooks{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}
