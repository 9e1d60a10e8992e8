package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("upstream hiccup")

// fastConfig keeps test backoffs short and deterministic.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	inner := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return NonRetryable(inner)
	})

	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, 1, attempts)

	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(errFlaky))
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoBackoffSchedule(t *testing.T) {
	start := time.Now()
	attempts := 0
	_ = Do(context.Background(), fastConfig(4), func() error {
		attempts++
		return errFlaky
	})
	elapsed := time.Since(start)

	// Waits of 10ms, 20ms, and 40ms separate the four attempts.
	assert.Equal(t, 4, attempts)
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestDoCapsDelayAtMax(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error { return errFlaky })
	elapsed := time.Since(start)

	// 10ms, then two waits capped at 25ms.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestDoRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{InitialDelay: -time.Second}},
		{"negative max delay", Config{MaxDelay: -time.Second}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			err := Do(context.Background(), tt.cfg, func() error {
				ran = true
				return nil
			})
			require.Error(t, err)
			assert.False(t, ran, "invalid config must not run the operation")
		})
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	value, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errFlaky
		}
		return "ready", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", value)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResultZeroValueOnFailure(t *testing.T) {
	value, err := DoWithResult(context.Background(), fastConfig(2), func() (int, error) {
		return 42, errFlaky
	})

	require.Error(t, err)
	assert.Zero(t, value)
}

func TestOnRetryObservesSchedule(t *testing.T) {
	type event struct {
		attempt int
		delay   time.Duration
	}
	var events []event

	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		assert.ErrorIs(t, err, errFlaky)
		events = append(events, event{attempt, delay})
	}

	_ = Do(context.Background(), cfg, func() error { return errFlaky })

	// One event per backoff wait, none after the final attempt.
	require.Len(t, events, 2)
	assert.Equal(t, event{1, 10 * time.Millisecond}, events[0])
	assert.Equal(t, event{2, 20 * time.Millisecond}, events[1])
}

func TestWithJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for range 50 {
		stretched := withJitter(base, true)
		assert.GreaterOrEqual(t, stretched, base)
		assert.Less(t, stretched, base+base/4)
	}

	assert.Equal(t, base, withJitter(base, false))
	assert.Equal(t, time.Duration(3), withJitter(3, true))
}

func TestPresets(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, def.InitialDelay)
	assert.Equal(t, 5*time.Second, def.MaxDelay)
	assert.Equal(t, 2.0, def.Multiplier)
	assert.True(t, def.AddJitter)

	quick := Quick()
	assert.Equal(t, 10, quick.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, quick.InitialDelay)
	assert.Equal(t, time.Second, quick.MaxDelay)

	persistent := Persistent()
	assert.Equal(t, 30, persistent.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, persistent.InitialDelay)
	assert.Equal(t, 10*time.Second, persistent.MaxDelay)
}

func BenchmarkDoImmediateSuccess(b *testing.B) {
	cfg := Config{MaxAttempts: 1}
	for i := 0; i < b.N; i++ {
		_ = Do(context.Background(), cfg, func() error { return nil })
	}
}

func ExampleDo() {
	cfg := DefaultConfig()

	err := Do(context.Background(), cfg, func() error {
		return pingEndpoint()
	})
	_ = err
}

func pingEndpoint() error {
	return nil
}
