// Package retry runs operations under a capped exponential backoff schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// NonRetryableError marks an error that must fail fast regardless of how
// many attempts remain.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err so Do fails immediately instead of backing off.
// A nil err stays nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries the NonRetryable marker
// anywhere in its chain.
func IsNonRetryable(err error) bool {
	var marker *NonRetryableError
	return errors.As(err, &marker)
}

// Config shapes the backoff schedule.
type Config struct {
	// MaxAttempts caps how many times the operation runs. Zero or
	// negative means run once with no retries.
	MaxAttempts int
	// InitialDelay is the wait before the first retry. Each further
	// retry multiplies the previous wait by Multiplier, saturating at
	// MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// AddJitter stretches each wait by up to a quarter of its length
	// so synchronized callers fan out.
	AddJitter bool

	// OnRetry, when set, runs before each backoff sleep with the
	// attempt number that failed, its error, and the upcoming wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is a moderate schedule suitable for most transient faults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick is a tight schedule for startup races where the dependency is
// expected to appear within a second or two.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Persistent is a patient schedule for resources worth waiting on.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// normalized fills unset fields with defaults and rejects nonsense.
func (c Config) normalized() (Config, error) {
	switch {
	case c.InitialDelay < 0:
		return c, errors.New("retry: InitialDelay cannot be negative")
	case c.MaxDelay < 0:
		return c, errors.New("retry: MaxDelay cannot be negative")
	case c.Multiplier < 0:
		return c, errors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	if c.MaxDelay < c.InitialDelay {
		return c, errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return c, nil
}

// Do runs fn until it succeeds, exhausts cfg.MaxAttempts, returns a
// non-retryable error, or ctx ends during a backoff wait.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalized()
	if err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsNonRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := withJitter(delay, cfg.AddJitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry interrupted before attempt %d: %w", attempt+1, err)
		}
		delay = nextDelay(delay, cfg)
	}

	return fmt.Errorf("retry gave up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value. On failure the
// zero value is returned alongside the error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withJitter stretches d by up to 25%. Delays too small to split are
// returned unchanged.
func withJitter(d time.Duration, enabled bool) time.Duration {
	if !enabled || d < 4 {
		return d
	}
	return d + rand.N(d/4)
}

// nextDelay advances the schedule, saturating at MaxDelay. The float
// comparison also absorbs overflow from large multipliers.
func nextDelay(d time.Duration, cfg Config) time.Duration {
	next := float64(d) * cfg.Multiplier
	if next > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(next)
}
