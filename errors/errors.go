package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/canvaskit/pkg/retry"
)

// ErrorClass sorts errors by how callers should react to them.
type ErrorClass int

const (
	// ErrorTransient marks failures worth retrying.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid marks failures caused by bad input or configuration.
	ErrorInvalid
	// ErrorFatal marks failures that should stop processing.
	ErrorFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors for conditions the runtime recognizes by identity.
var (
	// Lifecycle.
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Connections and channels.
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrHeartbeatTimeout   = errors.New("heartbeat timeout")
	ErrMaxReconnects      = errors.New("maximum reconnect attempts exceeded")
	ErrSubscriptionFailed = errors.New("subscription failed")

	// Binding resolution.
	ErrInvalidBinding   = errors.New("invalid binding")
	ErrUnknownSource    = errors.New("unknown data source")
	ErrUnknownTransform = errors.New("unknown transform")
	ErrInvalidPath      = errors.New("invalid path expression")
	ErrSourceFetch      = errors.New("source fetch failed")

	// Hydration.
	ErrAllEndpointsFailed = errors.New("all endpoints failed")
	ErrEndpointTimeout    = errors.New("endpoint timeout")

	// Data handling.
	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")

	// Configuration.
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrConfigNotFound = errors.New("configuration not found")

	// Storage.
	ErrBucketNotFound = errors.New("bucket not found")
	ErrKeyNotFound    = errors.New("key not found")

	// Retries.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrRetryTimeout       = errors.New("retry timeout exceeded")
)

// ClassifiedError carries an error together with its class and the
// component and operation that raised it.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap adds "component.method: action failed" context around err while
// keeping it unwrappable.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps err with context and marks it retryable.
func WrapTransient(err error, component, method, action string) error {
	return classified(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps err with context and marks it as caller error.
func WrapInvalid(err error, component, method, action string) error {
	return classified(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps err with context and marks it unrecoverable.
func WrapFatal(err error, component, method, action string) error {
	return classified(ErrorFatal, err, component, method, action)
}

func classified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// Classification falls through three tiers: an explicit
// ClassifiedError wins, then sentinel identity, then message
// substrings as a last resort for errors from outside the runtime.

var transientSentinels = []error{
	ErrConnectionTimeout,
	ErrConnectionLost,
	ErrNoConnection,
	ErrHeartbeatTimeout,
	ErrSourceFetch,
	ErrEndpointTimeout,
	context.DeadlineExceeded,
	context.Canceled,
}

var transientPatterns = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"unavailable",
	"busy",
	"retry",
}

var invalidSentinels = []error{
	ErrInvalidBinding,
	ErrUnknownSource,
	ErrUnknownTransform,
	ErrInvalidPath,
	ErrInvalidData,
	ErrParsingFailed,
}

var fatalSentinels = []error{
	ErrInvalidConfig,
	ErrMissingConfig,
	ErrMaxReconnects,
}

var fatalPatterns = []string{
	"fatal",
	"panic",
	"invalid config",
	"missing config",
	"out of memory",
}

func matchesAny(err error, sentinels []error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func containsAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err looks retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}
	if matchesAny(err, transientSentinels) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), transientPatterns)
}

// IsInvalid reports whether err stems from bad input or configuration.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return matchesAny(err, invalidSentinels)
}

// IsFatal reports whether err should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	if matchesAny(err, fatalSentinels) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), fatalPatterns)
}

// Classify resolves err to a single class. Invalid takes precedence
// over fatal, fatal over transient, and anything unrecognized counts
// as transient so unknown failures stay retryable.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorTransient
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// RetryConfig describes a retry policy in terms of additional attempts
// beyond the first call.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// DefaultRetryConfig returns the policy used when a component does not
// configure its own: three retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry reports whether another attempt is warranted for err at
// the given zero-based attempt count. A non-empty RetryableErrors list
// narrows retries to those sentinels.
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}
	if !IsTransient(err) {
		return false
	}
	if len(rc.RetryableErrors) > 0 {
		return matchesAny(err, rc.RetryableErrors)
	}
	return true
}

// ToRetryConfig converts this policy to the retry package's Config.
// MaxRetries counts additional attempts, Config.MaxAttempts counts
// total calls, hence the +1. Jitter is enabled on the way through.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}

// BackoffDelay returns the delay before the given zero-based retry
// attempt, growing by BackoffFactor and capped at MaxDelay.
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := rc.InitialDelay
	for range attempt {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	return delay
}
