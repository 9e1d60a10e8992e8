// Package errors defines the error vocabulary shared across the
// runtime. Failures are sorted into three classes that tell callers
// how to react. Transient failures are worth retrying. Invalid
// failures mean the input or configuration is wrong and a retry cannot
// help. Fatal failures should stop processing.
//
// # Classifying
//
// Classification resolves in three tiers. An explicit ClassifiedError
// wins. Otherwise well-known sentinels are matched by identity, so a
// binding failure wrapped three layers deep still reports as invalid.
// As a last resort, message substrings catch errors raised by
// libraries outside the runtime ("timeout", "connection refused").
// Context cancellation and deadline errors count as transient, letting
// a caller treat its own deadline like any other timeout.
//
//	if errors.IsTransient(err) {
//	    // schedule another attempt
//	}
//
// Unrecognized errors classify as transient, which keeps unknown
// failures retryable.
//
// # Wrapping
//
// The Wrap helpers attach the component and operation on the way up
// the stack, producing messages of the form
//
//	resolver.Resolve: source fetch failed: connection refused
//
// WrapTransient, WrapInvalid, and WrapFatal additionally pin the
// class. The class survives further wrapping and is visible through
// errors.As:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("%s/%s: %s", ce.Component, ce.Operation, ce.Class)
//	}
//
// # Sentinels
//
// Conditions the runtime recognizes by identity are declared once here
// (ErrUnknownSource, ErrHeartbeatTimeout, ErrAllEndpointsFailed, and
// so on) so callers match them with errors.Is instead of comparing
// strings.
//
// # Retry policy
//
// RetryConfig couples a backoff schedule to classification.
// ShouldRetry consults IsTransient before allowing another attempt,
// and BackoffDelay grows the wait exponentially up to MaxDelay.
// ToRetryConfig bridges the policy into pkg/retry for callers that
// want the whole retry loop run for them.
package errors
