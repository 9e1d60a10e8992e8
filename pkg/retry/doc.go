// Package retry runs fallible operations under a capped exponential
// backoff schedule with optional jitter.
//
// Do drives the loop; DoWithResult wraps it for operations that return
// a value. A Config describes the schedule, and three presets cover
// the common cases: DefaultConfig for ordinary transient faults,
// Quick for startup races, Persistent for resources worth waiting on.
//
//	payload, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]byte, error) {
//	    return fetchEndpoint(ctx, url)
//	})
//
// Errors wrapped with NonRetryable end the loop at once. That is how
// callers separate "try again" faults from permanent ones without this
// package growing an error taxonomy of its own:
//
//	if resp.StatusCode == http.StatusBadRequest {
//	    return retry.NonRetryable(fmt.Errorf("HTTP %d", resp.StatusCode))
//	}
//
// The OnRetry hook fires before each backoff wait with the failed
// attempt, its error, and the upcoming delay, which is enough to log
// or instrument retries at the call site:
//
//	cfg := retry.DefaultConfig()
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("retrying fetch", "attempt", attempt, "delay", delay, "error", err)
//	}
//
// Context cancellation is honored during backoff waits. There are no
// circuit breakers and no metrics here; callers layer those where they
// need them. All functions are safe for concurrent use.
package retry
