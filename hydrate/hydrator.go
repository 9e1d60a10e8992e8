// Package hydrate fetches batches of endpoints in parallel and merges their
// payloads for components that consume raw REST responses rather than
// structured bindings.
//
// Each endpoint is fetched concurrently with a per-attempt timeout and capped
// exponential backoff. Object payloads merge into one map with later
// endpoints winning key collisions; scalar and array payloads are stored
// under their endpoint address. A call only fails when every endpoint fails.
// Partial failures surface through an ErrorCallback while the successes still
// merge.
package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/metric"
	"github.com/c360/canvaskit/pkg/cache"
	"github.com/c360/canvaskit/pkg/retry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// responseCacheSize bounds the internally-created response cache.
	responseCacheSize = 128
	// responseCacheSweep is how often the internal cache evicts expired
	// responses.
	responseCacheSweep = 30 * time.Second
)

// Config controls fetch timeouts, retry backoff, and response caching.
type Config struct {
	// TimeoutPerEndpoint bounds each fetch attempt. The attempt's request
	// is cancelled when the timeout fires; remaining retries still run.
	TimeoutPerEndpoint time.Duration

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BackoffBase is the delay before the first retry. Each subsequent
	// delay doubles, capped at BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Jitter randomizes backoff delays to spread retry bursts.
	Jitter bool

	// CacheTTL bounds how long an endpoint response may be served from
	// cache.
	CacheTTL time.Duration

	// CacheEnabled turns response caching on. When no cache is supplied
	// via WithCache, an internal one is created and owned by the Hydrator.
	CacheEnabled bool
}

// DefaultConfig returns the hydration defaults used when fields are unset.
func DefaultConfig() Config {
	return Config{
		TimeoutPerEndpoint: 10 * time.Second,
		MaxRetries:         3,
		BackoffBase:        200 * time.Millisecond,
		BackoffMax:         5 * time.Second,
		Jitter:             true,
		CacheTTL:           60 * time.Second,
		CacheEnabled:       true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TimeoutPerEndpoint <= 0 {
		c.TimeoutPerEndpoint = def.TimeoutPerEndpoint
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	return c
}

// retryConfig maps the hydration backoff settings onto the retry framework.
// MaxRetries counts attempts beyond the first, so total attempts is one more.
func (c Config) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  c.MaxRetries + 1,
		InitialDelay: c.BackoffBase,
		MaxDelay:     c.BackoffMax,
		Multiplier:   2,
		AddJitter:    c.Jitter,
	}
}

// Result is the outcome of one Hydrate call.
type Result struct {
	// Data holds the merged endpoint responses. Nil when every endpoint
	// failed.
	Data map[string]any

	// Loading is false on every completed Result. The field exists so
	// callers tracking an in-flight call can reuse this type for their
	// own state.
	Loading bool

	// Err is set only when every endpoint failed. It wraps
	// errors.ErrAllEndpointsFailed together with the first endpoint's
	// failure.
	Err error
}

// FetchFunc retrieves one endpoint and returns its decoded payload. The
// context carries the per-attempt timeout; implementations must honor it.
type FetchFunc func(ctx context.Context, endpoint string) (any, error)

// ErrorCallback observes individual endpoint failures. It is invoked once
// per failed endpoint, in endpoint order, on the goroutine that called
// Hydrate, regardless of whether the overall call succeeds.
type ErrorCallback func(endpoint string, err error)

// Hydrator fetches groups of endpoints concurrently and merges their
// responses into a single data map.
type Hydrator struct {
	cfg     Config
	retry   retry.Config
	fetch   FetchFunc
	client  *http.Client
	cache   cache.Cache[any]
	logger  *slog.Logger
	metrics *metric.Metrics
	onError ErrorCallback

	ownsCache bool
	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	last []string
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithClient sets the HTTP client used by the default fetch.
func WithClient(client *http.Client) Option {
	return func(h *Hydrator) {
		if client != nil {
			h.client = client
		}
	}
}

// WithFetchFunc replaces the default HTTP fetch.
func WithFetchFunc(fn FetchFunc) Option {
	return func(h *Hydrator) {
		if fn != nil {
			h.fetch = fn
		}
	}
}

// WithCache supplies the response cache. The caller keeps ownership and is
// responsible for closing it.
func WithCache(c cache.Cache[any]) Option {
	return func(h *Hydrator) {
		if c != nil {
			h.cache = c
		}
	}
}

// WithLogger sets a custom logger for the hydrator.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hydrator) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m *metric.Metrics) Option {
	return func(h *Hydrator) {
		h.metrics = m
	}
}

// WithErrorCallback registers a callback for per-endpoint failures.
func WithErrorCallback(fn ErrorCallback) Option {
	return func(h *Hydrator) {
		h.onError = fn
	}
}

// New creates a Hydrator. Zero-valued Config fields fall back to
// DefaultConfig values.
func New(cfg Config, opts ...Option) *Hydrator {
	h := &Hydrator{
		cfg:    cfg.withDefaults(),
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "hydrator")
	}
	if h.fetch == nil {
		h.fetch = h.httpFetch
	}
	if h.cache == nil && h.cfg.CacheEnabled {
		store, err := cache.NewHybrid[any](context.Background(), responseCacheSize, h.cfg.CacheTTL, responseCacheSweep)
		if err != nil {
			h.logger.Warn("response cache unavailable, caching disabled", "error", err)
		} else {
			h.cache = store
			h.ownsCache = true
		}
	}
	h.retry = h.cfg.retryConfig()
	return h
}

// Hydrate fetches all endpoints concurrently and merges their payloads.
// Object payloads merge key-by-key with later endpoints winning collisions;
// scalars and arrays are stored under their endpoint address. The call
// succeeds as long as at least one endpoint does.
func (h *Hydrator) Hydrate(ctx context.Context, endpoints []string) Result {
	h.mu.Lock()
	h.last = append([]string(nil), endpoints...)
	h.mu.Unlock()
	return h.run(ctx, endpoints, false)
}

// Retry re-runs the most recent endpoint set, bypassing cached responses so
// every endpoint is fetched fresh. Before any Hydrate call it returns an
// empty Result.
func (h *Hydrator) Retry(ctx context.Context) Result {
	return h.run(ctx, h.lastEndpoints(), true)
}

func (h *Hydrator) run(ctx context.Context, endpoints []string, bypassCache bool) Result {
	if len(endpoints) == 0 {
		return Result{Data: map[string]any{}}
	}
	started := time.Now()
	// One id per call so the log lines of all its endpoints correlate.
	logger := h.logger.With("request_id", uuid.NewString())

	outcomes := make([]endpointOutcome, len(endpoints))
	var g errgroup.Group
	for i, endpoint := range endpoints {
		g.Go(func() error {
			value, err := h.fetchOne(ctx, logger, endpoint, bypassCache)
			outcomes[i] = endpointOutcome{value: value, err: err}
			return nil
		})
	}
	// Failures land in their outcome slot so one endpoint never cancels
	// its siblings.
	_ = g.Wait()

	merged := make(map[string]any)
	var firstErr error
	failed := 0
	for i, endpoint := range endpoints {
		oc := outcomes[i]
		if oc.err != nil {
			failed++
			if firstErr == nil {
				firstErr = oc.err
			}
			logger.Warn("endpoint hydration failed",
				"endpoint", endpoint,
				"error", oc.err)
			if h.metrics != nil {
				h.metrics.RecordError("hydrator", errors.Classify(oc.err).String())
			}
			if h.onError != nil {
				h.onError(endpoint, oc.err)
			}
			continue
		}
		mergeOutcome(merged, endpoint, oc.value)
	}

	if h.metrics != nil {
		h.metrics.RecordResolveDuration("hydrator", "hydrate", time.Since(started))
	}
	logger.Debug("hydration complete",
		"endpoints", len(endpoints),
		"failed", failed,
		"duration", time.Since(started))

	if failed == len(endpoints) {
		return Result{Err: fmt.Errorf("%w: %w", errors.ErrAllEndpointsFailed, firstErr)}
	}
	return Result{Data: merged}
}

type endpointOutcome struct {
	value any
	err   error
}

// fetchOne resolves a single endpoint: cache lookup, then fetch attempts
// under the retry policy with a fresh timeout per attempt, then cache
// write-back.
func (h *Hydrator) fetchOne(ctx context.Context, logger *slog.Logger, endpoint string, bypassCache bool) (any, error) {
	if !bypassCache && h.cacheEnabled() {
		if value, ok := h.cache.Get(endpoint); ok {
			return value, nil
		}
	}

	rc := h.retry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debug("retrying endpoint",
			"endpoint", endpoint,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	value, err := retry.DoWithResult(ctx, rc, func() (any, error) {
		attemptCtx := ctx
		if h.cfg.TimeoutPerEndpoint > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, h.cfg.TimeoutPerEndpoint)
			defer cancel()
		}
		value, err := h.fetch(attemptCtx, endpoint)
		if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", errors.ErrEndpointTimeout, h.cfg.TimeoutPerEndpoint, err)
		}
		return value, err
	})
	if err != nil {
		return nil, err
	}

	if h.cacheEnabled() {
		if _, err := h.cache.SetWithTTL(endpoint, value, h.cfg.CacheTTL); err != nil {
			logger.Warn("response cache write failed",
				"endpoint", endpoint,
				"error", err)
		}
	}
	return value, nil
}

func mergeOutcome(into map[string]any, endpoint string, value any) {
	if fields, ok := value.(map[string]any); ok {
		for k, v := range fields {
			into[k] = v
		}
		return
	}
	into[endpoint] = value
}

// ClearCache evicts the cached responses for the endpoints of the most
// recent Hydrate call and reports how many entries were removed. Responses
// cached for other endpoint sets are left alone.
func (h *Hydrator) ClearCache() int {
	if h.cache == nil {
		return 0
	}
	removed := 0
	for _, endpoint := range h.lastEndpoints() {
		if ok, err := h.cache.Delete(endpoint); err == nil && ok {
			removed++
		}
	}
	return removed
}

// ClearAllCache drops every cached response regardless of which endpoint set
// produced it.
func (h *Hydrator) ClearAllCache() error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Clear()
}

// CacheStats reports the response cache contents. An empty snapshot is
// returned when caching is off.
func (h *Hydrator) CacheStats() cache.Snapshot {
	if h.cache == nil {
		return cache.Snapshot{}
	}
	return h.cache.Snapshot()
}

// Close releases the internally-created response cache. Caches supplied via
// WithCache stay open; their owner closes them. Safe to call more than once.
func (h *Hydrator) Close() error {
	h.closeOnce.Do(func() {
		if h.ownsCache && h.cache != nil {
			h.closeErr = h.cache.Close()
		}
	})
	return h.closeErr
}

func (h *Hydrator) cacheEnabled() bool {
	return h.cfg.CacheEnabled && h.cache != nil
}

func (h *Hydrator) lastEndpoints() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.last...)
}
