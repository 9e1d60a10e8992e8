package binding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/metric"
	"github.com/c360/canvaskit/pathexpr"
	"github.com/c360/canvaskit/pkg/cache"
	"github.com/c360/canvaskit/transform"
)

// DefaultCacheTTL applies to cache writes for bindings that set a cacheKey
// but no cacheTtlMs.
const DefaultCacheTTL = 60 * time.Second

// Resolver turns bindings into values. It validates the binding, consults
// the cache, invokes the source adapter, evaluates the path expression,
// applies the transform, and falls back on any failure. Resolution never
// returns an error to the caller; every failure degrades to the binding's
// fallback with the reason recorded on the Resolved.
type Resolver struct {
	sources    *Registry
	transforms *transform.Registry
	cache      cache.Cache[any]
	logger     *slog.Logger
	metrics    *metric.Metrics
	defaultTTL time.Duration
	timeout    time.Duration

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// inflightCall tracks one shared fetch+evaluate execution. Followers block
// on done and read value/err afterwards.
type inflightCall struct {
	done  chan struct{}
	value any
	err   error
}

// Option is a functional option for configuring a Resolver.
type Option func(*Resolver)

// WithCache attaches a resolved-value cache. Without one, cacheKey bindings
// resolve like uncached bindings.
func WithCache(c cache.Cache[any]) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches platform metrics for resolution counters and timings.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithDefaultTTL overrides the cache TTL applied when a binding sets no
// cacheTtlMs.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.defaultTTL = ttl
		}
	}
}

// WithTimeout bounds each adapter fetch. Zero means the caller's context is
// the only bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// New creates a resolver over the given source and transform registries.
// Nil registries are replaced with empty/builtin ones so a zero-config
// resolver still validates and falls back coherently.
func New(sources *Registry, transforms *transform.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		sources:    sources,
		transforms: transforms,
		logger:     slog.Default().With("component", "resolver"),
		defaultTTL: DefaultCacheTTL,
		inflight:   make(map[string]*inflightCall),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.sources == nil {
		r.sources = NewRegistry()
	}
	if r.transforms == nil {
		r.transforms = transform.NewRegistry()
	}

	return r
}

// Sources returns the resolver's source adapter registry.
func (r *Resolver) Sources() *Registry {
	return r.sources
}

// Transforms returns the resolver's transform registry.
func (r *Resolver) Transforms() *transform.Registry {
	return r.transforms
}

// Resolve executes one binding resolution:
//
//  1. validate the binding (required fields, known source, known transform)
//  2. on a cacheKey binding, return a live cached value
//  3. fetch the snapshot from the source adapter
//  4. evaluate the path expression against the snapshot
//  5. apply the transform if set
//  6. on a cacheKey binding, store the transformed value
//  7. return the resolved value
//
// Failures at any step return the binding's fallback with Success false;
// Resolve itself never fails. A path that reaches no value is not a
// failure: it resolves successfully to nil.
func (r *Resolver) Resolve(ctx context.Context, b Binding, bctx Context) Resolved {
	return r.resolve(ctx, b, bctx, false)
}

func (r *Resolver) resolve(ctx context.Context, b Binding, bctx Context, skipCacheRead bool) Resolved {
	started := time.Now()

	if err := r.validate(b); err != nil {
		return r.failure(b, err, started)
	}

	if !skipCacheRead && b.CacheKey != "" && r.cache != nil {
		if value, found := r.cache.Get(b.CacheKey); found {
			r.recordOutcome(b, "cache_hit", started)
			return Resolved{
				Value:      value,
				Success:    true,
				ResolvedAt: time.Now(),
				Source:     b.Source,
				FromCache:  true,
			}
		}
	}

	value, err := r.fetchEvaluate(ctx, b, bctx)
	if err != nil {
		return r.failure(b, err, started)
	}

	if b.Transform != "" {
		value, err = r.transforms.Apply(value, b.Transform)
		if err != nil {
			return r.failure(b, err, started)
		}
	}

	if b.CacheKey != "" && r.cache != nil {
		if _, err := r.cache.SetWithTTL(b.CacheKey, value, b.cacheTTL(r.defaultTTL)); err != nil {
			r.logger.Warn("cache write failed",
				"cacheKey", b.CacheKey,
				"error", err)
		}
	}

	r.recordOutcome(b, "success", started)
	return Resolved{
		Value:      value,
		Success:    true,
		ResolvedAt: time.Now(),
		Source:     b.Source,
		FromCache:  false,
	}
}

// ResolveMany resolves all bindings concurrently. The result slice is
// positionally aligned with the input, and one binding's failure never
// affects a sibling's outcome.
func (r *Resolver) ResolveMany(ctx context.Context, bindings []Binding, bctx Context) []Resolved {
	results := make([]Resolved, len(bindings))

	var g errgroup.Group
	for i, b := range bindings {
		g.Go(func() error {
			results[i] = r.resolve(ctx, b, bctx, false)
			return nil
		})
	}
	// Resolutions report failure through their Resolved, never as an error.
	_ = g.Wait()

	return results
}

// CacheStats returns a point-in-time view of the resolved-value cache, or
// an empty snapshot when no cache is attached.
func (r *Resolver) CacheStats() cache.Snapshot {
	if r.cache == nil {
		return cache.Snapshot{}
	}
	return r.cache.Snapshot()
}

// ClearCache drops every cached resolved value.
func (r *Resolver) ClearCache() {
	if r.cache == nil {
		return
	}
	if err := r.cache.Clear(); err != nil {
		r.logger.Warn("cache clear failed", "error", err)
	}
}

// validate rejects a malformed binding before any cache or adapter work.
func (r *Resolver) validate(b Binding) error {
	if b.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidBinding, "Resolver", "Resolve", "path validation")
	}
	if b.Source == "" {
		return errors.WrapInvalid(errors.ErrInvalidBinding, "Resolver", "Resolve", "source validation")
	}
	if _, known := r.sources.Lookup(b.Source); !known {
		msg := fmt.Errorf("%w: %q", errors.ErrUnknownSource, b.Source)
		return errors.WrapInvalid(msg, "Resolver", "Resolve", "source lookup")
	}
	if b.Transform != "" && !r.transforms.Has(b.Transform) {
		msg := fmt.Errorf("%w: %q", errors.ErrUnknownTransform, b.Transform)
		return errors.WrapInvalid(msg, "Resolver", "Resolve", "transform lookup")
	}
	return nil
}

// fetchEvaluate runs the adapter fetch and path evaluation, sharing the
// work among concurrent resolutions of the same source+path+params.
func (r *Resolver) fetchEvaluate(ctx context.Context, b Binding, bctx Context) (any, error) {
	key := b.fingerprint()

	r.inflightMu.Lock()
	if call, exists := r.inflight[key]; exists {
		r.inflightMu.Unlock()
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return nil, errors.WrapTransient(ctx.Err(), "Resolver", "Resolve", "wait for in-flight fetch")
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	r.inflight[key] = call
	r.inflightMu.Unlock()

	value, err := r.doFetchEvaluate(ctx, b, bctx)

	call.value, call.err = value, err
	r.inflightMu.Lock()
	delete(r.inflight, key)
	r.inflightMu.Unlock()
	close(call.done)

	return value, err
}

func (r *Resolver) doFetchEvaluate(ctx context.Context, b Binding, bctx Context) (any, error) {
	adapter, known := r.sources.Lookup(b.Source)
	if !known {
		msg := fmt.Errorf("%w: %q", errors.ErrUnknownSource, b.Source)
		return nil, errors.WrapInvalid(msg, "Resolver", "Resolve", "source lookup")
	}

	fetchCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	snapshot, err := adapter.Fetch(fetchCtx, b.Params, bctx)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrSourceFetch, err),
			"Resolver", "Resolve", "source fetch")
	}

	return pathexpr.Evaluate(snapshot, b.Path)
}

// failure produces the degraded result: fallback value, Success false, and
// the failure reason on the Error field.
func (r *Resolver) failure(b Binding, err error, started time.Time) Resolved {
	r.logger.Warn("binding resolution failed",
		"source", b.Source,
		"path", b.Path,
		"error", err)

	r.recordOutcome(b, "error", started)
	if r.metrics != nil {
		r.metrics.RecordError("resolver", errors.Classify(err).String())
	}

	return Resolved{
		Value:      b.Fallback,
		Success:    false,
		Error:      err.Error(),
		ResolvedAt: time.Now(),
		Source:     b.Source,
		FromCache:  false,
	}
}

func (r *Resolver) recordOutcome(b Binding, status string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordBindingResolved("resolver", b.Source, status)
	r.metrics.RecordResolveDuration("resolver", "resolve", time.Since(started))
}
