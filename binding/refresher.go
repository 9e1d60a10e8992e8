package binding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/pkg/worker"
)

// UpdateFunc receives each periodic re-resolution of a refreshing binding.
// It may be called concurrently for different bindings; updates for one
// binding are serialized.
type UpdateFunc func(b Binding, res Resolved)

// Refresher re-resolves bindings that declare a refreshIntervalMs, pushing
// every result to a callback. Each added binding gets its own ticker; a
// shared rate limiter keeps a large canvas of fast-refreshing bindings
// from hammering the adapters, and the actual resolutions run on a
// bounded worker pool so slow sources cannot pile up goroutines. A tick
// that lands while the previous refresh of the same binding is still in
// flight is skipped. Refresh resolutions bypass the cache read
// (otherwise a cached value could satisfy every tick) but still write
// through, so interactive resolutions see the refreshed value.
type Refresher struct {
	resolver  *Resolver
	bctx      Context
	onUpdate  UpdateFunc
	limiter   *rate.Limiter
	logger    *slog.Logger
	workers   int
	queueSize int
	pool      *worker.Pool[refreshJob]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	nextID int
	stops  map[int]context.CancelFunc
	closed bool
}

// refreshJob carries one due re-resolution to the pool. The loop context
// lets a queued job detect that its binding was removed; inflight keeps
// at most one refresh of a binding running.
type refreshJob struct {
	ctx      context.Context
	binding  Binding
	inflight *atomic.Bool
}

// RefresherOption is a functional option for configuring a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshLimit caps resolutions per second across all refreshing
// bindings.
func WithRefreshLimit(perSecond float64, burst int) RefresherOption {
	return func(f *Refresher) {
		if perSecond > 0 && burst > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithRefreshWorkers sets how many refreshes may resolve concurrently
// and how many due ticks may wait in the queue.
func WithRefreshWorkers(workers, queueSize int) RefresherOption {
	return func(f *Refresher) {
		f.workers = workers
		f.queueSize = queueSize
	}
}

// WithRefreshLogger sets a custom logger for the refresher.
func WithRefreshLogger(logger *slog.Logger) RefresherOption {
	return func(f *Refresher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRefresher creates a refresher that resolves against resolver under the
// given caller context and delivers updates to onUpdate.
func NewRefresher(resolver *Resolver, bctx Context, onUpdate UpdateFunc, opts ...RefresherOption) (*Refresher, error) {
	if resolver == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Refresher", "NewRefresher", "resolver validation")
	}
	if onUpdate == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Refresher", "NewRefresher", "update callback validation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Refresher{
		resolver:  resolver,
		bctx:      bctx,
		onUpdate:  onUpdate,
		limiter:   rate.NewLimiter(rate.Limit(100), 10),
		logger:    slog.Default().With("component", "refresher"),
		workers:   4,
		queueSize: 64,
		ctx:       ctx,
		cancel:    cancel,
		stops:     make(map[int]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(f)
	}

	pool, err := worker.New(f.workers, f.queueSize, f.process)
	if err != nil {
		cancel()
		return nil, errors.WrapInvalid(err, "Refresher", "NewRefresher", "pool construction")
	}
	if err := pool.Start(ctx); err != nil {
		cancel()
		return nil, errors.WrapInvalid(err, "Refresher", "NewRefresher", "pool start")
	}
	f.pool = pool

	return f, nil
}

// Add starts a refresh loop for the binding and returns a function that
// stops it. The binding must declare a positive refreshIntervalMs.
func (f *Refresher) Add(b Binding) (func(), error) {
	if b.RefreshIntervalMs <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidBinding, "Refresher", "Add", "refresh interval validation")
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrAlreadyStopped, "Refresher", "Add", "closed check")
	}
	id := f.nextID
	f.nextID++
	runCtx, stop := context.WithCancel(f.ctx)
	f.stops[id] = stop
	f.wg.Add(1)
	f.mu.Unlock()

	go f.run(runCtx, b)

	remove := func() {
		f.mu.Lock()
		if stop, active := f.stops[id]; active {
			delete(f.stops, id)
			defer stop()
		}
		f.mu.Unlock()
	}
	return remove, nil
}

// Active returns the number of refresh loops currently registered.
func (f *Refresher) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stops)
}

// Stats reports the refresh pool's counters. Dropped counts ticks that
// found the queue full.
func (f *Refresher) Stats() worker.Stats {
	return f.pool.Stats()
}

// Close stops all refresh loops and waits for them to exit. Pending
// refreshes are dropped, not drained. Idempotent.
func (f *Refresher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
	if err := f.pool.Stop(5 * time.Second); err != nil {
		f.logger.Warn("refresh pool did not stop cleanly", "error", err)
	}

	f.mu.Lock()
	f.stops = make(map[int]context.CancelFunc)
	f.mu.Unlock()

	return nil
}

func (f *Refresher) run(ctx context.Context, b Binding) {
	defer f.wg.Done()

	interval := time.Duration(b.RefreshIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	inflight := &atomic.Bool{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.limiter.Wait(ctx); err != nil {
				return
			}
			if !inflight.CompareAndSwap(false, true) {
				continue // previous refresh still running
			}
			job := refreshJob{ctx: ctx, binding: b, inflight: inflight}
			if err := f.pool.Submit(job); err != nil {
				inflight.Store(false)
				f.logger.Debug("refresh tick dropped",
					"source", b.Source,
					"path", b.Path,
					"error", err)
			}
		}
	}
}

// process is the pool's work function: one queued refresh.
func (f *Refresher) process(_ context.Context, job refreshJob) error {
	defer job.inflight.Store(false)

	if job.ctx.Err() != nil {
		return nil // binding removed while queued
	}
	res := f.resolver.resolve(job.ctx, job.binding, f.bctx, true)
	if job.ctx.Err() != nil {
		return nil // removed mid-resolve, drop the update
	}
	f.onUpdate(job.binding, res)

	if !res.Success {
		f.logger.Debug("refresh resolution failed",
			"source", job.binding.Source,
			"path", job.binding.Path,
			"error", res.Error)
		return fmt.Errorf("refresh %s/%s: %s", job.binding.Source, job.binding.Path, res.Error)
	}
	return nil
}
