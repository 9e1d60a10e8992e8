package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/canvaskit/metric"
)

// Sentinel errors for pool operations.
var (
	// ErrNilProcessor indicates New was given no process function.
	ErrNilProcessor = errors.New("process function cannot be nil")

	// ErrNotStarted indicates Submit was called before Start.
	ErrNotStarted = errors.New("worker pool not started")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("worker pool already started")

	// ErrStopped indicates the pool has been stopped.
	ErrStopped = errors.New("worker pool stopped")

	// ErrQueueFull indicates the work queue is at capacity.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrStopTimeout indicates workers did not finish within the
	// Stop timeout.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// counters fans pool activity out to the always-on atomic tallies and,
// when a registry was configured, the Prometheus collectors.
type counters struct {
	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	prom *poolMetrics
}

func (c *counters) submit(depth int) {
	c.submitted.Add(1)
	if c.prom != nil {
		c.prom.submitted.Inc()
		c.prom.queueDepth.Set(float64(depth))
	}
}

func (c *counters) drop() {
	c.dropped.Add(1)
	if c.prom != nil {
		c.prom.dropped.Inc()
	}
}

func (c *counters) finish(err error, elapsed time.Duration) {
	c.processed.Add(1)
	status := "success"
	if err != nil {
		c.failed.Add(1)
		status = "error"
	}
	if c.prom == nil {
		return
	}
	c.prom.processed.Inc()
	if err != nil {
		c.prom.failed.Inc()
	}
	c.prom.duration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (c *counters) gauge(depth, capacity int) {
	if c.prom == nil {
		return
	}
	c.prom.queueDepth.Set(float64(depth))
	c.prom.utilization.Set(float64(depth) / float64(capacity))
}

// Pool processes work items of type T on a fixed set of goroutines
// behind a bounded queue.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	workChan chan T
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	tally counters

	registry *metric.MetricsRegistry
	name     string
}

// Option is a functional option for configuring a Pool.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers the pool's Prometheus metrics under the
// given pool name.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.name = name
	}
}

// New creates a pool. Non-positive workers or queueSize fall back to
// the defaults (4 workers, 256 queued items).
func New[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, ErrNilProcessor
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		workChan:  make(chan T, queueSize),
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.registry != nil && p.name != "" {
		m, err := newPoolMetrics(p.registry, p.name)
		if err != nil {
			return nil, err
		}
		p.tally.prom = m
	}

	return p, nil
}

// Start launches the workers. The context bounds their lifetime: when
// it is cancelled, workers exit without draining the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.stopped {
		return ErrStopped
	}

	for range p.workers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	if p.tally.prom != nil {
		p.wg.Add(1)
		go p.updateGauges(ctx)
	}

	p.started = true
	return nil
}

// Submit queues a work item without blocking. A full queue drops the
// item and returns ErrQueueFull.
func (p *Pool[T]) Submit(item T) error {
	// The lock is held across the send so Stop cannot close the
	// channel mid-submit. The send never blocks.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrNotStarted
	}
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.workChan <- item:
		p.tally.submit(len(p.workChan))
		return nil
	default:
		p.tally.drop()
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for the workers to
// finish whatever remains. Idempotent; returns ErrStopTimeout when
// workers are still busy at the deadline.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.workChan)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats reports current pool counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.tally.submitted.Load(),
		Processed:  p.tally.processed.Load(),
		Failed:     p.tally.failed.Load(),
		Dropped:    p.tally.dropped.Load(),
	}
}

// Stats describes pool activity.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.workChan:
			if !ok {
				return
			}
			p.run(ctx, item)
		}
	}
}

func (p *Pool[T]) run(ctx context.Context, item T) {
	started := time.Now()
	err := p.process(ctx, item)
	p.tally.finish(err, time.Since(started))
}

// updateGauges refreshes queue depth and utilization once a second.
func (p *Pool[T]) updateGauges(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tally.gauge(len(p.workChan), p.queueSize)
		}
	}
}
