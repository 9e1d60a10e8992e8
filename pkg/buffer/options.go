package buffer

import (
	"github.com/c360/canvaskit/metric"
)

// Option adjusts buffer construction.
type Option[T any] func(*settings[T])

// settings collects the resolved options for one buffer. Statistics
// are unconditional; only the overflow policy, drop callback, and
// Prometheus export vary.
type settings[T any] struct {
	policy    OverflowPolicy
	onDrop    DropCallback[T]
	registry  *metric.MetricsRegistry
	component string
}

// WithOverflowPolicy selects what happens to writes on a full buffer.
// The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(s *settings[T]) {
		s.policy = policy
	}
}

// WithMetrics additionally exports activity as Prometheus metrics
// labeled with the given component name. Ignored when registry is nil
// or component is empty.
func WithMetrics[T any](registry *metric.MetricsRegistry, component string) Option[T] {
	return func(s *settings[T]) {
		if registry != nil && component != "" {
			s.registry = registry
			s.component = component
		}
	}
}

// WithDropCallback registers a function invoked with every item the
// overflow policy discards. The callback runs outside the buffer lock.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(s *settings[T]) {
		s.onDrop = callback
	}
}

func resolveOptions[T any](opts ...Option[T]) *settings[T] {
	s := &settings[T]{policy: DropOldest}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// recorder fans buffer activity out to the always-on statistics and,
// when configured, to Prometheus.
type recorder struct {
	stats   *Statistics
	metrics *bufferMetrics
}

func newRecorder[T any](s *settings[T]) (recorder, error) {
	rec := recorder{stats: NewStatistics()}
	if s.registry != nil {
		metrics, err := newBufferMetrics(s.registry, s.component)
		if err != nil {
			return recorder{}, err
		}
		rec.metrics = metrics
	}
	return rec, nil
}

func (r recorder) wrote(size, capacity int) {
	r.stats.Write()
	r.stats.UpdateSize(int64(size))
	if r.metrics != nil {
		r.metrics.wrote(1, size, capacity)
	}
}

func (r recorder) read(n, size, capacity int) {
	for range n {
		r.stats.Read()
	}
	r.stats.UpdateSize(int64(size))
	if r.metrics != nil {
		r.metrics.read(n, size, capacity)
	}
}

func (r recorder) peeked() {
	r.stats.Peek()
	if r.metrics != nil {
		r.metrics.peeked()
	}
}

func (r recorder) dropped() {
	r.stats.Overflow()
	r.stats.Drop()
	if r.metrics != nil {
		r.metrics.dropped()
	}
}

func (r recorder) resized(size, capacity int) {
	r.stats.UpdateSize(int64(size))
	if r.metrics != nil {
		r.metrics.fill(size, capacity)
	}
}
