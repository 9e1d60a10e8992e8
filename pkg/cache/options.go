package cache

import (
	"time"

	"github.com/c360/canvaskit/metric"
)

// settings is the resolved option set a cache constructor receives.
// Statistics are always collected; prometheus export and eviction
// callbacks are opt-in.
type settings[V any] struct {
	registry      *metric.MetricsRegistry
	component     string
	onEvict       EvictCallback[V]
	statsInterval time.Duration
}

// Option configures a cache constructor.
type Option[V any] func(*settings[V])

// WithMetrics exports cache activity as prometheus metrics labeled with
// the component name. Ignored when registry is nil or the name is empty.
func WithMetrics[V any](registry *metric.MetricsRegistry, component string) Option[V] {
	return func(s *settings[V]) {
		if registry != nil && component != "" {
			s.registry = registry
			s.component = component
		}
	}
}

// WithEvictionCallback sets the function invoked with each entry the
// cache evicts on its own, by capacity or expiry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(s *settings[V]) {
		s.onEvict = callback
	}
}

// WithStatsInterval sets how often caches with background cleanup
// refresh their aggregate gauges. Non-positive intervals are ignored.
func WithStatsInterval[V any](interval time.Duration) Option[V] {
	return func(s *settings[V]) {
		if interval > 0 {
			s.statsInterval = interval
		}
	}
}

// resolveOptions folds opts over the defaults.
func resolveOptions[V any](opts ...Option[V]) *settings[V] {
	s := &settings[V]{statsInterval: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
