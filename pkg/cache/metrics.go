package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/metric"
)

// cacheMetrics mirrors cache activity into prometheus collectors.
// Counters are incremented directly on each operation rather than
// scraped from Statistics, so the two views never disagree on totals.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func cacheCounter(component, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "canvaskit",
		Subsystem:   "cache",
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"component": component},
	})
}

// newCacheMetrics builds the collector set and registers it under the
// component name. A duplicate component name fails registration.
func newCacheMetrics(registry *metric.MetricsRegistry, component string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits:      cacheCounter(component, "hits_total", "Lookups served from the cache"),
		misses:    cacheCounter(component, "misses_total", "Lookups that found nothing usable"),
		sets:      cacheCounter(component, "sets_total", "Stores into the cache"),
		deletes:   cacheCounter(component, "deletes_total", "Explicit removals"),
		evictions: cacheCounter(component, "evictions_total", "Removals forced by capacity or expiry"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "canvaskit",
			Subsystem:   "cache",
			Name:        "size",
			Help:        "Current number of cached entries",
			ConstLabels: prometheus.Labels{"component": component},
		}),
	}

	counters := map[string]prometheus.Counter{
		"cache_hits":      m.hits,
		"cache_misses":    m.misses,
		"cache_sets":      m.sets,
		"cache_deletes":   m.deletes,
		"cache_evictions": m.evictions,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(component, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(component, "cache_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) recordHit()      { m.hits.Inc() }
func (m *cacheMetrics) recordMiss()     { m.misses.Inc() }
func (m *cacheMetrics) recordSet()      { m.sets.Inc() }
func (m *cacheMetrics) recordDelete()   { m.deletes.Inc() }
func (m *cacheMetrics) recordEviction() { m.evictions.Inc() }

func (m *cacheMetrics) updateSize(size int) { m.size.Set(float64(size)) }

// recorder fans cache events out to the always-on Statistics and, when
// configured, the prometheus collectors. Every cache implementation
// records through one of these so the two views cannot drift.
type recorder struct {
	stats   *Statistics
	metrics *cacheMetrics
}

// newRecorder builds the stats/metrics pair for a cache, registering
// collectors when the settings ask for them.
func newRecorder[V any](opts *settings[V], constructor string) (recorder, error) {
	r := recorder{stats: NewStatistics()}
	if opts.registry != nil && opts.component != "" {
		m, err := newCacheMetrics(opts.registry, opts.component)
		if err != nil {
			return r, errors.WrapTransient(err, "cache", constructor, "metrics registration")
		}
		r.metrics = m
	}
	return r, nil
}

func (r *recorder) lookup(hit bool) {
	if hit {
		r.stats.Hit()
		if r.metrics != nil {
			r.metrics.recordHit()
		}
		return
	}
	r.stats.Miss()
	if r.metrics != nil {
		r.metrics.recordMiss()
	}
}

func (r *recorder) stored() {
	r.stats.Set()
	if r.metrics != nil {
		r.metrics.recordSet()
	}
}

func (r *recorder) deleted(n int) {
	for range n {
		r.stats.Delete()
		if r.metrics != nil {
			r.metrics.recordDelete()
		}
	}
}

func (r *recorder) evicted(n int) {
	for range n {
		r.stats.Eviction()
		if r.metrics != nil {
			r.metrics.recordEviction()
		}
	}
}

func (r *recorder) sized(n int) {
	r.stats.UpdateSize(int64(n))
	if r.metrics != nil {
		r.metrics.updateSize(n)
	}
}
