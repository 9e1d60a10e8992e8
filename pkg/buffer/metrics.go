package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/canvaskit/metric"
)

// bufferMetrics exports buffer activity to Prometheus. Built only when
// WithMetrics is supplied.
type bufferMetrics struct {
	writes      prometheus.Counter
	reads       prometheus.Counter
	peeks       prometheus.Counter
	overflows   prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func bufferCounter(component, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "canvaskit",
		Subsystem:   "buffer",
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"component": component},
	})
}

func bufferGauge(component, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "canvaskit",
		Subsystem:   "buffer",
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"component": component},
	})
}

// newBufferMetrics builds the per-buffer collectors and registers them
// under the given component name. The first registration failure
// aborts the whole set.
func newBufferMetrics(registry *metric.MetricsRegistry, component string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		writes:      bufferCounter(component, "writes_total", "Total items written to the buffer"),
		reads:       bufferCounter(component, "reads_total", "Total items read from the buffer"),
		peeks:       bufferCounter(component, "peeks_total", "Total non-destructive reads"),
		overflows:   bufferCounter(component, "overflows_total", "Total writes that arrived at a full buffer"),
		drops:       bufferCounter(component, "drops_total", "Total items discarded by the overflow policy"),
		size:        bufferGauge(component, "size", "Current number of buffered items"),
		utilization: bufferGauge(component, "utilization", "Fill level as a fraction of capacity"),
	}

	counters := map[string]prometheus.Counter{
		"buffer_writes":    m.writes,
		"buffer_reads":     m.reads,
		"buffer_peeks":     m.peeks,
		"buffer_overflows": m.overflows,
		"buffer_drops":     m.drops,
	}
	for key, counter := range counters {
		if err := registry.RegisterCounter(component, key, counter); err != nil {
			return nil, err
		}
	}

	gauges := map[string]prometheus.Gauge{
		"buffer_size":        m.size,
		"buffer_utilization": m.utilization,
	}
	for key, gauge := range gauges {
		if err := registry.RegisterGauge(component, key, gauge); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// wrote counts n written items and refreshes the fill gauges.
func (m *bufferMetrics) wrote(n, size, capacity int) {
	m.writes.Add(float64(n))
	m.fill(size, capacity)
}

// read counts n consumed items and refreshes the fill gauges.
func (m *bufferMetrics) read(n, size, capacity int) {
	m.reads.Add(float64(n))
	m.fill(size, capacity)
}

func (m *bufferMetrics) peeked() {
	m.peeks.Inc()
}

// dropped counts one overflow event and the item it discarded.
func (m *bufferMetrics) dropped() {
	m.overflows.Inc()
	m.drops.Inc()
}

func (m *bufferMetrics) fill(size, capacity int) {
	m.size.Set(float64(size))
	if capacity > 0 {
		m.utilization.Set(float64(size) / float64(capacity))
	}
}
