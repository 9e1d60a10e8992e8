package worker

import (
	"github.com/c360/canvaskit/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetrics holds Prometheus metrics for one pool.
type poolMetrics struct {
	queueDepth  prometheus.Gauge
	utilization prometheus.Gauge
	submitted   prometheus.Counter
	processed   prometheus.Counter
	failed      prometheus.Counter
	dropped     prometheus.Counter
	duration    *prometheus.HistogramVec
}

// newPoolMetrics creates and registers pool metrics with the provided registry.
func newPoolMetrics(registry *metric.MetricsRegistry, name string) (*poolMetrics, error) {
	labels := prometheus.Labels{"pool": name}

	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "queue_depth",
			ConstLabels: labels,
			Help:        "Current number of queued work items",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Queue depth as a fraction of queue size",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "submitted_total",
			ConstLabels: labels,
			Help:        "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "processed_total",
			ConstLabels: labels,
			Help:        "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "failed_total",
			ConstLabels: labels,
			Help:        "Total work items whose processing returned an error",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "dropped_total",
			ConstLabels: labels,
			Help:        "Total work items dropped because the queue was full",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "canvaskit",
			Subsystem:   "worker",
			Name:        "processing_duration_seconds",
			ConstLabels: labels,
			Help:        "Time spent processing work items",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"status"}),
	}

	if err := registry.RegisterGauge(name, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "utilization", m.utilization); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "submitted_total", m.submitted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "processed_total", m.processed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "failed_total", m.failed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "dropped_total", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(name, "processing_duration_seconds", m.duration); err != nil {
		return nil, err
	}

	return m, nil
}
