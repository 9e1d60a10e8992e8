package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "canvaskit"

// Metrics holds the platform-level collectors every deployment gets.
// Component-specific series register separately through the registry.
type Metrics struct {
	ComponentStatus   *prometheus.GaugeVec
	BindingsResolved  *prometheus.CounterVec
	ResolveDuration   *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	ChannelConnected  prometheus.Gauge
	ChannelReconnects prometheus.Counter
	MessagesReceived  *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
}

func coreGaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func coreCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewMetrics builds the core collector set. Nothing is registered yet;
// the registry wires these into its prometheus.Registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: coreGaugeVec("component", "status",
			"Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			"component"),
		BindingsResolved: coreCounterVec("bindings", "resolved_total",
			"Total number of binding resolutions",
			"component", "source", "status"),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "duration_seconds",
			Help:      "Binding resolution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "operation"}),
		ErrorsTotal: coreCounterVec("errors", "total",
			"Total number of errors",
			"component", "type"),
		HealthCheckStatus: coreGaugeVec("health", "status",
			"Health check status (0=unhealthy, 1=healthy)",
			"component"),

		ChannelConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "connected",
			Help:      "Channel connection status (0=disconnected, 1=connected)",
		}),
		ChannelReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "reconnects_total",
			Help:      "Total number of channel reconnections",
		}),
		MessagesReceived: coreCounterVec("messages", "received_total",
			"Total number of messages received",
			"component", "type"),
		MessagesPublished: coreCounterVec("messages", "published_total",
			"Total number of messages published",
			"component", "topic"),
	}
}

func gaugeValue(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

// RecordComponentStatus sets the lifecycle gauge for a component.
func (c *Metrics) RecordComponentStatus(component string, status int) {
	c.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordBindingResolved counts one resolution outcome for a source.
func (c *Metrics) RecordBindingResolved(component, source, status string) {
	c.BindingsResolved.WithLabelValues(component, source, status).Inc()
}

// RecordResolveDuration observes how long a resolve operation took.
func (c *Metrics) RecordResolveDuration(component, operation string, duration time.Duration) {
	c.ResolveDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordError counts an error by component and type.
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHealthStatus sets the per-component health gauge.
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	c.HealthCheckStatus.WithLabelValues(component).Set(gaugeValue(healthy))
}

// RecordChannelStatus sets the channel connectivity gauge.
func (c *Metrics) RecordChannelStatus(connected bool) {
	c.ChannelConnected.Set(gaugeValue(connected))
}

// RecordChannelReconnect counts one reconnect attempt.
func (c *Metrics) RecordChannelReconnect() {
	c.ChannelReconnects.Inc()
}

// RecordMessageReceived counts an inbound message by type.
func (c *Metrics) RecordMessageReceived(component, messageType string) {
	c.MessagesReceived.WithLabelValues(component, messageType).Inc()
}

// RecordMessagePublished counts an outbound message by topic.
func (c *Metrics) RecordMessagePublished(component, topic string) {
	c.MessagesPublished.WithLabelValues(component, topic).Inc()
}
