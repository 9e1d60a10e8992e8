// Package metric exposes the runtime's Prometheus instrumentation.
//
// A MetricsRegistry owns one prometheus.Registry and splits it into
// two tiers. Core metrics cover what every deployment wants: binding
// resolution counts and latency, channel connectivity, message flow,
// error totals, and component status gauges. Component metrics sit on
// top, registered by whichever component needs them. Registrations are
// keyed by "component.metric", and a duplicate is refused with an
// invalid-class error instead of a prometheus panic.
//
// # Recording
//
//	registry := metric.NewMetricsRegistry()
//	core := registry.CoreMetrics()
//	core.RecordBindingResolved("resolver", "rest", "success")
//	core.RecordResolveDuration("resolver", "resolveMany", elapsed)
//	core.RecordChannelStatus(true)
//
// A component exporting its own series takes the MetricsRegistrar
// interface and hands its collectors over:
//
//	hits := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "canvaskit",
//	    Subsystem: "resolver",
//	    Name:      "cache_hits_total",
//	    Help:      "Resolver cache hits.",
//	})
//	if err := registrar.RegisterCounter("resolver", "cache_hits", hits); err != nil {
//	    return err
//	}
//
// Vector collectors go through RegisterCounterVec, RegisterGaugeVec,
// and RegisterHistogramVec.
//
// # Serving
//
// Server wraps promhttp and serves the scrape endpoint with
// OpenMetrics negotiation enabled, a plain /health probe, and an index
// page at the root:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
// Start blocks while serving and returns nil once Stop has shut the
// listener down. All registry operations are safe for concurrent use.
package metric
