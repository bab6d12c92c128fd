// Package metric provides Prometheus metrics for mediajoin.
//
// MetricsRegistry wraps a private prometheus.Registry. It registers the process-level
// Metrics (element state, health, error classes, NATS connection and transport
// counters) plus the Go runtime collectors, and lets each element register its own
// collectors under an owner name:
//
//	registry := metric.NewMetricsRegistry()
//	err := registry.RegisterCounterVec("mixer", "arrivals", arrivals)
//
// Registration is keyed by owner and metric name; a second registration under the
// same key, or a collector Prometheus already knows, returns an invalid-class error.
//
// Server exposes the registry on /metrics (OpenMetrics enabled) with a /health probe.
// Start blocks until its context is cancelled or Stop is called.
package metric
