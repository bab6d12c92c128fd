package element

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mediajoin/metric"
)

// elementMetrics holds Prometheus metrics for join and dispatch
type elementMetrics struct {
	arrivals       *prometheus.CounterVec // element, port
	dropped        *prometheus.CounterVec // element, port
	dispatches     *prometheus.CounterVec // element
	errors         *prometheus.CounterVec // element, kind
	duration       *prometheus.HistogramVec
	deliveries     *prometheus.CounterVec // element, port
	deliveryErrors *prometheus.CounterVec // element, port
	pullCycles     *prometheus.CounterVec // element, outcome
	pending        *prometheus.GaugeVec   // element
}

func newElementMetrics(registry *metric.MetricsRegistry, owner string) (*elementMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "element",
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &elementMetrics{
		arrivals:   counter("arrivals_total", "Buffers received on input ports", "element", "port"),
		dropped:    counter("dropped_total", "Buffers discarded by latest-wins replacement or inactive ports", "element", "port"),
		dispatches: counter("dispatches_total", "Complete sets transformed and routed", "element"),
		errors:     counter("errors_total", "Join, dispatch and delivery errors", "element", "kind"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "element",
			Name:      "dispatch_duration_seconds",
			Help:      "Transform dispatch duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"element"}),
		deliveries:     counter("deliveries_total", "Buffers accepted by output ports", "element", "port"),
		deliveryErrors: counter("delivery_errors_total", "Buffers refused by output ports", "element", "port"),
		pullCycles:     counter("pull_cycles_total", "Pull cycles by outcome", "element", "outcome"),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "element",
			Name:      "pending_ports",
			Help:      "Input ports currently holding a pending buffer",
		}, []string{"element"}),
	}

	counters := map[string]*prometheus.CounterVec{
		"arrivals":        m.arrivals,
		"dropped":         m.dropped,
		"dispatches":      m.dispatches,
		"errors":          m.errors,
		"deliveries":      m.deliveries,
		"delivery_errors": m.deliveryErrors,
		"pull_cycles":     m.pullCycles,
	}
	for name, c := range counters {
		if err := registry.RegisterCounterVec(owner, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterHistogramVec(owner, "dispatch_duration", m.duration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec(owner, "pending_ports", m.pending); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *elementMetrics) recordArrival(element, port string) {
	if m == nil {
		return
	}
	m.arrivals.WithLabelValues(element, port).Inc()
}

func (m *elementMetrics) recordDrop(element, port string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(element, port).Inc()
}

func (m *elementMetrics) recordDispatch(element string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(element).Observe(d.Seconds())
	if ok {
		m.dispatches.WithLabelValues(element).Inc()
	}
}

func (m *elementMetrics) recordError(element, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(element, kind).Inc()
}

func (m *elementMetrics) recordDelivery(element, port string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(element, port).Inc()
}

func (m *elementMetrics) recordDeliveryError(element, port string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(element, port).Inc()
}

func (m *elementMetrics) recordCycle(element, outcome string) {
	if m == nil {
		return
	}
	m.pullCycles.WithLabelValues(element, outcome).Inc()
}

func (m *elementMetrics) setPending(element string, n int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(element).Set(float64(n))
}
