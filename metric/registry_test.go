package metric

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mediajoin/errors"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_Register(t *testing.T) {
	tests := []struct {
		name     string
		register func(r *MetricsRegistry) error
		family   string
		touch    func()
	}{
		{
			name: "counter",
			register: func(r *MetricsRegistry) error {
				return r.RegisterCounter("mixer", "c", prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "h"}))
			},
			family: "test_counter",
		},
		{
			name: "gauge",
			register: func(r *MetricsRegistry) error {
				return r.RegisterGauge("mixer", "g", prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "h"}))
			},
			family: "test_gauge",
		},
		{
			name: "histogram",
			register: func(r *MetricsRegistry) error {
				h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_histogram", Help: "h"})
				h.Observe(0.5)
				return r.RegisterHistogram("mixer", "h", h)
			},
			family: "test_histogram",
		},
		{
			name: "counter vec",
			register: func(r *MetricsRegistry) error {
				v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "h"}, []string{"port"})
				v.WithLabelValues("in0").Inc()
				return r.RegisterCounterVec("mixer", "cv", v)
			},
			family: "test_counter_vec",
		},
		{
			name: "gauge vec",
			register: func(r *MetricsRegistry) error {
				v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge_vec", Help: "h"}, []string{"port"})
				v.WithLabelValues("in0").Set(1)
				return r.RegisterGaugeVec("mixer", "gv", v)
			},
			family: "test_gauge_vec",
		},
		{
			name: "histogram vec",
			register: func(r *MetricsRegistry) error {
				v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_histogram_vec", Help: "h"}, []string{"port"})
				v.WithLabelValues("in0").Observe(1)
				return r.RegisterHistogramVec("mixer", "hv", v)
			},
			family: "test_histogram_vec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewMetricsRegistry()
			require.NoError(t, tt.register(registry))
			assert.True(t, gatheredNames(t, registry)[tt.family])
		})
	}
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	require.NoError(t, registry.RegisterCounter("mixer", "dup", first))

	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter_2", Help: "h"})
	err := registry.RegisterCounter("mixer", "dup", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	clash := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	err = registry.RegisterCounter("other", "dup", clash)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gone_counter", Help: "h"})
	counter.Inc()
	require.NoError(t, registry.RegisterCounter("mixer", "gone", counter))
	assert.True(t, gatheredNames(t, registry)["gone_counter"])

	assert.True(t, registry.Unregister("mixer", "gone"))
	assert.False(t, gatheredNames(t, registry)["gone_counter"])
	assert.False(t, registry.Unregister("mixer", "gone"))

	require.NoError(t, registry.RegisterCounter("mixer", "gone", counter))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", i),
				Help: "h",
			})
			errs <- registry.RegisterCounter(fmt.Sprintf("element-%d", i), "c", c)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordElementState("mixer", 2)
	m.RecordHealthStatus("mixer", true)
	m.RecordError("mixer", "invalid")
	m.RecordError("mixer", "invalid")
	m.RecordNATSStatus(true)
	m.RecordNATSRTT(15 * time.Millisecond)
	m.RecordNATSReconnect()
	m.RecordCircuitBreakerState(1)
	m.RecordBufferPublished("video.out")
	m.RecordBufferReceived("video.in")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ElementState.WithLabelValues("mixer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthCheckStatus.WithLabelValues("mixer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("mixer", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.NATSRTT))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSReconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSCircuitBreaker))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuffersPublished.WithLabelValues("video.out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuffersReceived.WithLabelValues("video.in")))

	names := gatheredNames(t, registry)
	assert.True(t, names["mediajoin_element_state"])
	assert.True(t, names["mediajoin_transport_buffers_published_total"])
}
