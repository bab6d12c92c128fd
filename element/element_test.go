package element

import (
	"context"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/c360/mediajoin/component"
	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/join"
	"github.com/c360/mediajoin/metric"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/route"
	"github.com/c360/mediajoin/testutil"
	"github.com/c360/mediajoin/transform"
)

const (
	caps4x4 = "video/x-raw,format=GRAY8,width=4,height=4"
	caps2x2 = "video/x-raw,format=GRAY8,width=2,height=2"
)

func pushConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "test-element"
	cfg.Inputs = []port.Definition{
		{Name: "a", Caps: caps4x4},
		{Name: "b", Caps: caps2x2},
	}
	cfg.Outputs = []port.Definition{{Name: "out", Caps: caps4x4}}
	return cfg
}

var copyFirst = transform.Built{InPlace: transform.Copy{}}

type ElementSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	sink     *testutil.RecordingSink
	registry *metric.MetricsRegistry
	elem     *Element
}

func (s *ElementSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
	s.sink = testutil.NewRecordingSink()
	s.registry = metric.NewMetricsRegistry()

	e, err := New(pushConfig(), copyFirst, component.Dependencies{MetricsRegistry: s.registry}, WithSink(s.sink))
	s.Require().NoError(err)
	s.Require().NoError(e.Initialize())
	s.Require().NoError(e.Start(s.ctx))
	s.elem = e
}

func (s *ElementSuite) TearDownTest() {
	s.NoError(s.elem.Stop(5 * time.Second))
	s.cancel()
}

func (s *ElementSuite) TestTwoPortScenario() {
	a := testutil.At(testutil.Sequential(testutil.Gray(4, 4), 0), 10*time.Millisecond)
	b := testutil.At(testutil.Filled(testutil.Gray(2, 2), 9), 30*time.Millisecond)

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", a))
	s.Equal(0, s.sink.Len())
	s.Equal(join.Pending, s.elem.Pending()["a"])

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "b", b))
	out := s.sink.On("out")
	s.Require().Len(out, 1)
	s.Equal(a.Data, out[0].Data)
	s.Equal(30*time.Millisecond, out[0].PTS)
	s.Equal(testutil.Gray(4, 4), out[0].Format)

	s.Equal(join.Empty, s.elem.Pending()["a"])
	s.Equal(join.Empty, s.elem.Pending()["b"])
}

func (s *ElementSuite) TestLatestWins() {
	first := testutil.Filled(testutil.Gray(4, 4), 1)
	second := testutil.Filled(testutil.Gray(4, 4), 2)

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", first))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", second))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "b", testutil.Filled(testutil.Gray(2, 2), 0)))

	out := s.sink.On("out")
	s.Require().Len(out, 1)
	s.Equal(second.Data, out[0].Data)

	s.Equal(1.0, promtest.ToFloat64(s.elem.metrics.dropped.WithLabelValues("test-element", "a")))
	s.Equal(1.0, promtest.ToFloat64(s.elem.metrics.dispatches.WithLabelValues("test-element")))
	s.Equal(3.0, promtest.ToFloat64(s.elem.metrics.arrivals.WithLabelValues("test-element", "a"))+
		promtest.ToFloat64(s.elem.metrics.arrivals.WithLabelValues("test-element", "b")))
}

func (s *ElementSuite) TestSizeMismatchRejected() {
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 1)))

	err := s.elem.OnBufferArrived(s.ctx, "b", testutil.Filled(testutil.Gray(3, 3), 1))
	s.ErrorIs(err, errors.ErrSizeMismatch)
	s.True(errors.IsInvalid(err))

	s.Equal(join.Pending, s.elem.Pending()["a"])
	s.Equal(join.Empty, s.elem.Pending()["b"])
	s.Equal(0, s.sink.Len())

	h := s.elem.Health()
	s.True(h.Healthy)
	s.Equal(1, h.ErrorCount)
	s.Contains(h.LastError, "size")
	s.ErrorIs(s.elem.LastError(), errors.ErrSizeMismatch)
	s.Equal(1.0, promtest.ToFloat64(s.elem.metrics.errors.WithLabelValues("test-element", "size")))
}

func (s *ElementSuite) TestUnknownPort() {
	err := s.elem.OnBufferArrived(s.ctx, "z", testutil.Filled(testutil.Gray(4, 4), 1))
	s.ErrorIs(err, errors.ErrUnknownPort)
}

func (s *ElementSuite) TestDeliveryRefusal() {
	s.Require().NoError(s.elem.AddOutput(port.Definition{Name: "copy", Caps: caps4x4}))
	s.sink.Refuse("out", errors.New("downstream full"))

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 5)))
	err := s.elem.OnBufferArrived(s.ctx, "b", testutil.Filled(testutil.Gray(2, 2), 0))

	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrDelivery)
	s.True(errors.IsTransient(err))
	failed := route.DeliveryErrors(err)
	s.Require().Len(failed, 1)
	s.Equal("out", failed[0].Port)

	s.Len(s.sink.On("copy"), 1)
	s.Empty(s.sink.On("out"))
	s.Equal(1.0, promtest.ToFloat64(s.elem.metrics.deliveryErrors.WithLabelValues("test-element", "out")))
}

func (s *ElementSuite) TestAddInputJoinsCompleteness() {
	s.Require().NoError(s.elem.AddInput(port.Definition{Name: "c", Caps: caps2x2}))
	s.Equal([]string{"a", "b", "c"}, s.elem.InputNames())

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 1)))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "b", testutil.Filled(testutil.Gray(2, 2), 1)))
	s.Equal(0, s.sink.Len())

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "c", testutil.Filled(testutil.Gray(2, 2), 1)))
	s.Equal(1, s.sink.Len())

	err := s.elem.AddInput(port.Definition{Name: "a", Caps: caps2x2})
	s.ErrorIs(err, errors.ErrDuplicateName)
}

func (s *ElementSuite) TestRemovePortWhileRunning() {
	err := s.elem.RemovePort("b")
	s.ErrorIs(err, errors.ErrRunning)

	s.Require().NoError(s.elem.Stop(time.Second))
	s.Require().NoError(s.elem.RemovePort("b"))
	s.Equal([]string{"a"}, s.elem.InputNames())

	s.Require().NoError(s.elem.RemovePort("out"))
	s.Empty(s.elem.OutputNames())

	s.ErrorIs(s.elem.RemovePort("nope"), errors.ErrNotFound)
}

func (s *ElementSuite) TestRemoveInputKeepsSameNamedOutput() {
	s.Require().NoError(s.elem.Stop(time.Second))
	s.Require().NoError(s.elem.AddOutput(port.Definition{Name: "b", Caps: caps4x4}))

	s.Require().NoError(s.elem.RemoveInput("b"))
	s.Equal([]string{"a"}, s.elem.InputNames())
	s.Equal([]string{"out", "b"}, s.elem.OutputNames())

	s.Require().NoError(s.elem.RemoveOutput("b"))
	s.Equal([]string{"out"}, s.elem.OutputNames())
	s.ErrorIs(s.elem.RemoveOutput("b"), errors.ErrNotFound)
	s.ErrorIs(s.elem.RemoveInput("b"), errors.ErrNotFound)

	s.Require().NoError(s.elem.Initialize())
	s.Require().NoError(s.elem.Start(s.ctx))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 5)))
	s.Len(s.sink.On("out"), 1)
}

func (s *ElementSuite) TestRemovePortSharedNameResyncsRouter() {
	s.Require().NoError(s.elem.Stop(time.Second))
	s.Require().NoError(s.elem.AddOutput(port.Definition{Name: "b", Caps: caps4x4}))

	s.Require().NoError(s.elem.RemovePort("b"))
	s.Equal([]string{"a"}, s.elem.InputNames())
	s.Equal([]string{"out"}, s.elem.OutputNames())

	s.Require().NoError(s.elem.Initialize())
	s.Require().NoError(s.elem.Start(s.ctx))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 5)))
	s.Equal(1, s.sink.Len())
	s.Len(s.sink.On("out"), 1)
}

func (s *ElementSuite) TestTransportHealth() {
	s.True(s.elem.Health().Healthy)

	s.elem.SetTransportHealthy(false)
	health := s.elem.Health()
	s.False(health.Healthy)
	s.Equal("transport disconnected", health.LastError)
	s.Equal(component.StateStarted.String(), health.State)

	s.elem.SetTransportHealthy(true)
	s.True(s.elem.Health().Healthy)
}

func (s *ElementSuite) TestDiscovery() {
	meta := s.elem.Meta()
	s.Equal("test-element", meta.Name)
	s.Equal("processor", meta.Type)

	s.Require().Len(s.elem.InputPorts(), 2)
	s.Equal("a", s.elem.InputPorts()[0].Name)
	s.Equal(port.DirectionOutput, s.elem.OutputPorts()[0].Direction)

	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 1)))
	flow := s.elem.DataFlow()
	s.Equal(1, flow.Pending)
	s.False(flow.LastActivity.IsZero())

	h := s.elem.Health()
	s.Equal("started", h.State)
	s.Positive(h.Uptime)
}

func (s *ElementSuite) TestDispatchDurationObserved() {
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "a", testutil.Filled(testutil.Gray(4, 4), 1)))
	s.Require().NoError(s.elem.OnBufferArrived(s.ctx, "b", testutil.Filled(testutil.Gray(2, 2), 1)))

	families, err := s.registry.PrometheusRegistry().Gather()
	s.Require().NoError(err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	duration := byName["mediajoin_element_dispatch_duration_seconds"]
	s.Require().NotNil(duration)
	s.Require().Len(duration.GetMetric(), 1)
	s.Equal(uint64(1), duration.GetMetric()[0].GetHistogram().GetSampleCount())

	deliveries := byName["mediajoin_element_deliveries_total"]
	s.Require().NotNil(deliveries)
	s.Equal(1.0, deliveries.GetMetric()[0].GetCounter().GetValue())
}

func TestElementSuite(t *testing.T) {
	suite.Run(t, new(ElementSuite))
}

func TestOnBufferArrived_NotStarted(t *testing.T) {
	e, err := New(pushConfig(), copyFirst, component.Dependencies{}, WithSink(testutil.NewRecordingSink()))
	require.NoError(t, err)

	err = e.OnBufferArrived(context.Background(), "a", testutil.Filled(testutil.Gray(4, 4), 1))
	assert.ErrorIs(t, err, errors.ErrNotStarted)
	assert.True(t, errors.IsTransient(err))
}

func TestNew_SetupErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		opts    []Option
		wantErr error
	}{
		{
			name:    "no sink",
			mutate:  func(*Config) {},
			wantErr: errors.ErrMissingConfig,
		},
		{
			name:    "bad discipline",
			mutate:  func(c *Config) { c.Discipline = "poll" },
			opts:    []Option{WithSink(testutil.NewRecordingSink())},
			wantErr: errors.ErrInvalidConfig,
		},
		{
			name:    "unknown layout",
			mutate:  func(c *Config) { c.Inputs[0].Caps = "video/x-raw,format=NV12,width=4,height=4" },
			opts:    []Option{WithSink(testutil.NewRecordingSink())},
			wantErr: errors.ErrInvalidFormat,
		},
		{
			name: "duplicate port",
			mutate: func(c *Config) {
				c.Inputs = append(c.Inputs, port.Definition{Name: "a", Caps: caps2x2})
			},
			opts:    []Option{WithSink(testutil.NewRecordingSink())},
			wantErr: errors.ErrDuplicateName,
		},
		{
			name:    "pull without timeout",
			mutate:  func(c *Config) { c.Discipline = Pull; c.PullTimeout = 0 },
			opts:    []Option{WithSink(testutil.NewRecordingSink())},
			wantErr: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := pushConfig()
			tt.mutate(&cfg)
			e, err := New(cfg, copyFirst, component.Dependencies{}, tt.opts...)
			assert.Nil(t, e)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsFatal(err))
		})
	}

	_, err := New(pushConfig(), transform.Built{}, component.Dependencies{}, WithSink(testutil.NewRecordingSink()))
	assert.True(t, errors.IsFatal(err))
}

func TestTransformErrorLeavesPendingEmpty(t *testing.T) {
	sink := testutil.NewRecordingSink()
	cfg := pushConfig()
	// the mean mixer needs every input to match the output shape
	e, err := New(cfg, transform.Built{InPlace: transform.MeanMixer{}}, component.Dependencies{}, WithSink(sink))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(time.Second)

	require.NoError(t, e.OnBufferArrived(ctx, "a", testutil.Filled(testutil.Gray(4, 4), 1)))
	err = e.OnBufferArrived(ctx, "b", testutil.Filled(testutil.Gray(2, 2), 1))
	assert.ErrorIs(t, err, errors.ErrSizeMismatch)
	assert.True(t, errors.IsInvalid(err))

	assert.Zero(t, sink.Len())
	for name, state := range e.Pending() {
		assert.Equal(t, join.Empty, state, name)
	}
	assert.Equal(t, component.StateStarted, e.State())
}
