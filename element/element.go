package element

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/mediajoin/component"
	"github.com/c360/mediajoin/dispatch"
	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/join"
	"github.com/c360/mediajoin/metric"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/route"
	"github.com/c360/mediajoin/transform"
	"github.com/c360/mediajoin/view"
)

// Version is reported in Meta
const Version = "0.1.0"

// Option configures an Element
type Option func(*Element)

// WithSink sets where routed outputs are pushed
func WithSink(s route.Sink) Option {
	return func(e *Element) {
		e.sink = s
	}
}

// Element is a multi-port synchronized join-and-dispatch element
type Element struct {
	cfg    Config
	name   string
	logger *slog.Logger

	registry   *port.Registry
	dispatcher *dispatch.Dispatcher
	router     *route.Router
	coord      *join.Coordinator
	queue      *join.QueueSource
	sink       route.Sink

	metrics *elementMetrics
	core    *metric.Metrics
	dropLog *rate.Limiter

	lifecycleMu sync.Mutex
	mu          sync.RWMutex
	state       component.State
	startTime   time.Time
	cancel      context.CancelFunc
	group       *errgroup.Group
	done        chan struct{}
	lastError   error

	transportDown atomic.Bool

	arrivals     atomic.Int64
	dispatches   atomic.Int64
	errorCount   atomic.Int64
	bytesOut     atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

// New builds an element from cfg. Port definitions are resolved against
// cfg.Formats and the transform is bound to the resulting ports. Every setup
// error is fatal.
func New(cfg Config, t transform.Built, deps component.Dependencies, opts ...Option) (*Element, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table := cfg.Formats
	if table == nil {
		table = format.DefaultTable()
	}
	registry, err := port.BuildFromDefinitions(cfg.Inputs, cfg.Outputs, table)
	if err != nil {
		return nil, errors.WrapFatal(err, "Element", "New", "port setup")
	}

	e := &Element{
		cfg:      cfg,
		name:     cfg.Name,
		logger:   deps.GetLoggerWithComponent(cfg.Name),
		registry: registry,
		state:    component.StateCreated,
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(registry.Outputs()) > 0 && e.sink == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: no sink for %d output ports", errors.ErrMissingConfig, len(registry.Outputs())),
			"Element", "New", "sink check")
	}

	e.dispatcher, err = t.Dispatcher(registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "Element", "New", "transform binding")
	}

	e.router = route.NewRouter(registry.OutputNames(), e.sink)
	e.router.OnDelivered = e.delivered

	perSecond := cfg.DropWarningsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	e.dropLog = rate.NewLimiter(rate.Limit(perSecond), 1)

	if deps.MetricsRegistry != nil {
		e.core = deps.MetricsRegistry.CoreMetrics()
		e.metrics, err = newElementMetrics(deps.MetricsRegistry, cfg.Name)
		if err != nil {
			e.logger.Error("Failed to initialize element metrics", "error", err)
			e.metrics = nil
		}
	}

	e.coord, err = join.New(registry.Inputs(), e.handleSet,
		join.WithPullTimeout(cfg.PullTimeout),
		join.WithStopOnEndOfStream(cfg.StopOnEndOfStream),
		join.WithDropHook(e.dropped),
		join.WithErrorHook(func(err error) { e.recordError(err) }),
		join.WithCycleHook(e.cycled),
		join.WithLogger(e.logger),
	)
	if err != nil {
		return nil, errors.WrapFatal(err, "Element", "New", "coordinator setup")
	}

	if cfg.Discipline == Pull {
		qopts := []join.QueueOption{
			join.WithQueuePolicy(cfg.QueuePolicy),
			join.WithQueueDropHook(e.dropped),
		}
		if deps.MetricsRegistry != nil {
			qopts = append(qopts, join.WithQueueMetrics(deps.MetricsRegistry, cfg.Name))
		}
		e.queue, err = join.NewQueueSource(cfg.QueueCapacity, registry.InputNames(), qopts...)
		if err != nil {
			return nil, errors.WrapFatal(err, "Element", "New", "pull queue setup")
		}
	}

	e.recordState(component.StateCreated)
	return e, nil
}

// Initialize prepares the element to start. It may be called again after Stop.
func (e *Element) Initialize() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	switch e.State() {
	case component.StateStarted:
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Element", "Initialize", "state check")
	case component.StateFailed:
		return errors.WrapFatal(fmt.Errorf("element failed: %w", e.LastError()), "Element", "Initialize", "state check")
	}

	if in, _ := e.registry.Len(); in == 0 {
		e.logger.Warn("Element has no input ports; nothing will be dispatched")
	}
	e.setState(component.StateInitialized)
	return nil
}

// Start begins accepting buffers. In pull mode it launches the pull loop bound
// to ctx.
func (e *Element) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(fmt.Errorf("context done before start: %w", err), "Element", "Start", "context check")
	}

	switch e.State() {
	case component.StateStarted:
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Element", "Start", "state check")
	case component.StateInitialized:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("element not initialized (state %s)", e.State()), "Element", "Start", "state check")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.group = g
	e.done = done
	e.startTime = time.Now()
	e.lastError = nil
	e.mu.Unlock()

	if e.cfg.Discipline == Pull {
		g.Go(func() error {
			defer close(done)
			err := e.coord.Run(gctx, e.queue)
			if err != nil {
				e.recordError(err)
				e.setState(component.StateFailed)
				e.logger.Error("Pull loop stopped", "error", err)
				return err
			}
			if gctx.Err() == nil {
				e.logger.Info("Pull loop finished at end of stream")
			}
			return nil
		})
	} else {
		g.Go(func() error {
			defer close(done)
			<-gctx.Done()
			return nil
		})
	}

	e.setState(component.StateStarted)
	e.logger.Info("Element started",
		"discipline", e.cfg.Discipline,
		"inputs", e.registry.InputNames(),
		"outputs", e.registry.OutputNames())
	return nil
}

// Stop cancels background work and waits up to timeout for it. Pending buffers
// are discarded. Stopping an element that is not started is a no-op. If the
// wait times out, Stop returns a transient error and may be called again.
func (e *Element) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	e.mu.RLock()
	cancel, g := e.cancel, e.group
	e.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- g.Wait()
	}()

	// On timeout the element stays started so a later Stop can wait again.
	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout), "Element", "Stop", "graceful shutdown")
	}

	e.mu.Lock()
	e.cancel, e.group = nil, nil
	e.mu.Unlock()

	e.coord.Reset()
	e.metrics.setPending(e.name, 0)
	if e.State() != component.StateFailed {
		e.setState(component.StateStopped)
	}
	e.logger.Info("Element stopped")
	return nil
}

// Done is closed when the background work started by the last Start ends: on
// Stop, on a fatal pull error, or at end of stream when StopOnEndOfStream is set.
// It returns nil before the first Start.
func (e *Element) Done() <-chan struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.done
}

// OnBufferArrived hands a buffer arriving on an input port to the element. In
// push mode a completed set is dispatched before this returns and the dispatch
// error, if any, is returned. In pull mode the buffer is queued.
func (e *Element) OnBufferArrived(ctx context.Context, portName string, buf *view.Buffer) error {
	if e.State() != component.StateStarted {
		return errors.WrapTransient(errors.ErrNotStarted, "Element", "OnBufferArrived", "state check")
	}

	e.arrivals.Add(1)
	e.touch()
	e.metrics.recordArrival(e.name, portName)

	if e.cfg.Discipline == Pull {
		if err := e.queue.Push(ctx, portName, buf); err != nil {
			e.recordError(err)
			return err
		}
		return nil
	}

	_, err := e.coord.Arrive(ctx, portName, buf)
	e.metrics.setPending(e.name, e.coord.PendingCount())
	if err != nil {
		e.recordError(err)
		return err
	}
	return nil
}

// AddInput registers an input port. The port joins completeness immediately.
func (e *Element) AddInput(def port.Definition) error {
	p, err := def.Resolve(port.DirectionInput, e.formats())
	if err != nil {
		return err
	}
	if err := e.registry.Add(p); err != nil {
		return err
	}
	if e.queue != nil {
		if err := e.queue.AddPort(p.Name); err != nil {
			_ = e.registry.Remove(port.DirectionInput, p.Name)
			return err
		}
	}
	if err := e.coord.AddPort(p); err != nil {
		_ = e.registry.Remove(port.DirectionInput, p.Name)
		if e.queue != nil {
			e.queue.RemovePort(p.Name)
		}
		return err
	}
	return nil
}

// AddOutput registers an output port. The transform must then produce one more
// output.
func (e *Element) AddOutput(def port.Definition) error {
	p, err := def.Resolve(port.DirectionOutput, e.formats())
	if err != nil {
		return err
	}
	if e.sink == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: no sink for output %q", errors.ErrMissingConfig, p.Name), "Element", "AddOutput", "sink check")
	}
	if err := e.registry.Add(p); err != nil {
		return err
	}
	e.router.SetPorts(e.registry.OutputNames())
	return nil
}

// RemovePort unregisters every port called name, input and output alike. Ports
// cannot be removed while the element is started, nor while an input holds a
// pending buffer.
func (e *Element) RemovePort(name string) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if err := e.checkRemovable(name); err != nil {
		return err
	}

	_, isInput := e.registry.Input(name)
	_, isOutput := e.registry.Output(name)
	if !isInput && !isOutput {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNotFound, name), "Element", "RemovePort", "port lookup")
	}
	if isInput {
		if err := e.removeInput(name); err != nil {
			return err
		}
	}
	if isOutput {
		return e.removeOutput(name)
	}
	return nil
}

// RemoveInput unregisters the named input port
func (e *Element) RemoveInput(name string) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if err := e.checkRemovable(name); err != nil {
		return err
	}
	return e.removeInput(name)
}

// RemoveOutput unregisters the named output port. The transform must then
// produce one output fewer.
func (e *Element) RemoveOutput(name string) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if err := e.checkRemovable(name); err != nil {
		return err
	}
	return e.removeOutput(name)
}

func (e *Element) checkRemovable(name string) error {
	if e.State() == component.StateStarted {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cannot remove %q", errors.ErrRunning, name), "Element", "RemovePort", "state check")
	}
	return nil
}

func (e *Element) removeInput(name string) error {
	if _, ok := e.registry.Input(name); !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: input %q", errors.ErrNotFound, name), "Element", "RemoveInput", "port lookup")
	}
	if err := e.coord.RemovePort(name); err != nil {
		return err
	}
	if e.queue != nil {
		e.queue.RemovePort(name)
	}
	return e.registry.Remove(port.DirectionInput, name)
}

// removeOutput keeps the router in step with the registry
func (e *Element) removeOutput(name string) error {
	defer e.router.SetPorts(e.registry.OutputNames())
	return e.registry.Remove(port.DirectionOutput, name)
}

// Pending reports which inputs hold an undispatched buffer
func (e *Element) Pending() map[string]join.PortState {
	return e.coord.Pending()
}

// SetActive includes or excludes a request-presence input from completeness
func (e *Element) SetActive(name string, active bool) error {
	return e.coord.SetActive(name, active)
}

// InputNames returns the input port names in declaration order
func (e *Element) InputNames() []string {
	return e.registry.InputNames()
}

// OutputNames returns the output port names in declaration order
func (e *Element) OutputNames() []string {
	return e.registry.OutputNames()
}

// State returns the lifecycle state
func (e *Element) State() component.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastError returns the most recent mid-stream error since Start
func (e *Element) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// Meta returns basic element information
func (e *Element) Meta() component.Metadata {
	return component.Metadata{
		Name:        e.name,
		Type:        "processor",
		Description: fmt.Sprintf("%s join of %d inputs into %d outputs", e.cfg.Discipline, len(e.InputNames()), len(e.OutputNames())),
		Version:     Version,
	}
}

// InputPorts returns the input ports in declaration order
func (e *Element) InputPorts() []port.Port {
	return e.registry.Inputs()
}

// OutputPorts returns the output ports in declaration order
func (e *Element) OutputPorts() []port.Port {
	return e.registry.Outputs()
}

// Health returns the current health status
func (e *Element) Health() component.HealthStatus {
	e.mu.RLock()
	state, started, lastErr := e.state, e.startTime, e.lastError
	e.mu.RUnlock()

	status := component.HealthStatus{
		Healthy:    state == component.StateStarted && !e.transportDown.Load(),
		State:      state.String(),
		LastCheck:  time.Now(),
		ErrorCount: int(e.errorCount.Load()),
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	} else if e.transportDown.Load() {
		status.LastError = "transport disconnected"
	}
	if state == component.StateStarted {
		status.Uptime = time.Since(started)
	}
	if e.core != nil {
		e.core.RecordHealthStatus(e.name, status.Healthy)
	}
	return status
}

// SetTransportHealthy records whether the transport carrying buffers to and from
// the ports is connected. A started element reports unhealthy while it is not.
func (e *Element) SetTransportHealthy(healthy bool) {
	if e.transportDown.Swap(!healthy) == !healthy {
		return
	}
	if healthy {
		e.logger.Info("Transport connected")
	} else {
		e.logger.Warn("Transport disconnected")
	}
	e.Health()
}

// DataFlow returns data flow rates averaged since Start
func (e *Element) DataFlow() component.FlowMetrics {
	e.mu.RLock()
	started := e.startTime
	e.mu.RUnlock()

	flow := component.FlowMetrics{Pending: e.coord.PendingCount()}
	if last := e.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}
	if arrivals := e.arrivals.Load(); arrivals > 0 {
		flow.ErrorRate = float64(e.errorCount.Load()) / float64(arrivals)
	}
	if !started.IsZero() {
		if secs := time.Since(started).Seconds(); secs > 0 {
			flow.SetsPerSecond = float64(e.dispatches.Load()) / secs
			flow.BytesPerSecond = float64(e.bytesOut.Load()) / secs
		}
	}
	return flow
}

// handleSet runs under the coordinator lock
func (e *Element) handleSet(ctx context.Context, set join.Set) error {
	start := time.Now()
	outputs, err := e.dispatcher.Dispatch(ctx, set)
	e.metrics.recordDispatch(e.name, time.Since(start), err == nil)
	if err != nil {
		return err
	}
	e.dispatches.Add(1)

	if err := e.router.Route(ctx, outputs); err != nil {
		for _, de := range route.DeliveryErrors(err) {
			e.metrics.recordDeliveryError(e.name, de.Port)
		}
		return errors.Wrap(err, "Element", "handleSet", "route outputs")
	}
	return nil
}

func (e *Element) delivered(portName string, buf *view.Buffer) {
	e.bytesOut.Add(int64(buf.Len()))
	e.touch()
	e.metrics.recordDelivery(e.name, portName)
}

func (e *Element) dropped(portName string, buf *view.Buffer) {
	e.metrics.recordDrop(e.name, portName)
	if buf != nil && e.dropLog.Allow() {
		e.logger.Warn("Buffer dropped", "port", portName, "buffer", buf.ID, "pts", buf.PTS)
	}
}

func (e *Element) cycled(outcome join.Outcome) {
	e.metrics.recordCycle(e.name, outcome.String())
	e.metrics.setPending(e.name, e.coord.PendingCount())
}

func (e *Element) recordError(err error) {
	e.errorCount.Add(1)
	e.mu.Lock()
	e.lastError = err
	e.mu.Unlock()

	class := errors.Classify(err)
	e.metrics.recordError(e.name, errorKind(err))
	if e.core != nil {
		e.core.RecordError(e.name, class.String())
	}
	e.logger.Warn("Element error", "class", class, "error", err)
}

func (e *Element) setState(s component.State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.recordState(s)
}

func (e *Element) recordState(s component.State) {
	if e.core != nil {
		e.core.RecordElementState(e.name, int(s))
	}
}

func (e *Element) touch() {
	e.lastActivity.Store(time.Now().UnixNano())
}

func (e *Element) formats() *format.Table {
	if e.cfg.Formats != nil {
		return e.cfg.Formats
	}
	return format.DefaultTable()
}

// errorKind labels an error for the errors_total metric
func errorKind(err error) string {
	switch {
	case errors.Is(err, errors.ErrDelivery):
		return "delivery"
	case errors.Is(err, errors.ErrSizeMismatch):
		return "size"
	case errors.Is(err, errors.ErrArityMismatch):
		return "arity"
	case errors.Is(err, errors.ErrTransform):
		return "transform"
	case errors.Is(err, errors.ErrUnknownPort):
		return "unknown_port"
	default:
		return errors.Classify(err).String()
	}
}

var _ component.LifecycleComponent = (*Element)(nil)
