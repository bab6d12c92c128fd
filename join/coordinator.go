package join

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/view"
)

// DefaultPullTimeout bounds the wait on each port during a pull cycle
const DefaultPullTimeout = 500 * time.Millisecond

// Handler consumes one complete set. It runs with the coordinator lock held and
// must not call back into the coordinator.
type Handler func(ctx context.Context, set Set) error

// DropHook receives buffers the coordinator discards: replaced pending buffers
// and arrivals on inactive ports. It runs with the coordinator lock held.
type DropHook func(port string, buf *view.Buffer)

// Source yields buffers per port for pull mode. Pop waits at most timeout and
// reports false if nothing arrived.
type Source interface {
	Pop(ctx context.Context, port string, timeout time.Duration) (*view.Buffer, bool)
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPullTimeout sets the per-port wait used by Cycle
func WithPullTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pullTimeout = d
		}
	}
}

// WithStopOnEndOfStream makes Run return once a cycle reports EndOfStream
func WithStopOnEndOfStream(stop bool) Option {
	return func(c *Coordinator) {
		c.stopOnEOS = stop
	}
}

// WithDropHook installs a hook for discarded buffers
func WithDropHook(h DropHook) Option {
	return func(c *Coordinator) {
		c.onDrop = h
	}
}

// WithErrorHook receives handler errors that Run does not stop on
func WithErrorHook(h func(error)) Option {
	return func(c *Coordinator) {
		c.onError = h
	}
}

// WithCycleHook observes the outcome of every pull cycle
func WithCycleHook(h func(Outcome)) Option {
	return func(c *Coordinator) {
		c.onCycle = h
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

type slot struct {
	name    string
	format  format.Descriptor
	active  bool
	pending *view.Buffer
}

// Coordinator joins buffers from its input ports. All state is guarded by one
// mutex, and the handler runs under it, so sets are dispatched strictly one at a
// time.
type Coordinator struct {
	mu      sync.Mutex
	slots   []*slot
	handler Handler

	pullTimeout time.Duration
	stopOnEOS   bool
	onDrop      DropHook
	onError     func(error)
	onCycle     func(Outcome)
	logger      *slog.Logger
}

// New creates a coordinator over the given input ports. Request-presence ports
// start inactive.
func New(inputs []port.Port, handler Handler, opts ...Option) (*Coordinator, error) {
	if handler == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: nil handler", errors.ErrMissingConfig), "Coordinator", "New", "handler check")
	}

	c := &Coordinator{
		handler:     handler,
		pullTimeout: DefaultPullTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range inputs {
		if err := c.AddPort(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddPort appends an input slot. The new slot is empty, so completeness now also
// waits on it when active.
func (c *Coordinator) AddPort(p port.Port) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.find(p.Name) != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrDuplicateName, p.Name), "Coordinator", "AddPort", "name check")
	}
	if err := p.Format.Validate(); err != nil {
		return errors.Wrap(err, "Coordinator", "AddPort", fmt.Sprintf("format of %q", p.Name))
	}
	c.slots = append(c.slots, &slot{
		name:   p.Name,
		format: p.Format,
		active: p.Presence != port.PresenceRequest,
	})
	return nil
}

// RemovePort deletes an input slot. A slot holding a pending buffer cannot be
// removed.
func (c *Coordinator) RemovePort(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.slots {
		if s.name != name {
			continue
		}
		if s.pending != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrPortPending, name), "Coordinator", "RemovePort", "pending check")
		}
		c.slots = append(c.slots[:i:i], c.slots[i+1:]...)
		return nil
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrUnknownPort, name), "Coordinator", "RemovePort", "port lookup")
}

// SetActive includes or excludes a port from completeness. Deactivating a port
// discards its pending buffer.
func (c *Coordinator) SetActive(name string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.find(name)
	if s == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownPort, name), "Coordinator", "SetActive", "port lookup")
	}
	s.active = active
	if !active && s.pending != nil {
		c.drop(s.name, s.pending)
		s.pending = nil
	}
	return nil
}

// Arrive records buf on port and dispatches if every active port is now pending.
// The returned error is the handler's error when a dispatch happened.
func (c *Coordinator) Arrive(ctx context.Context, portName string, buf *view.Buffer) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.find(portName)
	if s == nil {
		return Result{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownPort, portName), "Coordinator", "Arrive", "port lookup")
	}
	if err := c.admit(s, buf); err != nil {
		return Result{}, err
	}

	if !s.active {
		c.drop(s.name, buf)
		return Result{Dropped: true}, nil
	}

	res := Result{Superseded: c.store(s, buf)}
	if !c.complete() {
		return res, nil
	}

	res.Dispatched = true
	return res, c.dispatch(ctx)
}

// Cycle performs one pull: every active port is popped once in declaration
// order, waiting up to the pull timeout each. Popped buffers join the pending
// set; the set is dispatched when every active slot holds a buffer, whether it
// arrived this cycle or was carried over from an earlier incomplete one. The lock is not held while
// waiting on the source.
func (c *Coordinator) Cycle(ctx context.Context, src Source) (Outcome, error) {
	c.mu.Lock()
	var names []string
	for _, s := range c.slots {
		if s.active {
			names = append(names, s.name)
		}
	}
	timeout := c.pullTimeout
	c.mu.Unlock()

	if len(names) == 0 {
		// nothing to pull from; wait one timeout so Run does not spin
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Incomplete, ctx.Err()
		case <-t.C:
		}
		if c.onCycle != nil {
			c.onCycle(EndOfStream)
		}
		return EndOfStream, nil
	}

	type popped struct {
		port string
		buf  *view.Buffer
	}
	var got []popped
	for _, name := range names {
		if buf, ok := src.Pop(ctx, name, timeout); ok {
			got = append(got, popped{name, buf})
		}
	}
	if err := ctx.Err(); err != nil {
		return Incomplete, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	produced := 0
	for _, p := range got {
		s := c.find(p.port)
		if s == nil || !s.active {
			c.drop(p.port, p.buf)
			continue
		}
		if err := c.admit(s, p.buf); err != nil {
			c.report(err)
			c.drop(p.port, p.buf)
			continue
		}
		produced++
		c.store(s, p.buf)
	}

	// Carried-over buffers count toward completeness. End of stream means no
	// port produced anything this cycle and no complete set is waiting.
	var outcome Outcome
	var err error
	switch {
	case c.complete():
		outcome = Dispatched
		err = c.dispatch(ctx)
	case produced == 0:
		outcome = EndOfStream
	default:
		outcome = Incomplete
	}

	if c.onCycle != nil {
		c.onCycle(outcome)
	}
	return outcome, err
}

// Run repeats Cycle until ctx is done, a handler returns a fatal error, or, when
// configured, a cycle reports end of stream. Other handler errors go to the error
// hook and the loop continues.
func (c *Coordinator) Run(ctx context.Context, src Source) error {
	for {
		outcome, err := c.Cycle(ctx, src)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.IsFatal(err) {
				return err
			}
			c.report(err)
		}

		if outcome == EndOfStream && c.stopOnEOS {
			c.logger.Debug("End of stream reached")
			return nil
		}
	}
}

// Pending returns the state of every input slot
func (c *Coordinator) Pending() map[string]PortState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]PortState, len(c.slots))
	for _, s := range c.slots {
		if s.pending != nil {
			out[s.name] = Pending
		} else {
			out[s.name] = Empty
		}
	}
	return out
}

// PendingCount returns the number of slots holding a buffer
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.slots {
		if s.pending != nil {
			n++
		}
	}
	return n
}

// Reset discards every pending buffer
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.slots {
		if s.pending != nil {
			c.drop(s.name, s.pending)
			s.pending = nil
		}
	}
}

// Ports returns the input port names in declaration order
func (c *Coordinator) Ports() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.slots))
	for i, s := range c.slots {
		names[i] = s.name
	}
	return names
}

// admit tags an untagged buffer with the port format and checks that the
// buffer's format and byte length agree with the port.
func (c *Coordinator) admit(s *slot, buf *view.Buffer) error {
	if buf == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nil buffer on %q", errors.ErrSizeMismatch, s.name), "Coordinator", "admit", "buffer check")
	}
	if buf.Format == (format.Descriptor{}) {
		buf.Format = s.format
	}
	if !buf.Format.Compatible(s.format) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s on port %q expects %s", errors.ErrSizeMismatch, buf.Format.Shape(), s.name, s.format.Shape()),
			"Coordinator", "admit", "format check")
	}
	if err := view.CheckSize(buf.Data, s.format); err != nil {
		return errors.Wrap(err, "Coordinator", "admit", fmt.Sprintf("port %q", s.name))
	}
	return nil
}

// store places buf in the slot and reports whether a pending buffer was replaced
func (c *Coordinator) store(s *slot, buf *view.Buffer) bool {
	old := s.pending
	s.pending = buf
	if old != nil {
		c.drop(s.name, old)
		return true
	}
	return false
}

func (c *Coordinator) complete() bool {
	active := 0
	for _, s := range c.slots {
		if !s.active {
			continue
		}
		active++
		if s.pending == nil {
			return false
		}
	}
	return active > 0
}

// dispatch captures the active pending buffers, clears every slot, and runs the
// handler. Slots are cleared before the handler runs so an error never leaves
// buffers behind.
func (c *Coordinator) dispatch(ctx context.Context) error {
	set := Set{
		Ports:   make([]string, 0, len(c.slots)),
		Buffers: make([]*view.Buffer, 0, len(c.slots)),
	}
	for _, s := range c.slots {
		if s.active {
			set.Ports = append(set.Ports, s.name)
			set.Buffers = append(set.Buffers, s.pending)
		}
		s.pending = nil
	}
	return c.handler(ctx, set)
}

func (c *Coordinator) drop(port string, buf *view.Buffer) {
	if c.onDrop != nil {
		c.onDrop(port, buf)
	}
}

func (c *Coordinator) report(err error) {
	if c.onError != nil {
		c.onError(err)
		return
	}
	c.logger.Warn("Join error", "error", err)
}

func (c *Coordinator) find(name string) *slot {
	for _, s := range c.slots {
		if s.name == name {
			return s
		}
	}
	return nil
}
