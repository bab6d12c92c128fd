// Package route delivers an output set to the element's output ports.
package route

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/view"
)

// Sink accepts a buffer on a named output port. Returning an error refuses the
// buffer; ownership passes to the sink only on success.
type Sink interface {
	Push(ctx context.Context, port string, buf *view.Buffer) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, port string, buf *view.Buffer) error

// Push calls f
func (f SinkFunc) Push(ctx context.Context, port string, buf *view.Buffer) error {
	return f(ctx, port, buf)
}

// MultiSink pushes every buffer to each sink in order. Later sinks receive a
// copy so no two sinks share a buffer. All sinks are attempted; their errors
// are joined.
type MultiSink []Sink

// Push fans buf out to every sink
func (m MultiSink) Push(ctx context.Context, port string, buf *view.Buffer) error {
	var errs []error
	for i, s := range m {
		b := buf
		if i > 0 {
			b = buf.Clone()
		}
		if err := s.Push(ctx, port, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Router pushes outputs[i] to ports[i] on the calling goroutine
type Router struct {
	mu    sync.RWMutex
	ports []string
	sink  Sink
	// OnDelivered, when set, observes each accepted buffer
	OnDelivered func(port string, buf *view.Buffer)
}

// NewRouter creates a router for the given output ports in declaration order
func NewRouter(ports []string, sink Sink) *Router {
	return &Router{ports: append([]string(nil), ports...), sink: sink}
}

// SetPorts replaces the output port list
func (r *Router) SetPorts(ports []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports = append([]string(nil), ports...)
}

// Ports returns the output port names in routing order
func (r *Router) Ports() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ports...)
}

// Route delivers each output to its port in order. A refused buffer does not
// stop delivery to the remaining ports; refusals come back as joined
// *errors.DeliveryError values. A length mismatch delivers nothing.
func (r *Router) Route(ctx context.Context, outputs []*view.Buffer) error {
	ports := r.Ports()
	if len(outputs) != len(ports) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %d buffers for %d output ports", errors.ErrArityMismatch, len(outputs), len(ports)),
			"Router", "Route", "arity check")
	}

	var errs []error
	for i, buf := range outputs {
		name := ports[i]
		if err := r.sink.Push(ctx, name, buf); err != nil {
			errs = append(errs, &errors.DeliveryError{Port: name, Err: err})
			continue
		}
		if r.OnDelivered != nil {
			r.OnDelivered(name, buf)
		}
	}
	return errors.Join(errs...)
}

// DeliveryErrors extracts the per-port failures from an error returned by Route
func DeliveryErrors(err error) []*errors.DeliveryError {
	if err == nil {
		return nil
	}
	var out []*errors.DeliveryError
	var walk func(error)
	walk = func(e error) {
		var de *errors.DeliveryError
		if d, ok := e.(*errors.DeliveryError); ok {
			out = append(out, d)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		if errors.As(e, &de) {
			out = append(out, de)
		}
	}
	walk(err)
	return out
}
