package dispatch

import (
	"context"
	"fmt"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/join"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/view"
)

// Dispatcher binds a transform to the ports of an element
type Dispatcher struct {
	registry  *port.Registry
	transform Transform
	inPlace   InPlaceTransform
}

// New creates a dispatcher for a transform that allocates its own outputs
func New(registry *port.Registry, t Transform) (*Dispatcher, error) {
	if t == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: nil transform", errors.ErrMissingConfig), "Dispatcher", "New", "transform check")
	}
	return &Dispatcher{registry: registry, transform: t}, nil
}

// NewInPlace creates a dispatcher for a transform that fills pre-allocated outputs
func NewInPlace(registry *port.Registry, t InPlaceTransform) (*Dispatcher, error) {
	if t == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: nil transform", errors.ErrMissingConfig), "Dispatcher", "NewInPlace", "transform check")
	}
	return &Dispatcher{registry: registry, inPlace: t}, nil
}

// Dispatch runs the transform over set and returns one buffer per output port.
// On any error no buffers are returned. Every view mapped here is unmapped before
// Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, set join.Set) (out []*view.Buffer, err error) {
	outputs := d.registry.Outputs()

	var mapped []*view.View
	defer func() {
		for _, v := range mapped {
			if v.Mapped() {
				_ = view.Unmap(v)
			}
		}
	}()

	inputs := make([]*view.View, len(set.Buffers))
	for i, buf := range set.Buffers {
		p, ok := d.registry.Input(set.Ports[i])
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrUnknownPort, set.Ports[i]), "Dispatcher", "Dispatch", "input lookup")
		}
		v, err := view.MapForRead(buf, p.Format)
		if err != nil {
			return nil, errors.Wrap(err, "Dispatcher", "Dispatch", fmt.Sprintf("map input %q", p.Name))
		}
		mapped = append(mapped, v)
		inputs[i] = v
	}

	results, err := d.invoke(ctx, inputs, outputs)
	for _, v := range results {
		if v != nil {
			mapped = append(mapped, v)
		}
	}
	if err != nil {
		return nil, err
	}

	if len(results) != len(outputs) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: transform returned %d views for %d output ports",
				errors.ErrArityMismatch, len(results), len(outputs)),
			"Dispatcher", "Dispatch", "arity check")
	}

	pts := set.LatestPTS()
	inputBufs := make(map[*view.Buffer]bool, len(set.Buffers))
	for _, b := range set.Buffers {
		inputBufs[b] = true
	}
	emitted := make(map[*view.Buffer]bool, len(results))

	out = make([]*view.Buffer, len(results))
	for i, v := range results {
		p := outputs[i]
		if v == nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: nil view for output %q", errors.ErrSizeMismatch, p.Name),
				"Dispatcher", "Dispatch", "output check")
		}
		if !v.Format().Compatible(p.Format) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: output %q got %s, port expects %s",
					errors.ErrSizeMismatch, p.Name, v.Shape(), p.Format.Shape()),
				"Dispatcher", "Dispatch", "output check")
		}
		if err := view.CheckSize(v.Bytes(), p.Format); err != nil {
			return nil, errors.Wrap(err, "Dispatcher", "Dispatch", fmt.Sprintf("output %q", p.Name))
		}

		buf := v.Buffer()
		// a buffer may reach only one output port
		if emitted[buf] {
			buf = buf.Clone()
		}
		emitted[v.Buffer()] = true
		if inputBufs[buf] {
			buf = buf.Clone()
		}

		buf.Format = p.Format
		buf.PTS = pts
		out[i] = buf
	}
	return out, nil
}

// Outputs returns the output port names results are ordered by
func (d *Dispatcher) Outputs() []string {
	return d.registry.OutputNames()
}

func (d *Dispatcher) invoke(ctx context.Context, inputs []*view.View, outputs []port.Port) (results []*view.View, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapFatal(
				fmt.Errorf("%w: panic: %v", errors.ErrTransform, r),
				"Dispatcher", "Dispatch", "transform")
		}
	}()

	if d.inPlace != nil {
		results = make([]*view.View, 0, len(outputs))
		for _, p := range outputs {
			v, err := view.New(p.Format)
			if err != nil {
				return results, errors.Wrap(err, "Dispatcher", "Dispatch", fmt.Sprintf("allocate output %q", p.Name))
			}
			results = append(results, v)
		}
		if err := d.inPlace.TransformInPlace(ctx, inputs, results); err != nil {
			return results, classifyTransformError(err)
		}
		return results, nil
	}

	results, err = d.transform.Transform(ctx, inputs)
	if err != nil {
		return results, classifyTransformError(err)
	}
	return results, nil
}

// classifyTransformError tags err with ErrTransform, keeping an existing class
// and defaulting to invalid so a bad set does not stop the stream.
func classifyTransformError(err error) error {
	var ce *errors.ClassifiedError
	if errors.As(err, &ce) {
		return &errors.ClassifiedError{
			Class:     ce.Class,
			Err:       fmt.Errorf("%w: %w", errors.ErrTransform, err),
			Component: "Dispatcher",
			Operation: "Dispatch",
		}
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrTransform, err), "Dispatcher", "Dispatch", "transform")
}
