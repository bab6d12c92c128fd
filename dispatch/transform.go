// Package dispatch runs a transform over one joined set: it maps the input buffers
// as read-only views, invokes the transform, checks the outputs against the output
// ports, and converts them back to buffers.
package dispatch

import (
	"context"

	"github.com/c360/mediajoin/view"
)

// Transform maps N input views, in input port order, to M output views, one per
// output port in declaration order. Input views are read-only and are unmapped
// when Transform returns.
type Transform interface {
	Transform(ctx context.Context, inputs []*view.View) ([]*view.View, error)
}

// TransformFunc adapts a function to Transform
type TransformFunc func(ctx context.Context, inputs []*view.View) ([]*view.View, error)

// Transform calls f
func (f TransformFunc) Transform(ctx context.Context, inputs []*view.View) ([]*view.View, error) {
	return f(ctx, inputs)
}

// InPlaceTransform writes into output views pre-allocated from the output port
// formats.
type InPlaceTransform interface {
	TransformInPlace(ctx context.Context, inputs, outputs []*view.View) error
}

// InPlaceFunc adapts a function to InPlaceTransform
type InPlaceFunc func(ctx context.Context, inputs, outputs []*view.View) error

// TransformInPlace calls f
func (f InPlaceFunc) TransformInPlace(ctx context.Context, inputs, outputs []*view.View) error {
	return f(ctx, inputs, outputs)
}
