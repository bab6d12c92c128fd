package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360/mediajoin/dispatch"
	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/view"
)

// MeanMixer writes the element-wise mean of all inputs into every output.
// Fractions are truncated.
type MeanMixer struct{}

// TransformInPlace implements dispatch.InPlaceTransform
func (MeanMixer) TransformInPlace(_ context.Context, inputs, outputs []*view.View) error {
	if len(inputs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: mean of zero inputs", errors.ErrArityMismatch), "MeanMixer", "Transform", "input check")
	}
	for _, out := range outputs {
		if err := sameLayout("MeanMixer", out, inputs...); err != nil {
			return err
		}
		n := uint64(len(inputs))
		for i := 0; i < out.Len(); i++ {
			var sum uint64
			for _, in := range inputs {
				sum += uint64(in.At(i))
			}
			if err := out.Set(i, uint32(sum/n)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Copy writes the first input into every output
type Copy struct{}

// TransformInPlace implements dispatch.InPlaceTransform
func (Copy) TransformInPlace(_ context.Context, inputs, outputs []*view.View) error {
	if len(inputs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: copy needs an input", errors.ErrArityMismatch), "Copy", "Transform", "input check")
	}
	for _, out := range outputs {
		if err := out.CopyFrom(inputs[0]); err != nil {
			return err
		}
	}
	return nil
}

// QuadrantFill copies the first input into every output and sets the top-left
// quarter (rows < h/2, cols < w/2, all components) to Value.
type QuadrantFill struct {
	Value uint32 `json:"value"`
}

// TransformInPlace implements dispatch.InPlaceTransform
func (q QuadrantFill) TransformInPlace(ctx context.Context, inputs, outputs []*view.View) error {
	if err := (Copy{}).TransformInPlace(ctx, inputs, outputs); err != nil {
		return err
	}
	for _, out := range outputs {
		s := out.Shape()
		for r := 0; r < s.Rows/2; r++ {
			for c := 0; c < s.Cols/2; c++ {
				for k := 0; k < s.Components; k++ {
					if err := out.Set(out.Index(r, c, k), q.Value); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Crop writes the top-left corner of the first input into every output. Each
// output takes its size from its port format and must not exceed the input.
type Crop struct{}

// TransformInPlace implements dispatch.InPlaceTransform
func (Crop) TransformInPlace(_ context.Context, inputs, outputs []*view.View) error {
	if len(inputs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: crop needs an input", errors.ErrArityMismatch), "Crop", "Transform", "input check")
	}
	in := inputs[0]
	is := in.Shape()
	for _, out := range outputs {
		os := out.Shape()
		if os.Rows > is.Rows || os.Cols > is.Cols || os.Components != is.Components || out.Kind() != in.Kind() {
			return errors.WrapInvalid(
				fmt.Errorf("%w: cannot crop %s to %s", errors.ErrSizeMismatch, is, os),
				"Crop", "Transform", "shape check")
		}
		for r := 0; r < os.Rows; r++ {
			for c := 0; c < os.Cols; c++ {
				for k := 0; k < os.Components; k++ {
					if err := out.Set(out.Index(r, c, k), in.At(in.Index(r, c, k))); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Trace passes inputs through unchanged, one output per input, and logs the
// dimensions and value range of each.
type Trace struct {
	Logger *slog.Logger
	Level  slog.Level
}

// Transform implements dispatch.Transform
func (t Trace) Transform(ctx context.Context, inputs []*view.View) ([]*view.View, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for i, in := range inputs {
		s := in.Shape()
		lo, hi := in.MinMax()
		logger.Log(ctx, t.Level, "Frame",
			"index", i,
			"dim", fmt.Sprintf("%dx%d", s.Cols, s.Rows),
			"components", s.Components,
			"min", lo,
			"max", hi,
			"pts", in.Buffer().PTS)
	}
	return inputs, nil
}

func sameLayout(op string, out *view.View, inputs ...*view.View) error {
	for i, in := range inputs {
		if !out.Format().Compatible(in.Format()) || out.Kind() != in.Kind() {
			return errors.WrapInvalid(
				fmt.Errorf("%w: input %d is %s, output is %s", errors.ErrSizeMismatch, i, in.Shape(), out.Shape()),
				op, "Transform", "shape check")
		}
	}
	return nil
}

func newMeanMixer(json.RawMessage, *slog.Logger) (Built, error) {
	return Built{InPlace: MeanMixer{}}, nil
}

func newCopy(json.RawMessage, *slog.Logger) (Built, error) {
	return Built{InPlace: Copy{}}, nil
}

func newCrop(json.RawMessage, *slog.Logger) (Built, error) {
	return Built{InPlace: Crop{}}, nil
}

func newQuadrantFill(params json.RawMessage, _ *slog.Logger) (Built, error) {
	q := QuadrantFill{Value: 128}
	if err := decodeParams(params, &q); err != nil {
		return Built{}, err
	}
	return Built{InPlace: q}, nil
}

func newTrace(params json.RawMessage, logger *slog.Logger) (Built, error) {
	var p struct {
		Level string `json:"level"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Built{}, err
	}
	t := Trace{Logger: logger, Level: slog.LevelInfo}
	if p.Level != "" {
		if err := t.Level.UnmarshalText([]byte(p.Level)); err != nil {
			return Built{}, errors.WrapInvalid(
				fmt.Errorf("%w: trace level %q", errors.ErrInvalidConfig, p.Level),
				"transform", "newTrace", "level parse")
		}
	}
	return Built{Transform: t}, nil
}

var (
	_ dispatch.InPlaceTransform = MeanMixer{}
	_ dispatch.InPlaceTransform = Copy{}
	_ dispatch.InPlaceTransform = QuadrantFill{}
	_ dispatch.InPlaceTransform = Crop{}
	_ dispatch.Transform        = Trace{}
)
