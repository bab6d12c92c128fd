// Package format describes how a raw buffer is interpreted as a rectangular,
// multi-component array: dimensions, component count and element width.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/c360/mediajoin/errors"
)

// ElementKind identifies the numeric type of one array element
type ElementKind int

// Element kinds supported by the view mapper
const (
	KindInvalid ElementKind = iota
	KindUint8
	KindUint16
	KindUint32
)

// String returns the element kind name
func (k ElementKind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	default:
		return "invalid"
	}
}

// KindFromBits maps an element size in bits to an element kind. Only the
// byte-aligned unsigned sizes used by raw video formats are known.
func KindFromBits(bits int) (ElementKind, error) {
	switch bits {
	case 8:
		return KindUint8, nil
	case 16:
		return KindUint16, nil
	case 32:
		return KindUint32, nil
	default:
		return KindInvalid, errors.WrapInvalid(
			fmt.Errorf("%w: no element kind for %d-bit items", errors.ErrInvalidFormat, bits),
			"format", "KindFromBits", "element size lookup")
	}
}

// Descriptor is an immutable value describing the byte layout of a buffer.
// Rows correspond to Height and columns to Width.
type Descriptor struct {
	Layout      string `json:"layout,omitempty"       yaml:"layout,omitempty"`
	Width       int    `json:"width"                  yaml:"width"`
	Height      int    `json:"height"                 yaml:"height"`
	Components  int    `json:"components"             yaml:"components"`
	ElementSize int    `json:"element_size"           yaml:"element_size"`
	BigEndian   bool   `json:"big_endian,omitempty"   yaml:"big_endian,omitempty"`
}

// Shape is the (rows, cols, components) triple of a descriptor
type Shape struct {
	Rows       int
	Cols       int
	Components int
}

// Len returns the number of elements described by the shape
func (s Shape) Len() int {
	return s.Rows * s.Cols * s.Components
}

// String renders the shape as rows x cols x components
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Rows, s.Cols, s.Components)
}

// New builds a descriptor and validates that its byte layout is computable
func New(width, height, components, elementSize int) (Descriptor, error) {
	d := Descriptor{
		Width:       width,
		Height:      height,
		Components:  components,
		ElementSize: elementSize,
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Shape returns the array shape implied by the descriptor
func (d Descriptor) Shape() Shape {
	return Shape{Rows: d.Height, Cols: d.Width, Components: d.Components}
}

// Kind returns the element kind implied by ElementSize
func (d Descriptor) Kind() (ElementKind, error) {
	return KindFromBits(d.ElementSize * 8)
}

// ByteLength returns rows*cols*components*elementSize, failing with
// ErrInvalidFormat if any factor is not positive or the product overflows.
func (d Descriptor) ByteLength() (int, error) {
	factors := []struct {
		name  string
		value int
	}{
		{"height", d.Height},
		{"width", d.Width},
		{"components", d.Components},
		{"element_size", d.ElementSize},
	}

	total := 1
	for _, f := range factors {
		if f.value <= 0 {
			return 0, errors.WrapInvalid(
				fmt.Errorf("%w: %s must be positive, got %d", errors.ErrInvalidFormat, f.name, f.value),
				"format", "ByteLength", "layout check")
		}
		if total > math.MaxInt/f.value {
			return 0, errors.WrapInvalid(
				fmt.Errorf("%w: byte length overflows", errors.ErrInvalidFormat),
				"format", "ByteLength", "layout check")
		}
		total *= f.value
	}
	return total, nil
}

// Validate checks the byte layout is computable and the element size is supported
func (d Descriptor) Validate() error {
	if _, err := d.ByteLength(); err != nil {
		return err
	}
	if _, err := d.Kind(); err != nil {
		return err
	}
	return nil
}

// Compatible reports whether both descriptors imply the same byte layout
func (d Descriptor) Compatible(other Descriptor) bool {
	a, errA := d.ByteLength()
	b, errB := other.ByteLength()
	if errA != nil || errB != nil || a != b {
		return false
	}
	return d.Shape() == other.Shape() && d.ElementSize == other.ElementSize
}

// String renders the descriptor as a caps-like string
func (d Descriptor) String() string {
	layout := d.Layout
	if layout == "" {
		layout = "raw"
	}
	return fmt.Sprintf("%s,width=%d,height=%d,components=%d,element_size=%d",
		layout, d.Width, d.Height, d.Components, d.ElementSize)
}

// Caps renders the descriptor as a video/x-raw caps string. Descriptors without a
// layout name fall back to explicit component and element size fields.
func (d Descriptor) Caps() string {
	if d.Layout != "" {
		return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d", d.Layout, d.Width, d.Height)
	}
	return fmt.Sprintf("video/x-raw,width=%d,height=%d,components=%d,element_size=%d",
		d.Width, d.Height, d.Components, d.ElementSize)
}

// Parse reads a caps string such as "video/x-raw,format=RGB,width=4,height=4".
// The pixel format is resolved through table; explicit components and
// element_size fields override or replace the table lookup.
func Parse(caps string, table *Table) (Descriptor, error) {
	if table == nil {
		table = DefaultTable()
	}

	fields := strings.Split(caps, ",")
	if len(fields) == 0 || strings.TrimSpace(fields[0]) == "" {
		return Descriptor{}, errors.WrapInvalid(
			fmt.Errorf("%w: empty caps", errors.ErrInvalidFormat), "format", "Parse", "caps split")
	}

	var d Descriptor
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			return Descriptor{}, errors.WrapInvalid(
				fmt.Errorf("%w: malformed field %q", errors.ErrInvalidFormat, field),
				"format", "Parse", "field split")
		}
		key = strings.TrimSpace(key)
		value = stripType(strings.TrimSpace(value))

		switch key {
		case "format":
			pf, err := table.Lookup(value)
			if err != nil {
				return Descriptor{}, err
			}
			d.Layout = value
			if d.Components == 0 {
				d.Components = pf.Components
			}
			if d.ElementSize == 0 {
				d.ElementSize = pf.ElementSize
			}
			d.BigEndian = pf.BigEndian
		case "width", "height", "components", "element_size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Descriptor{}, errors.WrapInvalid(
					fmt.Errorf("%w: %s=%q is not an integer", errors.ErrInvalidFormat, key, value),
					"format", "Parse", "integer field")
			}
			switch key {
			case "width":
				d.Width = n
			case "height":
				d.Height = n
			case "components":
				d.Components = n
			case "element_size":
				d.ElementSize = n
			}
		default:
			// framerate, pixel-aspect-ratio and similar fields do not affect layout
		}
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// stripType removes a "(int)" style type annotation from a caps value
func stripType(v string) string {
	if strings.HasPrefix(v, "(") {
		if i := strings.Index(v, ")"); i >= 0 {
			return strings.TrimSpace(v[i+1:])
		}
	}
	return v
}
