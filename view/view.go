package view

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

// Access selects how a view may touch its buffer
type Access int

// Access modes
const (
	Read Access = iota
	Write
)

// String returns the access mode name
func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// View is a typed, shaped window over a buffer's bytes. Elements are addressed
// linearly in row-major (row, col, component) order.
type View struct {
	buf    *Buffer
	format format.Descriptor
	kind   format.ElementKind
	order  binary.ByteOrder
	access Access
	mapped atomic.Bool
}

// MapForRead maps buf for reading under f
func MapForRead(buf *Buffer, f format.Descriptor) (*View, error) {
	return mapBuffer(buf, f, Read)
}

// MapForWrite maps buf for reading and writing under f
func MapForWrite(buf *Buffer, f format.Descriptor) (*View, error) {
	return mapBuffer(buf, f, Write)
}

// New allocates a fresh buffer for f and maps it for writing. Transforms use it to
// produce output views.
func New(f format.Descriptor) (*View, error) {
	buf, err := Allocate(f)
	if err != nil {
		return nil, err
	}
	return MapForWrite(buf, f)
}

func mapBuffer(buf *Buffer, f format.Descriptor, access Access) (*View, error) {
	if buf == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil buffer", errors.ErrSizeMismatch), "view", "Map", "buffer check")
	}
	kind, err := f.Kind()
	if err != nil {
		return nil, err
	}
	if err := CheckSize(buf.Data, f); err != nil {
		return nil, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	if f.BigEndian {
		order = binary.BigEndian
	}

	v := &View{
		buf:    buf,
		format: f,
		kind:   kind,
		order:  order,
		access: access,
	}
	v.mapped.Store(true)
	return v, nil
}

// Unmap releases the view. The underlying buffer is left untouched; unmapping a
// view twice returns ErrNotMapped.
func Unmap(v *View) error {
	if v == nil || !v.mapped.CompareAndSwap(true, false) {
		return errors.ErrNotMapped
	}
	return nil
}

// Mapped reports whether the view is still mapped
func (v *View) Mapped() bool {
	return v.mapped.Load()
}

// Shape returns rows, cols and components
func (v *View) Shape() format.Shape {
	return v.format.Shape()
}

// Format returns the descriptor the view was mapped with
func (v *View) Format() format.Descriptor {
	return v.format
}

// Kind returns the element kind
func (v *View) Kind() format.ElementKind {
	return v.kind
}

// Access returns the mapping mode
func (v *View) Access() Access {
	return v.access
}

// Buffer returns the buffer backing the view
func (v *View) Buffer() *Buffer {
	return v.buf
}

// Len returns the number of elements
func (v *View) Len() int {
	return v.format.Shape().Len()
}

// Index converts a (row, col, component) coordinate to a linear element index
func (v *View) Index(row, col, comp int) int {
	s := v.format.Shape()
	return (row*s.Cols+col)*s.Components + comp
}

// At returns element i widened to uint32. Reading an unmapped view panics with
// ErrNotMapped, like indexing past the end of a slice.
func (v *View) At(i int) uint32 {
	if !v.mapped.Load() {
		panic(errors.ErrNotMapped)
	}
	off := i * v.format.ElementSize
	data := v.buf.Data
	switch v.kind {
	case format.KindUint8:
		return uint32(data[off])
	case format.KindUint16:
		return uint32(v.order.Uint16(data[off : off+2]))
	default:
		return v.order.Uint32(data[off : off+4])
	}
}

// Set stores x into element i, truncating to the element width
func (v *View) Set(i int, x uint32) error {
	if err := v.writable(); err != nil {
		return err
	}
	off := i * v.format.ElementSize
	data := v.buf.Data
	switch v.kind {
	case format.KindUint8:
		data[off] = byte(x)
	case format.KindUint16:
		v.order.PutUint16(data[off:off+2], uint16(x))
	default:
		v.order.PutUint32(data[off:off+4], x)
	}
	return nil
}

// Fill sets every element to x
func (v *View) Fill(x uint32) error {
	if err := v.writable(); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		_ = v.Set(i, x)
	}
	return nil
}

// Bytes returns the raw bytes behind the view, or nil once it is unmapped.
// Callers holding a read mapping must not modify the slice.
func (v *View) Bytes() []byte {
	if !v.mapped.Load() {
		return nil
	}
	return v.buf.Data
}

// CopyFrom copies src into v. Both views must have compatible formats.
func (v *View) CopyFrom(src *View) error {
	if err := v.writable(); err != nil {
		return err
	}
	if !src.mapped.Load() {
		return errors.ErrNotMapped
	}
	if !v.format.Compatible(src.format) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cannot copy %s into %s", errors.ErrSizeMismatch, src.Shape(), v.Shape()),
			"View", "CopyFrom", "shape check")
	}
	if v.order == src.order {
		copy(v.buf.Data, src.buf.Data)
		return nil
	}
	for i := 0; i < v.Len(); i++ {
		_ = v.Set(i, src.At(i))
	}
	return nil
}

// MinMax returns the smallest and largest element values
func (v *View) MinMax() (lo, hi uint32) {
	n := v.Len()
	if n == 0 {
		return 0, 0
	}
	lo, hi = v.At(0), v.At(0)
	for i := 1; i < n; i++ {
		x := v.At(i)
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func (v *View) writable() error {
	if !v.mapped.Load() {
		return errors.ErrNotMapped
	}
	if v.access != Write {
		return errors.ErrReadOnly
	}
	return nil
}
