// Package view maps raw buffers to typed, shaped array views without copying.
//
// A Buffer is an ownership-tracked block of bytes tagged with the format active on
// the port it arrived on. MapForRead and MapForWrite check the byte length against
// rows*cols*components*elementSize and return a View aliasing the buffer's memory.
package view

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

// Buffer is an opaque block of raw bytes with the format it was produced under
type Buffer struct {
	ID     uuid.UUID
	Data   []byte
	Format format.Descriptor
	PTS    time.Duration
}

// NewBuffer wraps data without copying and assigns a fresh identity
func NewBuffer(data []byte, f format.Descriptor) *Buffer {
	return &Buffer{
		ID:     uuid.New(),
		Data:   data,
		Format: f,
	}
}

// Allocate creates a zeroed buffer sized for f
func Allocate(f format.Descriptor) (*Buffer, error) {
	n, err := f.ByteLength()
	if err != nil {
		return nil, errors.Wrap(err, "view", "Allocate", "byte length")
	}
	return NewBuffer(make([]byte, n), f), nil
}

// Len returns the byte length of the buffer
func (b *Buffer) Len() int {
	return len(b.Data)
}

// Clone returns a deep copy with a new identity
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Buffer{
		ID:     uuid.New(),
		Data:   data,
		Format: b.Format,
		PTS:    b.PTS,
	}
}

// String describes the buffer for logs
func (b *Buffer) String() string {
	return fmt.Sprintf("buffer(%s, %d bytes, %s, pts=%s)", b.ID, len(b.Data), b.Format.Shape(), b.PTS)
}

// CheckSize verifies data length against the descriptor's byte layout
func CheckSize(data []byte, f format.Descriptor) error {
	expected, err := f.ByteLength()
	if err != nil {
		return err
	}
	if len(data) != expected {
		return errors.WrapInvalid(
			fmt.Errorf("%w: buffer size %d does not match expected size %d for shape %s",
				errors.ErrSizeMismatch, len(data), expected, f.Shape()),
			"view", "CheckSize", "size check")
	}
	return nil
}
