// Package buffer provides generic, thread-safe bounded queues with overflow policies.
//
// The element uses one CircularBuffer per input port in pull mode: transports write
// arriving media buffers into it and the join coordinator pops with a timeout.
package buffer

import (
	"context"
	"time"
)

// Buffer represents a bounded FIFO parameterized by item type T
type Buffer[T any] interface {
	// Write adds an item. Behavior when full depends on the overflow policy.
	Write(item T) error

	// WriteWithContext is Write that gives up when ctx is done under the Block policy.
	WriteWithContext(ctx context.Context, item T) error

	// Read removes one item without waiting. ok is false if the buffer is empty.
	Read() (item T, ok bool)

	// ReadWithContext waits for an item until ctx is done or the buffer is closed.
	ReadWithContext(ctx context.Context) (T, error)

	// ReadWithTimeout waits up to timeout for an item. A non-positive timeout
	// does not wait.
	ReadWithTimeout(timeout time.Duration) (item T, ok bool)

	// ReadBatch removes up to max items.
	ReadBatch(max int) []T

	Size() int
	Capacity() int
	IsFull() bool
	IsEmpty() bool

	// Clear removes all items, reporting each to the drop callback.
	Clear()

	// Stats returns buffer statistics.
	Stats() *Statistics

	// Close wakes all waiters; later writes fail and reads drain what is left.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest

	// Block causes Write operations to block until space is available.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// ParseOverflowPolicy converts a configuration string to a policy. The empty
// string selects DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "", "drop_oldest", "DropOldest":
		return DropOldest, true
	case "drop_newest", "DropNewest":
		return DropNewest, true
	case "block", "Block":
		return Block, true
	default:
		return DropOldest, false
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity and options.
// Returns an error if metrics registration fails when metrics are requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
