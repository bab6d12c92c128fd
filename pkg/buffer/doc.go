// Package buffer provides thread-safe circular queues with configurable overflow
// policies, always-on statistics, and optional Prometheus metrics.
//
// In pull mode every input port of an element is backed by one queue. Transports
// write arriving media buffers and the join coordinator pops with a bounded wait:
//
//	q, err := buffer.NewCircularBuffer[*view.Buffer](8,
//		buffer.WithOverflowPolicy[*view.Buffer](buffer.DropOldest),
//		buffer.WithMetrics[*view.Buffer](registry, "mixer.in0"),
//	)
//
//	buf, ok := q.ReadWithTimeout(50 * time.Millisecond)
//
// # Overflow Policies
//
//   - DropOldest: remove the oldest item to make room (default)
//   - DropNewest: discard the incoming item when full
//   - Block: Write waits for space; WriteWithContext bounds the wait
//
// Dropped items are reported to the WithDropCallback callback outside the lock.
//
// # Waiting
//
// ReadWithContext and the Block policy wait on sync.Cond variables. Context
// cancellation is delivered with context.AfterFunc, which broadcasts while holding
// the buffer lock so a wakeup is never lost. Close wakes every waiter: pending
// writes fail with ErrAlreadyStopped and reads drain the remaining items first.
//
// # Observability
//
// Statistics counts writes, reads, overflows and drops with atomics and tracks the
// current and peak size. WithMetrics additionally exports the same values as
// mediajoin_queue_* series labelled with the queue name.
package buffer
