package join

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/metric"
	"github.com/c360/mediajoin/pkg/buffer"
	"github.com/c360/mediajoin/view"
)

// QueueSource is a Source backed by one bounded queue per port. Producers call
// Push; the coordinator pops in pull mode.
type QueueSource struct {
	mu       sync.RWMutex
	queues   map[string]buffer.Buffer[*view.Buffer]
	capacity int
	policy   buffer.OverflowPolicy
	registry *metric.MetricsRegistry
	prefix   string
	onDrop   DropHook
}

// QueueOption configures a QueueSource
type QueueOption func(*QueueSource)

// WithQueuePolicy sets the overflow policy of every queue
func WithQueuePolicy(p buffer.OverflowPolicy) QueueOption {
	return func(q *QueueSource) { q.policy = p }
}

// WithQueueMetrics exports queue statistics labelled "<prefix>.<port>"
func WithQueueMetrics(registry *metric.MetricsRegistry, prefix string) QueueOption {
	return func(q *QueueSource) {
		q.registry = registry
		q.prefix = prefix
	}
}

// WithQueueDropHook reports buffers discarded by queue overflow
func WithQueueDropHook(h DropHook) QueueOption {
	return func(q *QueueSource) { q.onDrop = h }
}

// NewQueueSource creates a source with one queue of the given capacity per port
func NewQueueSource(capacity int, ports []string, opts ...QueueOption) (*QueueSource, error) {
	q := &QueueSource{
		queues:   make(map[string]buffer.Buffer[*view.Buffer]),
		capacity: capacity,
		policy:   buffer.DropOldest,
	}
	for _, opt := range opts {
		opt(q)
	}
	for _, p := range ports {
		if err := q.AddPort(p); err != nil {
			_ = q.Close()
			return nil, err
		}
	}
	return q, nil
}

// AddPort creates the queue for a port
func (q *QueueSource) AddPort(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queues[name]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrDuplicateName, name), "QueueSource", "AddPort", "name check")
	}

	opts := []buffer.Option[*view.Buffer]{
		buffer.WithOverflowPolicy[*view.Buffer](q.policy),
	}
	if q.onDrop != nil {
		opts = append(opts, buffer.WithDropCallback[*view.Buffer](func(b *view.Buffer) { q.onDrop(name, b) }))
	}
	if q.registry != nil && q.prefix != "" {
		opts = append(opts, buffer.WithMetrics[*view.Buffer](q.registry, q.prefix+"."+name))
	}

	b, err := buffer.NewCircularBuffer[*view.Buffer](q.capacity, opts...)
	if err != nil {
		return errors.Wrap(err, "QueueSource", "AddPort", fmt.Sprintf("queue for %q", name))
	}
	q.queues[name] = b
	return nil
}

// RemovePort closes and discards the queue for a port
func (q *QueueSource) RemovePort(name string) {
	q.mu.Lock()
	b, ok := q.queues[name]
	delete(q.queues, name)
	q.mu.Unlock()

	if ok {
		_ = b.Close()
	}
}

// Push enqueues buf on port. The signature matches route.Sink so a QueueSource
// can terminate a subnet link.
func (q *QueueSource) Push(ctx context.Context, port string, buf *view.Buffer) error {
	b, ok := q.queue(port)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownPort, port), "QueueSource", "Push", "port lookup")
	}
	return b.WriteWithContext(ctx, buf)
}

// Pop waits up to timeout for a buffer on port
func (q *QueueSource) Pop(ctx context.Context, port string, timeout time.Duration) (*view.Buffer, bool) {
	b, ok := q.queue(port)
	if !ok {
		return nil, false
	}
	if timeout <= 0 {
		return b.Read()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	buf, err := b.ReadWithContext(ctx)
	return buf, err == nil
}

// Len returns the number of queued buffers on port
func (q *QueueSource) Len(port string) int {
	b, ok := q.queue(port)
	if !ok {
		return 0
	}
	return b.Size()
}

// Close closes every queue
func (q *QueueSource) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, b := range q.queues {
		_ = b.Close()
	}
	return nil
}

func (q *QueueSource) queue(port string) (buffer.Buffer[*view.Buffer], bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	b, ok := q.queues[port]
	return b, ok
}
