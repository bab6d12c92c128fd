package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/view"
)

// Receiver accepts buffers arriving on input ports. *element.Element
// implements it.
type Receiver interface {
	OnBufferArrived(ctx context.Context, port string, buf *view.Buffer) error
}

// NATSSource subscribes input subjects and hands decoded buffers to a Receiver
type NATSSource struct {
	conn    Conn
	recv    Receiver
	formats *format.Table
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	received atomic.Int64
	rejected atomic.Int64
}

// NewNATSSource creates a source feeding recv. Format headers are resolved
// through formats, or format.DefaultTable when nil.
func NewNATSSource(conn Conn, recv Receiver, formats *format.Table, logger *slog.Logger) *NATSSource {
	if formats == nil {
		formats = format.DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{
		conn:    conn,
		recv:    recv,
		formats: formats,
		logger:  logger,
		subs:    make(map[string]*nats.Subscription),
	}
}

// Subscribe feeds messages on subject into port. A port has at most one
// subscription.
func (s *NATSSource) Subscribe(ctx context.Context, port, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[port]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: input %q already subscribed", errors.ErrDuplicateName, port),
			"NATSSource", "Subscribe", "port check")
	}

	sub, err := s.conn.Subscribe(ctx, subject, func(msgCtx context.Context, msg *nats.Msg) {
		s.handleMessage(msgCtx, port, msg)
	})
	if err != nil {
		return errors.WrapTransient(err, "NATSSource", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}
	s.subs[port] = sub
	s.logger.Debug("Subscribed input", "port", port, "subject", subject)
	return nil
}

// Unsubscribe drops the subscription feeding port
func (s *NATSSource) Unsubscribe(port string) error {
	s.mu.Lock()
	sub, ok := s.subs[port]
	delete(s.subs, port)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.conn.Unsubscribe(sub)
}

// Close drops every subscription
func (s *NATSSource) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*nats.Subscription)
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := s.conn.Unsubscribe(sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the number of messages received and rejected
func (s *NATSSource) Stats() (received, rejected int64) {
	return s.received.Load(), s.rejected.Load()
}

func (s *NATSSource) handleMessage(ctx context.Context, port string, msg *nats.Msg) {
	s.received.Add(1)

	buf, err := Decode(msg, s.formats)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("Dropping undecodable message", "port", port, "subject", msg.Subject, "error", err)
		return
	}

	if err := s.recv.OnBufferArrived(ctx, port, buf); err != nil {
		s.rejected.Add(1)
		s.logger.Debug("Buffer not accepted", "port", port, "buffer", buf.ID, "error", err)
	}
}
