package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/route"
	"github.com/c360/mediajoin/view"
)

// NATSSink publishes buffers routed to output ports on their bound subjects
type NATSSink struct {
	conn   Conn
	logger *slog.Logger

	mu       sync.RWMutex
	subjects map[string]string
}

// NewNATSSink creates a sink with no bound ports
func NewNATSSink(conn Conn, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{
		conn:     conn,
		logger:   logger,
		subjects: make(map[string]string),
	}
}

// Bind publishes port's buffers on subject, replacing any earlier binding
func (s *NATSSink) Bind(port, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[port] = subject
}

// Unbind stops publishing port
func (s *NATSSink) Unbind(port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, port)
}

// Subject returns the subject bound to port
func (s *NATSSink) Subject(port string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[port]
	return subject, ok
}

// Push publishes buf on the subject bound to port. An unbound port refuses the
// buffer.
func (s *NATSSink) Push(ctx context.Context, port string, buf *view.Buffer) error {
	subject, ok := s.Subject(port)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: output %q has no subject", errors.ErrUnknownPort, port), "NATSSink", "Push", "subject lookup")
	}

	if err := s.conn.PublishMsg(ctx, Encode(subject, buf)); err != nil {
		return errors.WrapTransient(err, "NATSSink", "Push", fmt.Sprintf("publish to %s", subject))
	}
	s.logger.Debug("Buffer published", "port", port, "subject", subject, "buffer", buf.ID, "bytes", buf.Len())
	return nil
}

var _ route.Sink = (*NATSSink)(nil)
