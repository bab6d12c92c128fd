package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/c360/mediajoin/view"
)

// Delivery is one buffer accepted by a RecordingSink
type Delivery struct {
	Port   string
	Buffer *view.Buffer
}

// RecordingSink implements route.Sink by recording every accepted buffer
type RecordingSink struct {
	mu         sync.Mutex
	deliveries []Delivery
	refuse     map[string]error
	notify     chan struct{}
}

// NewRecordingSink creates an empty sink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		refuse: make(map[string]error),
		notify: make(chan struct{}, 1),
	}
}

// Refuse makes Push to port fail with err. A nil err accepts again.
func (s *RecordingSink) Refuse(port string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.refuse, port)
		return
	}
	s.refuse[port] = err
}

// Push implements route.Sink
func (s *RecordingSink) Push(_ context.Context, port string, buf *view.Buffer) error {
	s.mu.Lock()
	if err, ok := s.refuse[port]; ok {
		s.mu.Unlock()
		return err
	}
	s.deliveries = append(s.deliveries, Delivery{Port: port, Buffer: buf})
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Deliveries returns a copy of everything accepted so far
func (s *RecordingSink) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.deliveries...)
}

// On returns the buffers accepted on port in order
func (s *RecordingSink) On(port string) []*view.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*view.Buffer
	for _, d := range s.deliveries {
		if d.Port == port {
			out = append(out, d.Buffer)
		}
	}
	return out
}

// Len returns the number of accepted buffers
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

// WaitFor blocks until at least n buffers were accepted or timeout elapses
func (s *RecordingSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if s.Len() >= n {
			return true
		}
		select {
		case <-s.notify:
		case <-deadline.C:
			return s.Len() >= n
		}
	}
}
