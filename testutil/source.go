package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/c360/mediajoin/view"
)

// ScriptedSource implements join.Source from per-port scripts. Each Pop takes
// the next scripted buffer; a nil entry or an exhausted script behaves like a
// port that produced nothing within the timeout.
type ScriptedSource struct {
	mu      sync.Mutex
	scripts map[string][]*view.Buffer
	pops    map[string]int
	// Wait controls whether an empty Pop sleeps for the timeout
	Wait bool
}

// NewScriptedSource creates a source with no scripts
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		scripts: make(map[string][]*view.Buffer),
		pops:    make(map[string]int),
	}
}

// Script appends buffers to port's script
func (s *ScriptedSource) Script(port string, bufs ...*view.Buffer) *ScriptedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[port] = append(s.scripts[port], bufs...)
	return s
}

// Pop implements join.Source
func (s *ScriptedSource) Pop(ctx context.Context, port string, timeout time.Duration) (*view.Buffer, bool) {
	s.mu.Lock()
	s.pops[port]++
	var buf *view.Buffer
	if script := s.scripts[port]; len(script) > 0 {
		buf = script[0]
		s.scripts[port] = script[1:]
	}
	wait := s.Wait
	s.mu.Unlock()

	if buf != nil {
		return buf, true
	}
	if wait && timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return nil, false
}

// Pops returns how many times port was popped
func (s *ScriptedSource) Pops(port string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pops[port]
}
