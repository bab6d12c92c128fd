package join

import (
	"time"

	"github.com/c360/mediajoin/view"
)

// Set is one buffer per active input port, in port declaration order
type Set struct {
	Ports   []string
	Buffers []*view.Buffer
}

// Len returns the number of buffers in the set
func (s Set) Len() int {
	return len(s.Buffers)
}

// Get returns the buffer captured for port
func (s Set) Get(port string) (*view.Buffer, bool) {
	for i, p := range s.Ports {
		if p == port {
			return s.Buffers[i], true
		}
	}
	return nil, false
}

// LatestPTS returns the greatest presentation timestamp in the set
func (s Set) LatestPTS() time.Duration {
	var pts time.Duration
	for _, b := range s.Buffers {
		if b != nil && b.PTS > pts {
			pts = b.PTS
		}
	}
	return pts
}

// PortState is the lifecycle of one input slot
type PortState int

// Port slot states
const (
	Empty PortState = iota
	Pending
)

// String returns the state name
func (s PortState) String() string {
	if s == Pending {
		return "pending"
	}
	return "empty"
}

// Outcome describes how a pull cycle ended
type Outcome int

// Pull cycle outcomes
const (
	// Dispatched means every active port produced a buffer and the set was handled
	Dispatched Outcome = iota
	// Incomplete means at least one port produced nothing within the timeout
	Incomplete
	// EndOfStream means no port produced anything within the timeout
	EndOfStream
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Dispatched:
		return "dispatched"
	case Incomplete:
		return "incomplete"
	case EndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Result reports what a push arrival did
type Result struct {
	// Dispatched is true when the arrival completed a set and the handler ran
	Dispatched bool
	// Superseded is true when the arrival replaced an undispatched buffer
	Superseded bool
	// Dropped is true when the port was inactive and the buffer was discarded
	Dropped bool
}
