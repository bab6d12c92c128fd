package transport

import (
	"context"

	"github.com/c360/mediajoin/subnet"
)

// NATSLinker links subnet entries by treating each description as a NATS
// subject, optionally under Prefix
type NATSLinker struct {
	Source *NATSSource
	Sink   *NATSSink
	Prefix string
}

// LinkInput subscribes port to the subject
func (l *NATSLinker) LinkInput(ctx context.Context, port, description string) (subnet.Link, error) {
	if err := l.Source.Subscribe(ctx, port, l.Subject(description)); err != nil {
		return nil, err
	}
	return linkFunc(func() error { return l.Source.Unsubscribe(port) }), nil
}

// LinkOutput binds port to the subject
func (l *NATSLinker) LinkOutput(_ context.Context, port, description string) (subnet.Link, error) {
	l.Sink.Bind(port, l.Subject(description))
	return linkFunc(func() error {
		l.Sink.Unbind(port)
		return nil
	}), nil
}

// Subject applies Prefix to a description
func (l *NATSLinker) Subject(description string) string {
	if l.Prefix == "" {
		return description
	}
	return l.Prefix + "." + description
}

type linkFunc func() error

func (f linkFunc) Close() error { return f() }

var _ subnet.Linker = (*NATSLinker)(nil)
