package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/mediajoin/natsclient"
)

// MockNATSClient is an in-memory NATS client matching the publish and
// subscribe methods of natsclient.Client. Publishing delivers synchronously to
// every subscription on the exact subject. Safe for concurrent use.
type MockNATSClient struct {
	mu       sync.RWMutex
	messages map[string][]*nats.Msg
	subs     map[*nats.Subscription]natsclient.MsgHandler
	closed   bool
	failWith error
}

// NewMockNATSClient creates a new mock NATS client
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages: make(map[string][]*nats.Msg),
		subs:     make(map[*nats.Subscription]natsclient.MsgHandler),
	}
}

// FailPublish makes every PublishMsg return err. Nil restores normal operation.
func (c *MockNATSClient) FailPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

// PublishMsg records msg and hands it to matching subscriptions
func (c *MockNATSClient) PublishMsg(ctx context.Context, msg *nats.Msg) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.failWith != nil {
		err := c.failWith
		c.mu.Unlock()
		return err
	}
	c.messages[msg.Subject] = append(c.messages[msg.Subject], msg)

	var handlers []natsclient.MsgHandler
	for sub, h := range c.subs {
		if sub.Subject == msg.Subject {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, handler := range handlers {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		handler(msgCtx, msg)
		cancel()
	}
	return nil
}

// Subscribe registers handler for subject
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (*nats.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	sub := &nats.Subscription{Subject: subject}
	c.subs[sub] = handler
	return sub, nil
}

// Unsubscribe removes a subscription
func (c *MockNATSClient) Unsubscribe(sub *nats.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub)
	return nil
}

// Subscriptions returns the number of live subscriptions on subject
func (c *MockNATSClient) Subscriptions(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for sub := range c.subs {
		if sub.Subject == subject {
			n++
		}
	}
	return n
}

// GetMessages returns the messages published on subject
func (c *MockNATSClient) GetMessages(subject string) []*nats.Msg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*nats.Msg(nil), c.messages[subject]...)
}

// Close closes the mock client
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
