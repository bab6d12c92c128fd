//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_PublishSubscribeHeaders(t *testing.T) {
	tc := NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan *nats.Msg, 1)
	_, err := tc.Client.Subscribe(ctx, "frames.left", func(_ context.Context, msg *nats.Msg) {
		received <- msg
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Flush(ctx))

	msg := nats.NewMsg("frames.left")
	msg.Header.Set("Mediajoin-Format", "video/x-raw,format=GRAY8,width=2,height=2")
	msg.Data = []byte{1, 2, 3, 4}
	require.NoError(t, tc.Client.PublishMsg(ctx, msg))

	select {
	case got := <-received:
		assert.Equal(t, []byte{1, 2, 3, 4}, got.Data)
		assert.Equal(t, "video/x-raw,format=GRAY8,width=2,height=2", got.Header.Get("Mediajoin-Format"))
	case <-ctx.Done():
		t.Fatal("message not received")
	}

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Positive(t, rtt)
	assert.True(t, tc.Client.IsHealthy())
}

func TestIntegration_Unsubscribe(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	count := make(chan struct{}, 10)
	sub, err := tc.Client.Subscribe(ctx, "frames.right", func(context.Context, *nats.Msg) {
		count <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Unsubscribe(sub))
	require.NoError(t, tc.Client.Flush(ctx))

	require.NoError(t, tc.Client.PublishMsg(ctx, &nats.Msg{Subject: "frames.right", Data: []byte("x")}))
	require.NoError(t, tc.Client.Flush(ctx))

	select {
	case <-count:
		t.Fatal("handler ran after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
