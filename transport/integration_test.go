//go:build integration

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mediajoin/natsclient"
	"github.com/c360/mediajoin/testutil"
	"github.com/c360/mediajoin/view"
)

type chanReceiver chan *view.Buffer

func (c chanReceiver) OnBufferArrived(_ context.Context, _ string, buf *view.Buffer) error {
	c <- buf
	return nil
}

func TestIntegration_SinkToSource(t *testing.T) {
	tc := natsclient.NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := tc.Client
	recv := make(chanReceiver, 1)
	src := NewNATSSource(client, recv, nil, nil)
	require.NoError(t, src.Subscribe(ctx, "in", "it.frames"))
	defer src.Close()
	require.NoError(t, client.Flush(ctx))

	sink := NewNATSSink(client, nil)
	sink.Bind("out", "it.frames")

	buf := testutil.At(testutil.Sequential(testutil.Gray(4, 2), 1), 5*time.Millisecond)
	require.NoError(t, sink.Push(ctx, "out", buf))

	select {
	case got := <-recv:
		assert.Equal(t, buf.ID, got.ID)
		assert.Equal(t, buf.Data, got.Data)
		assert.Equal(t, buf.Format, got.Format)
		assert.Equal(t, buf.PTS, got.PTS)
	case <-ctx.Done():
		t.Fatal("buffer not received")
	}
}
