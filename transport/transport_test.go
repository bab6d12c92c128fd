package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mediajoin/component"
	"github.com/c360/mediajoin/element"
	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/subnet"
	"github.com/c360/mediajoin/testutil"
	"github.com/c360/mediajoin/transform"
	"github.com/c360/mediajoin/view"
)

type recordingReceiver struct {
	mu   sync.Mutex
	got  map[string][]*view.Buffer
	fail error
}

func (r *recordingReceiver) OnBufferArrived(_ context.Context, port string, buf *view.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.got == nil {
		r.got = make(map[string][]*view.Buffer)
	}
	r.got[port] = append(r.got[port], buf)
	return nil
}

func (r *recordingReceiver) on(port string) []*view.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[port]
}

func TestEncodeDecode(t *testing.T) {
	buf := testutil.At(testutil.Sequential(testutil.RGB(2, 2), 7), 40*time.Millisecond)

	msg := Encode("frames.left", buf)
	assert.Equal(t, "frames.left", msg.Subject)
	assert.Equal(t, "video/x-raw,format=RGB,width=2,height=2", msg.Header.Get(HeaderFormat))
	assert.Equal(t, "40000000", msg.Header.Get(HeaderPTS))

	got, err := Decode(msg, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(buf, got); diff != "" {
		t.Errorf("decoded buffer mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_BareMessage(t *testing.T) {
	got, err := Decode(&nats.Msg{Subject: "raw", Data: []byte{1, 2, 3}}, nil)
	require.NoError(t, err)

	want := &view.Buffer{Data: []byte{1, 2, 3}}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(view.Buffer{}, "ID")); diff != "" {
		t.Errorf("unexpected buffer (-want +got):\n%s", diff)
	}
	assert.NotZero(t, got.ID)
}

func TestDecode_BadHeaders(t *testing.T) {
	msg := nats.NewMsg("bad")
	msg.Header.Set(HeaderFormat, "video/x-raw,format=NOPE,width=1,height=1")
	_, err := Decode(msg, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidFormat)

	msg = nats.NewMsg("bad")
	msg.Header.Set(HeaderPTS, "soon")
	_, err = Decode(msg, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidFormat)
	assert.True(t, errors.IsInvalid(err))
}

func TestNATSSink_Push(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewMockNATSClient()
	sink := NewNATSSink(conn, nil)

	buf := testutil.Filled(testutil.Gray(2, 2), 3)
	err := sink.Push(ctx, "out", buf)
	assert.ErrorIs(t, err, errors.ErrUnknownPort)

	sink.Bind("out", "frames.out")
	require.NoError(t, sink.Push(ctx, "out", buf))

	msgs := conn.GetMessages("frames.out")
	require.Len(t, msgs, 1)
	assert.Equal(t, buf.Data, msgs[0].Data)
	assert.Equal(t, buf.ID.String(), msgs[0].Header.Get(HeaderID))

	conn.FailPublish(errors.ErrConnectionLost)
	err = sink.Push(ctx, "out", buf)
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
	assert.True(t, errors.IsTransient(err))

	sink.Unbind("out")
	_, ok := sink.Subject("out")
	assert.False(t, ok)
}

func TestNATSSource_Subscribe(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewMockNATSClient()
	recv := &recordingReceiver{}
	src := NewNATSSource(conn, recv, nil, nil)

	require.NoError(t, src.Subscribe(ctx, "a", "frames.a"))
	assert.ErrorIs(t, src.Subscribe(ctx, "a", "frames.other"), errors.ErrDuplicateName)
	assert.Equal(t, 1, conn.Subscriptions("frames.a"))

	buf := testutil.Filled(testutil.Gray(2, 2), 9)
	require.NoError(t, conn.PublishMsg(ctx, Encode("frames.a", buf)))

	got := recv.on("a")
	require.Len(t, got, 1)
	assert.Equal(t, buf.ID, got[0].ID)
	assert.Equal(t, buf.Format, got[0].Format)

	bad := nats.NewMsg("frames.a")
	bad.Header.Set(HeaderPTS, "x")
	require.NoError(t, conn.PublishMsg(ctx, bad))

	recv.fail = errors.ErrNotStarted
	require.NoError(t, conn.PublishMsg(ctx, Encode("frames.a", buf)))

	received, rejected := src.Stats()
	assert.Equal(t, int64(3), received)
	assert.Equal(t, int64(2), rejected)

	require.NoError(t, src.Unsubscribe("a"))
	assert.Zero(t, conn.Subscriptions("frames.a"))
	assert.NoError(t, src.Unsubscribe("a"))
}

func TestNATSLinker_ComposeElement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := testutil.NewMockNATSClient()
	sink := NewNATSSink(conn, nil)

	cfg := element.DefaultConfig()
	cfg.Name = "mixer"
	cfg.Inputs = []port.Definition{
		{Name: "left", Caps: "video/x-raw,format=GRAY8,width=2,height=2"},
		{Name: "right", Caps: "video/x-raw,format=GRAY8,width=2,height=2"},
	}
	cfg.Outputs = []port.Definition{{Name: "mix", Caps: "video/x-raw,format=GRAY8,width=2,height=2"}}

	elem, err := element.New(cfg, transform.Built{InPlace: transform.MeanMixer{}}, component.Dependencies{}, element.WithSink(sink))
	require.NoError(t, err)
	require.NoError(t, elem.Initialize())
	require.NoError(t, elem.Start(ctx))
	defer elem.Stop(time.Second)

	src := NewNATSSource(conn, elem, nil, nil)
	linker := &NATSLinker{Source: src, Sink: sink, Prefix: "cam"}

	net, err := subnet.Compose(ctx, elem,
		[]subnet.Entry{{Name: "left", Description: "left"}, {Name: "right", Description: "right"}},
		[]subnet.Entry{{Name: "mix", Description: "mix"}},
		linker)
	require.NoError(t, err)

	require.NoError(t, conn.PublishMsg(ctx, Encode("cam.left", testutil.Filled(testutil.Gray(2, 2), 10))))
	require.NoError(t, conn.PublishMsg(ctx, Encode("cam.right", testutil.Filled(testutil.Gray(2, 2), 21))))

	msgs := conn.GetMessages("cam.mix")
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{15, 15, 15, 15}, msgs[0].Data)

	require.NoError(t, net.Close())
	assert.Zero(t, conn.Subscriptions("cam.left"))
	_, bound := sink.Subject("mix")
	assert.False(t, bound)
}
