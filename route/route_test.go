package route

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/view"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Push(ctx context.Context, port string, buf *view.Buffer) error {
	args := m.Called(ctx, port, buf)
	return args.Error(0)
}

func buf(fill byte) *view.Buffer {
	return view.NewBuffer([]byte{fill}, format.Descriptor{Width: 1, Height: 1, Components: 1, ElementSize: 1})
}

type orderSink struct {
	mu    sync.Mutex
	order []string
}

func (s *orderSink) Push(_ context.Context, port string, _ *view.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, port)
	return nil
}

func TestRouter_DeliversInOrder(t *testing.T) {
	sink := &orderSink{}
	var delivered []string
	r := NewRouter([]string{"out0", "out1", "out2"}, sink)
	r.OnDelivered = func(p string, _ *view.Buffer) { delivered = append(delivered, p) }

	require.NoError(t, r.Route(context.Background(), []*view.Buffer{buf(0), buf(1), buf(2)}))
	assert.Equal(t, []string{"out0", "out1", "out2"}, sink.order)
	assert.Equal(t, sink.order, delivered)
}

func TestRouter_PartialFailure(t *testing.T) {
	ctx := context.Background()
	b0, b1, b2 := buf(0), buf(1), buf(2)
	refused := fmt.Errorf("not linked")

	m := &mockSink{}
	m.On("Push", ctx, "out0", b0).Return(nil).Once()
	m.On("Push", ctx, "out1", b1).Return(refused).Once()
	m.On("Push", ctx, "out2", b2).Return(nil).Once()

	r := NewRouter([]string{"out0", "out1", "out2"}, m)
	err := r.Route(ctx, []*view.Buffer{b0, b1, b2})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDelivery)
	assert.ErrorIs(t, err, refused)
	assert.True(t, errors.IsTransient(err))

	failures := DeliveryErrors(err)
	require.Len(t, failures, 1)
	assert.Equal(t, "out1", failures[0].Port)
	m.AssertExpectations(t)
}

func TestRouter_ArityMismatchPushesNothing(t *testing.T) {
	m := &mockSink{}
	r := NewRouter([]string{"out0"}, m)

	err := r.Route(context.Background(), []*view.Buffer{buf(0), buf(1)})
	assert.ErrorIs(t, err, errors.ErrArityMismatch)
	m.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_SetPorts(t *testing.T) {
	sink := &orderSink{}
	r := NewRouter(nil, sink)
	require.NoError(t, r.Route(context.Background(), nil))

	r.SetPorts([]string{"x"})
	assert.Equal(t, []string{"x"}, r.Ports())
	require.NoError(t, r.Route(context.Background(), []*view.Buffer{buf(0)}))
	assert.Equal(t, []string{"x"}, sink.order)
}

func TestMultiSink(t *testing.T) {
	var got []*view.Buffer
	record := SinkFunc(func(_ context.Context, _ string, b *view.Buffer) error {
		got = append(got, b)
		return nil
	})
	failing := SinkFunc(func(context.Context, string, *view.Buffer) error {
		return errors.ErrNoConnection
	})

	b := buf(5)
	err := MultiSink{record, failing, record}.Push(context.Background(), "out0", b)
	assert.ErrorIs(t, err, errors.ErrNoConnection)

	require.Len(t, got, 2)
	assert.Same(t, b, got[0])
	assert.NotSame(t, b, got[1])
	assert.Equal(t, b.Data, got[1].Data)
}

func TestDeliveryErrors_Nil(t *testing.T) {
	assert.Nil(t, DeliveryErrors(nil))
}
