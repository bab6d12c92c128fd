package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/metric"
)

func TestCircularBufferBasicOperations(t *testing.T) {
	buf, err := NewCircularBuffer[string](3)
	require.NoError(t, err, "Failed to create buffer")
	defer buf.Close()

	if !buf.IsEmpty() || buf.Capacity() != 3 {
		t.Fatalf("unexpected initial state: size=%d capacity=%d", buf.Size(), buf.Capacity())
	}

	for _, s := range []string{"first", "second", "third"} {
		if err := buf.Write(s); err != nil {
			t.Fatalf("Failed to write %q: %v", s, err)
		}
	}
	if !buf.IsFull() {
		t.Error("Expected buffer to be full")
	}

	value, ok := buf.Read()
	if !ok || value != "first" {
		t.Errorf("Expected 'first', got %q (ok=%v)", value, ok)
	}

	batch := buf.ReadBatch(5)
	assert.Equal(t, []string{"second", "third"}, batch)
	assert.Nil(t, buf.ReadBatch(1))
	assert.Nil(t, buf.ReadBatch(0))

	_, ok = buf.Read()
	assert.False(t, ok)
}

func TestCircularBufferOverflowPolicies(t *testing.T) {
	tests := []struct {
		name        string
		policy      OverflowPolicy
		wantItems   []int
		wantDropped []int
	}{
		{"drop oldest", DropOldest, []int{3, 4}, []int{1, 2}},
		{"drop newest", DropNewest, []int{1, 2}, []int{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var dropped []int
			buf, err := NewCircularBuffer[int](2,
				WithOverflowPolicy[int](tt.policy),
				WithDropCallback[int](func(item int) {
					mu.Lock()
					dropped = append(dropped, item)
					mu.Unlock()
				}),
			)
			require.NoError(t, err)
			defer buf.Close()

			for i := 1; i <= 4; i++ {
				require.NoError(t, buf.Write(i))
			}

			assert.Equal(t, tt.wantItems, buf.ReadBatch(10))
			mu.Lock()
			assert.Equal(t, tt.wantDropped, dropped)
			mu.Unlock()

			stats := buf.Stats()
			assert.Equal(t, int64(2), stats.Drops())
			assert.Equal(t, int64(2), stats.Overflows())
		})
	}
}

func TestCircularBufferStatistics(t *testing.T) {
	buf, err := NewCircularBuffer[int](4)
	require.NoError(t, err)
	defer buf.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Write(i))
	}
	_, _ = buf.Read()

	summary := buf.Stats().Summary()
	assert.Equal(t, int64(3), summary.Writes)
	assert.Equal(t, int64(1), summary.Reads)
	assert.Equal(t, int64(2), summary.CurrentSize)
	assert.Equal(t, int64(3), summary.MaxSize)
	assert.Zero(t, summary.DropRate)
}

func TestCircularBufferClear(t *testing.T) {
	var count int
	buf, err := NewCircularBuffer[int](3, WithDropCallback[int](func(int) { count++ }))
	require.NoError(t, err)
	defer buf.Close()

	_ = buf.Write(1)
	_ = buf.Write(2)
	buf.Clear()

	assert.True(t, buf.IsEmpty())
	assert.Equal(t, 2, count)

	require.NoError(t, buf.Write(7))
	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestReadWithTimeout(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)
	defer buf.Close()

	start := time.Now()
	_, ok := buf.ReadWithTimeout(50 * time.Millisecond)
	elapsed := time.Since(start)
	assert.False(t, ok)
	if elapsed < 40*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("Expected ~50ms wait, got %v", elapsed)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = buf.Write(42)
	}()
	v, ok := buf.ReadWithTimeout(time.Second)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = buf.ReadWithTimeout(0)
	assert.False(t, ok)
}

func TestReadWithContext(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](2)
		require.NoError(t, err)
		defer buf.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err = buf.ReadWithContext(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed drains first", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](2)
		require.NoError(t, err)

		_ = buf.Write(1)
		require.NoError(t, buf.Close())

		v, err := buf.ReadWithContext(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		_, err = buf.ReadWithContext(context.Background())
		assert.ErrorIs(t, err, cerrors.ErrAlreadyStopped)
	})

	t.Run("close wakes reader", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](2)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := buf.ReadWithContext(context.Background())
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, buf.Close())

		select {
		case err := <-done:
			assert.ErrorIs(t, err, cerrors.ErrAlreadyStopped)
		case <-time.After(time.Second):
			t.Fatal("reader was not woken by Close")
		}
	})
}

func TestBlockingPolicy(t *testing.T) {
	t.Run("context deadline", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
		require.NoError(t, err)
		defer buf.Close()
		_ = buf.Write(1)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err = buf.WriteWithContext(ctx, 2)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected context.DeadlineExceeded, got %v", err)
		}
		assert.Equal(t, 1, buf.Size())
	})

	t.Run("unblocks on read", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
		require.NoError(t, err)
		defer buf.Close()
		_ = buf.Write(1)

		done := make(chan error, 1)
		go func() { done <- buf.Write(2) }()
		time.Sleep(20 * time.Millisecond)

		v, ok := buf.Read()
		require.True(t, ok)
		assert.Equal(t, 1, v)
		require.NoError(t, <-done)

		v, ok = buf.Read()
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("closed during wait", func(t *testing.T) {
		buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
		require.NoError(t, err)
		_ = buf.Write(1)

		done := make(chan error, 1)
		go func() { done <- buf.Write(2) }()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, buf.Close())

		err = <-done
		assert.ErrorIs(t, err, cerrors.ErrAlreadyStopped)
		assert.True(t, cerrors.IsInvalid(err))
	})
}

func TestWriteAfterClose(t *testing.T) {
	buf, err := NewCircularBuffer[int](1)
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())

	err = buf.Write(1)
	assert.ErrorIs(t, err, cerrors.ErrAlreadyStopped)
}

func TestCircularBufferConcurrentProducers(t *testing.T) {
	buf, err := NewCircularBuffer[int](1000)
	require.NoError(t, err)
	defer buf.Close()

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = buf.Write(p*100 + i)
			}
		}(p)
	}

	received := 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for received < 1000 {
		_, err := buf.ReadWithContext(ctx)
		require.NoError(t, err)
		received++
	}
	wg.Wait()
	assert.Equal(t, int64(1000), buf.Stats().Reads())
}

func TestCircularBufferMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	buf, err := NewCircularBuffer[int](2,
		WithMetrics[int](registry, "mixer.in0"),
	)
	require.NoError(t, err)
	defer buf.Close()

	for i := 0; i < 3; i++ {
		_ = buf.Write(i)
	}
	_, _ = buf.Read()

	m := buf.(*circularBuffer[int]).metrics
	require.NotNil(t, m)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.drops))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.size))

	_, err = NewCircularBuffer[int](2, WithMetrics[int](registry, "mixer.in0"))
	assert.Error(t, err)
	assert.True(t, cerrors.IsTransient(err))
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want OverflowPolicy
		ok   bool
	}{
		{"", DropOldest, true},
		{"drop_oldest", DropOldest, true},
		{"drop_newest", DropNewest, true},
		{"block", Block, true},
		{"spill", DropOldest, false},
	}
	for _, tt := range tests {
		got, ok := ParseOverflowPolicy(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.NotEqual(t, "Unknown", got.String())
	}
}
