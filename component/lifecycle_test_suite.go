package component

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LifecycleFactory creates a fresh component for one lifecycle test
type LifecycleFactory func() LifecycleComponent

// StandardLifecycleTests runs the shared lifecycle checks against components
// built by factory
func StandardLifecycleTests(t *testing.T, factory LifecycleFactory) {
	t.Run("Compliance", func(t *testing.T) {
		testLifecycleCompliance(t, factory)
	})
	t.Run("ErrorPaths", func(t *testing.T) {
		testErrorPaths(t, factory)
	})
	t.Run("Concurrent", func(t *testing.T) {
		testConcurrentStartStop(t, factory)
	})
	t.Run("NoLeaks", func(t *testing.T) {
		testNoGoroutineLeaks(t, factory)
	})
}

func testLifecycleCompliance(t *testing.T, factory LifecycleFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, comp LifecycleComponent)
	}{
		{"Initialize", testInitialize},
		{"StartStop", testStartStop},
		{"StopWithoutStart", testStopWithoutStart},
		{"DoubleStop", testDoubleStop},
		{"StartWithoutInit", testStartWithoutInit},
		{"RestartAfterStop", testRestartAfterStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp, "Component factory returned nil")
			tt.test(t, comp)
		})
	}
}

func testInitialize(t *testing.T, comp LifecycleComponent) {
	assert.NoError(t, comp.Initialize(), "Initialize should succeed on fresh component")
}

func testStartStop(t *testing.T, comp LifecycleComponent) {
	require.NoError(t, comp.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, comp.Start(ctx), "Start should succeed after Initialize")
	assert.NoError(t, comp.Stop(5*time.Second), "Stop should succeed after Start")
}

func testStopWithoutStart(t *testing.T, comp LifecycleComponent) {
	assert.NoError(t, comp.Stop(5*time.Second), "Stop should be safe to call without Start")
}

func testDoubleStop(t *testing.T, comp LifecycleComponent) {
	require.NoError(t, comp.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, comp.Start(ctx))
	assert.NoError(t, comp.Stop(5*time.Second), "First Stop should succeed")
	assert.NoError(t, comp.Stop(5*time.Second), "Second Stop should be idempotent")
}

func testStartWithoutInit(t *testing.T, comp LifecycleComponent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := comp.Start(ctx); err != nil {
		assert.Contains(t, err.Error(), "not initialized")
	}
	assert.NoError(t, comp.Stop(5*time.Second))
}

func testRestartAfterStop(t *testing.T, comp LifecycleComponent) {
	require.NoError(t, comp.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, comp.Start(ctx))
	require.NoError(t, comp.Stop(5*time.Second))

	if err := comp.Start(ctx); err != nil {
		require.NoError(t, comp.Initialize(), "Re-initialize should succeed if Start fails after Stop")
		assert.NoError(t, comp.Start(ctx), "Start should succeed after re-initialization")
	}
	assert.NoError(t, comp.Stop(5*time.Second), "Final Stop should succeed")
}

func testErrorPaths(t *testing.T, factory LifecycleFactory) {
	tests := []struct {
		name      string
		operation func(LifecycleComponent) error
	}{
		{
			name: "cancelled_context_on_start",
			operation: func(comp LifecycleComponent) error {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return comp.Start(ctx)
			},
		},
		{
			name: "expired_context_on_start",
			operation: func(comp LifecycleComponent) error {
				ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
				defer cancel()
				<-ctx.Done()
				return comp.Start(ctx)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp)
			require.NoError(t, comp.Initialize())

			err := tt.operation(comp)
			require.Error(t, err)
			msg := err.Error()
			assert.True(t, strings.Contains(msg, "context") || strings.Contains(msg, "cancel"),
				"error should mention the context: %v", err)

			assert.NoError(t, comp.Stop(5*time.Second), "Component should be stoppable after error")
		})
	}
}

func testConcurrentStartStop(t *testing.T, factory LifecycleFactory) {
	comp := factory()
	require.NotNil(t, comp)
	require.NoError(t, comp.Initialize())

	var wg sync.WaitGroup
	errs := make([]error, 40)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			errs[idx] = comp.Start(ctx)
		}(i)
	}
	for i := 20; i < 40; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			errs[idx] = comp.Stop(5 * time.Second)
		}(i)
	}
	wg.Wait()

	starts, stops := 0, 0
	for i, err := range errs {
		if err != nil {
			continue
		}
		if i < 20 {
			starts++
		} else {
			stops++
		}
	}
	assert.GreaterOrEqual(t, starts, 1, "At least one Start should succeed")
	assert.GreaterOrEqual(t, stops, 1, "At least one Stop should succeed")

	_ = comp.Stop(5 * time.Second)
}

func testNoGoroutineLeaks(t *testing.T, factory LifecycleFactory) {
	if testing.Short() {
		t.Skip("Skipping resource leak test in short mode")
	}

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	initial := runtime.NumGoroutine()

	for i := 0; i < 200; i++ {
		comp := factory()
		if err := comp.Initialize(); err != nil {
			t.Logf("Initialize failed on iteration %d: %v", i, err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := comp.Start(ctx); err != nil {
			t.Logf("Start failed on iteration %d: %v", i, err)
		}
		if err := comp.Stop(5 * time.Second); err != nil {
			t.Logf("Stop failed on iteration %d: %v", i, err)
		}
		cancel()
	}

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	growth := runtime.NumGoroutine() - initial
	assert.LessOrEqual(t, growth, 5, "goroutine count grew by %d", growth)
}
