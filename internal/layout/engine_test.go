package layout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, opts ...EngineOption) (*Engine, context.CancelFunc) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	e := NewEngine(cfg, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e, cancel
}

func TestEngine_SnapshotBeforeRun(t *testing.T) {
	e := NewEngine(DefaultConfig())
	f := e.Snapshot()
	assert.Equal(t, uint64(0), f.Tick)
	assert.Empty(t, f.Positions)
	assert.Equal(t, DefaultConfig().Canvas, f.Canvas)
}

func TestEngine_TicksAndPublishes(t *testing.T) {
	var ticks atomic.Int64
	var frames atomic.Int64
	e, _ := startEngine(t,
		WithTickHook(func() { ticks.Add(1) }),
		WithFrameHook(func(Frame) { frames.Add(1) }),
	)
	e.SetGraph([]string{"a", "b", "c"}, []Link{{From: "a", To: "b"}})
	require.NoError(t, e.Flush(context.Background()))
	assert.Len(t, e.Snapshot().Positions, 3)

	require.Eventually(t, func() bool { return e.Snapshot().Tick >= 5 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, ticks.Load(), int64(5))
	assert.Positive(t, frames.Load())
}

func TestEngine_DragAndResize(t *testing.T) {
	e, _ := startEngine(t)
	e.SetGraph([]string{"a", "b"}, nil)
	e.BeginDrag("a")
	require.NoError(t, e.Flush(context.Background()))
	start := e.Snapshot().Positions["a"]

	e.Drag("a", Vec{5, 5})
	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, start.Add(Vec{5, 5}), e.Snapshot().Positions["a"])

	e.EndDrag("a", Vec{6, 6})
	e.BeginDrag("missing")
	e.Resize(Size{Width: 400, Height: 300})
	require.NoError(t, e.Flush(context.Background()))
	f := e.Snapshot()
	assert.Equal(t, Size{Width: 400, Height: 300}, f.Canvas)
	for _, p := range f.Positions {
		assert.LessOrEqual(t, p.X, 400.0)
		assert.LessOrEqual(t, p.Y, 300.0)
	}
}

func TestEngine_FlushAfterStop(t *testing.T) {
	e, cancel := startEngine(t)
	require.NoError(t, e.Flush(context.Background()))
	cancel()
	require.Eventually(t, func() bool {
		return e.Flush(context.Background()) != nil
	}, time.Second, time.Millisecond)
}

func TestEngine_FlushHonoursContext(t *testing.T) {
	// Never started: the command sits in the queue.
	e := NewEngine(DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Flush(ctx), context.DeadlineExceeded)
}

func TestEngine_RunTwiceIsNoop(t *testing.T) {
	e, _ := startEngine(t)
	require.NoError(t, e.Flush(context.Background()))
	assert.NoError(t, e.Run(context.Background()))
}
