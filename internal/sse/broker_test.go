package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tagweave/internal/layout"
)

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(10)
	defer b.Close()
	assert.Equal(t, 0, b.ClientCount())
	ch := b.Subscribe()
	assert.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())
}

func TestPublishEntityEvent(t *testing.T) {
	b := NewBroker(10)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishEntityEvent("created", "a.md")
	msg := receive(t, ch)
	assert.Contains(t, msg, "event: entity.created\n")
	assert.Contains(t, msg, `"path":"a.md"`)

	b.PublishEntityEvent("renamed", "a.md")
	b.PublishEntityEvent("deleted", "a.md")
	assert.Contains(t, receive(t, ch), "event: entity.deleted\n")
}

func TestPublishRebuilt(t *testing.T) {
	b := NewBroker(10)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRebuilt(map[string]int{"nodes": 3})
	msg := receive(t, ch)
	assert.True(t, strings.HasPrefix(msg, "event: graph.rebuilt\ndata: {\"nodes\":3}\n\n"), msg)
}

func TestPublishFrame_RateLimited(t *testing.T) {
	var dropped atomic.Int64
	b := NewBroker(1, WithFrameDropHook(func() { dropped.Add(1) }))
	defer b.Close()

	// No clients: nothing is sent and nothing counts as dropped.
	b.PublishFrame(layout.Frame{Tick: 1})
	assert.Zero(t, dropped.Load())

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	require.Equal(t, 1, b.ClientCount())
	for i := range 20 {
		b.PublishFrame(layout.Frame{Tick: uint64(i), Positions: map[string]layout.Vec{"a": {X: 1, Y: 2}}})
	}
	msgs := drain(ch)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "event: layout.frame\n")
	assert.Contains(t, msgs[0], `"a":{"x":1,"y":2}`)
	assert.Equal(t, int64(19), dropped.Load())
}

func TestPublishFrame_DisabledRate(t *testing.T) {
	var dropped atomic.Int64
	b := NewBroker(0, WithFrameDropHook(func() { dropped.Add(1) }))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	require.Equal(t, 1, b.ClientCount())
	for i := range 50 {
		b.PublishFrame(layout.Frame{Tick: uint64(i)})
	}
	assert.Empty(t, drain(ch))
	// Streaming is off on purpose, so nothing counts as dropped.
	assert.Zero(t, dropped.Load())
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(10)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	b.PublishEntityEvent("updated", "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: entity.updated")
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(10)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The client buffer holds 64; the rest must not block the loop.
	for range 100 {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	assert.Equal(t, 1, b.ClientCount())
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(10)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscriber channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.ClientCount())

	assert.NotPanics(t, func() {
		b.Publish(Event{Type: "entity.updated"})
		b.PublishEntityEvent("updated", "x.md")
		b.PublishFrame(layout.Frame{})
	})
}
