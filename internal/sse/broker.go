// Package sse streams entity, graph and layout updates to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/starford/tagweave/internal/layout"
)

// Event types sent to clients.
const (
	TypeEntityCreated = "entity.created"
	TypeEntityUpdated = "entity.updated"
	TypeEntityDeleted = "entity.deleted"
	TypeGraphRebuilt  = "graph.rebuilt"
	TypeLayoutFrame   = "layout.frame"
)

// Event is one message to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithFrameDropHook registers fn to be called for every layout frame the
// rate limit discards.
func WithFrameDropHook(fn func()) Option {
	return func(b *Broker) { b.onDrop = fn }
}

// Broker fans events out to SSE clients.
//
// Concurrency model: a single event loop goroutine owns the client set.
// Public methods talk to it over channels, so no mutexes are needed.
// Layout frames are rate limited before they reach the loop since the
// layout engine produces them far faster than a browser needs them.
type Broker struct {
	frames  *rate.Limiter // nil when frame streaming is disabled
	onDrop  func()
	clients atomic.Int64

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that sends at most frameRate layout frames per
// second. A non-positive frameRate disables frame streaming.
func NewBroker(frameRate float64, opts ...Option) *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	if frameRate > 0 {
		b.frames = rate.NewLimiter(rate.Limit(frameRate), 1)
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			b.clients.Store(0)
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			b.clients.Store(int64(len(clients)))

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
			b.clients.Store(int64(len(clients)))

		case event := <-b.publishCh:
			broadcast(event)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishEntityEvent announces a change to the entity file at path. kind is
// one of "created", "updated" or "deleted"; anything else is ignored.
func (b *Broker) PublishEntityEvent(kind, path string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeEntityCreated
	case "updated":
		typ = TypeEntityUpdated
	case "deleted":
		typ = TypeEntityDeleted
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"path": path}})
}

// PublishRebuilt announces a newly published graph.
func (b *Broker) PublishRebuilt(info any) {
	b.Publish(Event{Type: TypeGraphRebuilt, Data: info})
}

// PublishFrame offers a layout frame. It never blocks: frames are dropped
// when nobody listens, when the rate limit is exhausted or when the loop is
// backed up. Only the last two count as drops; with streaming disabled
// frames are ignored.
func (b *Broker) PublishFrame(f layout.Frame) {
	if b.frames == nil || b.closed.Load() || b.clients.Load() == 0 {
		return
	}
	if !b.frames.Allow() {
		if b.onDrop != nil {
			b.onDrop()
		}
		return
	}
	select {
	case b.publishCh <- Event{Type: TypeLayoutFrame, Data: f}:
	default:
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}

// ServeHTTP is the SSE endpoint handler.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
