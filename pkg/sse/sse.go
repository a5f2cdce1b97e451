// Package sse streams push events over Server-Sent Events for clients that
// cannot hold a websocket open.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Stream is one open SSE response.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
}

// New sets the SSE headers. It returns nil when w cannot flush.
func New(w http.ResponseWriter, r *http.Request) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}
}

// Send writes a named event whose data line is data, already JSON.
func (s *Stream) Send(event string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SendJSON marshals v and sends it as event.
func (s *Stream) SendJSON(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	return s.Send(event, payload)
}

// Comment writes a keepalive comment line.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Message is one event queued for subscribers.
type Message struct {
	Event  string
	Data   []byte
	ShopID string
}

type subscriber struct {
	ch     chan Message
	shopID string
}

// Broker fans messages out to every open stream.
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	// Keepalive is the comment interval on idle streams.
	Keepalive time.Duration
	// OnCount is called with the subscriber count after every change.
	OnCount func(n int)
}

func NewBroker() *Broker {
	return &Broker{subs: map[*subscriber]struct{}{}, Keepalive: 20 * time.Second}
}

func (b *Broker) subscribe(shopID string) *subscriber {
	s := &subscriber{ch: make(chan Message, 32), shopID: shopID}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	b.count(n)
	return s
}

func (b *Broker) unsubscribe(s *subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	n := len(b.subs)
	b.mu.Unlock()
	b.count(n)
}

func (b *Broker) count(n int) {
	if b.OnCount != nil {
		b.OnCount(n)
	}
}

// Publish delivers m to matching subscribers. Full buffers drop the message.
func (b *Broker) Publish(m Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if m.ShopID != "" && s.shopID != "" && s.shopID != m.ShopID {
			continue
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ServeHTTP holds the stream open until the client goes away. ?shopId=
// narrows delivery to one shop.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stream := New(w, r)
	if stream == nil {
		return
	}

	sub := b.subscribe(r.URL.Query().Get("shopId"))
	defer b.unsubscribe(sub)

	keepalive := b.Keepalive
	if keepalive <= 0 {
		keepalive = 20 * time.Second
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-sub.ch:
			if err := stream.Send(m.Event, m.Data); err != nil {
				return
			}
		case <-ticker.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		}
	}
}
