// Package event is an in-process dispatcher. Services fire domain events
// after their transaction commits; listeners push them to websocket clients,
// the message broker and the notifications table.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/campusbite/canteen/pkg/logger"
)

// Handler receives the payload of one fired event.
type Handler func(ctx context.Context, payload interface{})

// Bus holds listeners by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	qmu      sync.Mutex
	queue    []queued
	draining bool
}

type queued struct {
	ctx     context.Context
	name    string
	payload interface{}
}

func NewBus() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers handler for name.
func (b *Bus) Listen(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

func (b *Bus) snapshot(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[name]...)
}

// Fire runs every listener of name in registration order. A panicking
// listener is logged and does not stop the others.
func (b *Bus) Fire(ctx context.Context, name string, payload interface{}) {
	for _, h := range b.snapshot(name) {
		b.call(ctx, name, h, payload)
	}
}

// FireAsync runs the listeners in background goroutines. The request context
// is detached so listeners outlive the handler that fired them.
func (b *Bus) FireAsync(ctx context.Context, name string, payload interface{}) {
	detached := context.WithoutCancel(ctx)
	for _, h := range b.snapshot(name) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.call(detached, name, h, payload)
		}(h)
	}
}

// FireOrdered queues the event behind every earlier FireOrdered call. One
// background goroutine delivers the queue in order, so listeners that push
// absolute values (token counters) never see an older value after a newer
// one. The caller does not wait for delivery.
func (b *Bus) FireOrdered(ctx context.Context, name string, payload interface{}) {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	b.queue = append(b.queue, queued{ctx: context.WithoutCancel(ctx), name: name, payload: payload})
	if !b.draining {
		b.draining = true
		b.wg.Add(1)
		go b.drain()
	}
}

func (b *Bus) drain() {
	defer b.wg.Done()
	for {
		b.qmu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.qmu.Unlock()
			return
		}
		q := b.queue[0]
		b.queue[0] = queued{}
		b.queue = b.queue[1:]
		b.qmu.Unlock()

		b.Fire(q.ctx, q.name, q.payload)
	}
}

// Wait blocks until every FireAsync listener has returned and the ordered
// queue is empty.
func (b *Bus) Wait() { b.wg.Wait() }

func (b *Bus) call(ctx context.Context, name string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", name, "panic", fmt.Sprint(r))
		}
	}()
	h(ctx, payload)
}

// Flush drops every listener.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}
