package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campusbite/canteen/pkg/logger"
)

// Dialer keeps a client connection to a Hub open, reconnecting with
// exponential backoff until its context ends.
type Dialer struct {
	URL     string
	Header  http.Header
	ShopIDs []string

	// OnConnect, when set, runs after every successful dial and subscribe,
	// so callers can resync state missed while disconnected.
	OnConnect func()

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Listen returns a channel of received events. The channel is closed once
// ctx is done.
func (d Dialer) Listen(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)
	minB, maxB := d.MinBackoff, d.MaxBackoff
	if minB <= 0 {
		minB = 500 * time.Millisecond
	}
	if maxB < minB {
		maxB = 30 * time.Second
	}

	go func() {
		defer close(out)
		backoff := minB
		for {
			connected, err := d.session(ctx, out)
			if ctx.Err() != nil {
				return
			}
			if connected {
				backoff = minB
			}
			logger.Warn("ws: connection lost, retrying", "url", d.URL, "error", err, "in", backoff.String())

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxB {
				backoff = maxB
			}
		}
	}()
	return out
}

// session runs one connection until it fails. It reports whether the dial
// itself succeeded.
func (d Dialer) session(ctx context.Context, out chan<- Event) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if len(d.ShopIDs) > 0 {
		if err := conn.WriteJSON(control{Action: "subscribe", ShopIDs: d.ShopIDs}); err != nil {
			return true, err
		}
	}
	if d.OnConnect != nil {
		d.OnConnect()
	}

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
