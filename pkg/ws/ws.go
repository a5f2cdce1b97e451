// Package ws is the push channel between the API and its clients, built on
// gorilla/websocket.
//
// Server side, one Hub fans events out to connected clients:
//
//	hub := ws.NewHub()
//	go hub.Run(ctx)
//	router.Get("/ws", "ws", hub.Serve)
//	hub.Publish(ev)
//
// A client may narrow delivery to some shops by sending
// {"action":"subscribe","shopIds":["..."]}. Events without a shop id reach
// everyone.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campusbite/canteen/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// TypeSubscribed acknowledges a subscribe or unsubscribe message.
const TypeSubscribed = "subscribed"

// Event is one framed push message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// ShopID scopes delivery to clients subscribed to that shop. Not sent.
	ShopID string `json:"-"`
}

// NewEvent encodes payload into an Event.
func NewEvent(typ, shopID string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Payload: raw, ShopID: shopID}, nil
}

// Decode unmarshals the payload into dest.
func (e Event) Decode(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetCheckOrigin replaces the allow-all origin check.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

type control struct {
	Action  string   `json:"action"`
	ShopIDs []string `json:"shopIds"`
}

// Client is one connected socket. send is closed only through close, so a
// subscribe ack racing an eviction never writes to a closed channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	mu    sync.RWMutex
	shops map[string]bool
}

func (c *Client) wants(shopID string) bool {
	if shopID == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shops) == 0 || c.shops[shopID]
}

func (c *Client) apply(msg control) {
	c.mu.Lock()
	switch msg.Action {
	case "subscribe":
		for _, id := range msg.ShopIDs {
			c.shops[id] = true
		}
	case "unsubscribe":
		if len(msg.ShopIDs) == 0 {
			c.shops = map[string]bool{}
		}
		for _, id := range msg.ShopIDs {
			delete(c.shops, id)
		}
	default:
		c.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(c.shops))
	for id := range c.shops {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	ack, _ := json.Marshal(Event{Type: TypeSubscribed, Payload: mustJSON(map[string][]string{"shopIds": ids})})
	c.trySend(ack)
}

func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close ends the writer; later sends are dropped. Safe to call twice.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws: unexpected close", "error", err)
			}
			return
		}
		var msg control
		if json.Unmarshal(data, &msg) == nil {
			c.apply(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type outbound struct {
	shopID string
	data   []byte
}

// Hub owns the set of connected clients. Only Run touches the map's
// membership; the mutex lets ClientCount read it from other goroutines.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	// OnCount, when set, is called from Run with the client count after every
	// connect or disconnect.
	OnCount func(n int)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("ws: client connected", "total", n)
			h.count(n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("ws: client disconnected", "total", n)
			h.count(n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.shopID) {
					continue
				}
				if !c.trySend(msg.data) {
					logger.Warn("ws: slow client evicted")
					c.close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) count(n int) {
	if h.OnCount != nil {
		h.OnCount(n)
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues ev for delivery. It drops the event when the hub is
// saturated; clients recover through their polling fallback.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("ws: marshal event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{shopID: ev.ShopID, data: data}:
	default:
		logger.Warn("ws: broadcast buffer full, event dropped", "type", ev.Type)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and registers the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("ws: upgrade failed", "error", err)
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), shops: map[string]bool{}}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func mustJSON(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
