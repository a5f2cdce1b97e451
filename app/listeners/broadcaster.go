// Package listeners subscribes infrastructure to the domain event bus.
package listeners

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/pkg/cache"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
	"github.com/campusbite/canteen/pkg/sse"
	"github.com/campusbite/canteen/pkg/ws"
)

const relayChannel = "canteen:events"

// Publisher forwards frames to an external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Broadcaster turns bus events into push frames. With a live Redis relay
// frames go through pub/sub so every API instance delivers them; otherwise
// they are delivered to this instance's clients directly.
type Broadcaster struct {
	Hub   *ws.Hub
	SSE   *sse.Broker
	Relay *cache.Store
	MQ    Publisher
}

type frame struct {
	Type    string          `json:"type"`
	ShopID  string          `json:"shopId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func (b *Broadcaster) Register(bus *event.Bus) {
	bus.Listen(events.OrderPlaced, func(ctx context.Context, p interface{}) {
		placed, ok := p.(events.OrderPlacedPayload)
		if !ok {
			return
		}
		b.Send(ctx, events.TypeNewOrder, placed.Order.ShopID, events.NewOrderFrame{
			ShopID:  placed.Order.ShopID,
			OrderID: placed.Order.ID,
		})
	})
	bus.Listen(events.ShopTokensChanged, func(ctx context.Context, p interface{}) {
		changed, ok := p.(events.ShopTokensChangedPayload)
		if !ok {
			return
		}
		b.Send(ctx, events.TypeShopTokensUpdate, changed.ShopID, events.ShopTokensFrame{
			ShopID:        changed.ShopID,
			ActiveTokens:  changed.ActiveTokens,
			CurrentOrders: changed.CurrentOrders,
		})
	})
}

// Send emits one frame to every transport.
func (b *Broadcaster) Send(ctx context.Context, typ, shopID string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("broadcast: marshal payload", "type", typ, "error", err)
		return
	}
	f := frame{Type: typ, ShopID: shopID, Payload: raw}
	body, _ := json.Marshal(f)
	metrics.EventsPublished.WithLabelValues(typ).Inc()

	if b.MQ != nil {
		if err := b.MQ.Publish(ctx, routingKey(typ, shopID), body); err != nil {
			logger.Warn("broadcast: broker publish failed", "type", typ, "error", err)
		}
	}

	if b.Relay.Enabled() {
		err := b.Relay.Publish(ctx, relayChannel, body)
		if err == nil {
			return
		}
		logger.Warn("broadcast: relay publish failed, delivering locally", "type", typ, "error", err)
	}
	b.deliver(f)
}

// RunRelay delivers frames published by any instance until ctx ends. It
// returns at once when no relay is configured.
func (b *Broadcaster) RunRelay(ctx context.Context) error {
	if !b.Relay.Enabled() {
		return nil
	}
	return b.Relay.Subscribe(ctx, relayChannel, func(raw []byte) {
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Warn("broadcast: bad relay frame", "error", err)
			return
		}
		b.deliver(f)
	})
}

func (b *Broadcaster) deliver(f frame) {
	if b.Hub != nil {
		b.Hub.Publish(ws.Event{Type: f.Type, Payload: f.Payload, ShopID: f.ShopID})
	}
	if b.SSE != nil {
		b.SSE.Publish(sse.Message{Event: f.Type, Data: f.Payload, ShopID: f.ShopID})
	}
}

// routingKey maps new_order for shop s1 to "new.order.s1".
func routingKey(typ, shopID string) string {
	key := strings.ReplaceAll(typ, "_", ".")
	if shopID != "" {
		key += "." + shopID
	}
	return key
}
