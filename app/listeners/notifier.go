package listeners

import (
	"context"
	"fmt"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/notification"
)

// Notifier tells the customer about every order event.
type Notifier struct {
	Dispatcher *notification.Dispatcher
}

func (n *Notifier) Register(bus *event.Bus) {
	bus.Listen(events.OrderPlaced, func(ctx context.Context, p interface{}) {
		if placed, ok := p.(events.OrderPlacedPayload); ok {
			n.send(ctx, orderNotice{
				order:   placed.Order,
				title:   "Order placed",
				message: fmt.Sprintf("Your token is #%d. We'll let you know once the shop confirms.", placed.Order.TokenNumber),
			})
		}
	})
	bus.Listen(events.OrderStatusChanged, func(ctx context.Context, p interface{}) {
		if changed, ok := p.(events.OrderStatusChangedPayload); ok {
			title, msg := StatusMessage(changed.Order)
			n.send(ctx, orderNotice{order: changed.Order, from: changed.From, title: title, message: msg})
		}
	})
}

func (n *Notifier) send(ctx context.Context, notice orderNotice) {
	if err := n.Dispatcher.Send(ctx, notice); err != nil {
		logger.WithCtx(ctx).Error("notifier: send failed", "order_id", notice.order.ID, "error", err)
	}
}

type orderNotice struct {
	order   models.Order
	from    string
	title   string
	message string
}

func (orderNotice) Via() []string {
	return []string{notification.ChannelDatabase, notification.ChannelWebhook}
}

func (o orderNotice) ToDatabase() notification.Record {
	return notification.Record{UserID: o.order.UserID, OrderID: o.order.ID, Title: o.title, Message: o.message}
}

func (o orderNotice) ToWebhook() notification.WebhookData {
	return notification.WebhookData{Payload: map[string]interface{}{
		"orderId":     o.order.ID,
		"shopId":      o.order.ShopID,
		"tokenNumber": o.order.TokenNumber,
		"from":        o.from,
		"status":      o.order.Status,
		"title":       o.title,
		"message":     o.message,
	}}
}

// NotificationStore saves database-channel records as notifications rows.
type NotificationStore struct {
	Repo *repositories.NotificationRepository
}

func (s NotificationStore) Save(ctx context.Context, r notification.Record) error {
	row := &models.Notification{UserID: r.UserID, Title: r.Title, Message: r.Message}
	if r.OrderID != "" {
		id := r.OrderID
		row.OrderID = &id
	}
	return s.Repo.Create(ctx, row)
}

// StatusMessage is the notification text for an order's current status.
func StatusMessage(o models.Order) (title, message string) {
	token := fmt.Sprintf("#%d", o.TokenNumber)
	switch o.Status {
	case models.StatusApproved:
		return "Order approved", "Order " + token + " was accepted and will be prepared shortly."
	case models.StatusRejected:
		reason := models.ReasonOther
		if o.RejectionReason != nil {
			reason = *o.RejectionReason
		}
		return "Order rejected", "Order " + token + " was rejected: " + reason + "."
	case models.StatusPreparing:
		return "Order in progress", "Order " + token + " is being prepared."
	case models.StatusReady:
		return "Order ready", "Order " + token + " is ready for pickup."
	case models.StatusCompleted:
		return "Order completed", "Order " + token + " has been picked up. Enjoy your meal!"
	case models.StatusCancelled:
		return "Order cancelled", "Order " + token + " was cancelled."
	}
	return "Order updated", "Order " + token + " is now " + o.Status + "."
}
