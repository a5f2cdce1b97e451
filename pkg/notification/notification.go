// Package notification dispatches a notification through every channel it
// asks for.
//
//	type OrderReady struct{ Order models.Order }
//	func (n OrderReady) Via() []string { return []string{"database", "webhook"} }
//	func (n OrderReady) ToDatabase() notification.Record { ... }
//	func (n OrderReady) ToWebhook() notification.WebhookData { ... }
//
//	d := &notification.Dispatcher{Store: store, WebhookURL: url}
//	err := d.Send(ctx, OrderReady{order})
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpclient "github.com/campusbite/canteen/pkg/http"
)

const (
	ChannelDatabase = "database"
	ChannelWebhook  = "webhook"
)

// Notification names the channels it should be sent through.
type Notification interface {
	Via() []string
}

// Record is the row written by the database channel.
type Record struct {
	UserID  string
	OrderID string
	Title   string
	Message string
}

type Databaseable interface {
	ToDatabase() Record
}

// WebhookData is POSTed as JSON to the dispatcher's webhook.
type WebhookData struct {
	Payload interface{}
	Headers map[string]string
}

type Webhookable interface {
	ToWebhook() WebhookData
}

// Store persists database-channel records.
type Store interface {
	Save(ctx context.Context, r Record) error
}

// Dispatcher routes notifications to their channels. The webhook channel is
// skipped while WebhookURL is empty.
type Dispatcher struct {
	Store      Store
	WebhookURL string
	Client     *http.Client
}

// Send tries every channel and joins their errors.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, channel := range n.Via() {
		if err := d.dispatch(ctx, channel, n); err != nil {
			errs = append(errs, fmt.Errorf("notification: %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, channel string, n Notification) error {
	switch channel {
	case ChannelDatabase:
		db, ok := n.(Databaseable)
		if !ok {
			return fmt.Errorf("%T does not implement Databaseable", n)
		}
		if d.Store == nil {
			return errors.New("no store configured")
		}
		return d.Store.Save(ctx, db.ToDatabase())

	case ChannelWebhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("%T does not implement Webhookable", n)
		}
		if d.WebhookURL == "" {
			return nil
		}
		return d.sendWebhook(ctx, wh.ToWebhook())

	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

func (d *Dispatcher) sendWebhook(ctx context.Context, data WebhookData) error {
	req := httpclient.Post(d.WebhookURL).
		WithContext(ctx).
		Body(data.Payload).
		Timeout(5 * time.Second).
		Retry(2, 200*time.Millisecond)
	for k, v := range data.Headers {
		req.Header(k, v)
	}
	if d.Client != nil {
		req.Using(d.Client)
	}
	resp, err := req.Send()
	if err != nil {
		return err
	}
	return resp.Throw()
}
