package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/campusbite/canteen/app/models"
)

type NotificationSource interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// NotificationFeed is the customer's notification list.
type NotificationFeed struct {
	src NotificationSource

	mu    sync.RWMutex
	items []models.Notification
}

func NewNotificationFeed(src NotificationSource) *NotificationFeed {
	return &NotificationFeed{src: src}
}

func (f *NotificationFeed) Refresh(ctx context.Context) error {
	items, err := f.src.Notifications(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
	return nil
}

func (f *NotificationFeed) Items() []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}

func (f *NotificationFeed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead flags the notification on the server, then locally.
func (f *NotificationFeed) MarkRead(ctx context.Context, id string) error {
	if err := f.src.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
		}
	}
	return nil
}
