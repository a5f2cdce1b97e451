// Package feed keeps client-side views of shops, orders and notifications in
// step with the server. Each view is refreshed by full fetches; pushes only
// trigger them, except token counts which are merged in place.
package feed

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/ws"
)

// DefaultPollInterval bounds how stale the order feed can get when pushes
// are lost.
const DefaultPollInterval = 5 * time.Second

// ErrInvalidReason is returned by Reject before any call is made.
var ErrInvalidReason = errors.New("feed: rejection reason must be one of the allowed reasons")

// OrderSource is the part of the API the order feed needs.
type OrderSource interface {
	ShopkeeperOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string, reason *string) (models.Order, error)
}

// OrderFeed is the operator's view of every order across their shops.
type OrderFeed struct {
	src      OrderSource
	interval time.Duration

	// OnChange, when set, receives every freshly reconciled list.
	OnChange func(orders []models.Order)

	fetchMu sync.Mutex

	mu        sync.RWMutex
	orders    []models.Order
	offset    int
	rejecting string
	lastErr   error
	fetches   int
}

// NewOrderFeed polls every interval; zero means DefaultPollInterval.
func NewOrderFeed(src OrderSource, interval time.Duration) *OrderFeed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &OrderFeed{src: src, interval: interval}
}

// Reconcile replaces the list with a full fetch, newest first. Calls are
// serialized so the last completed fetch wins. On error the previous list is
// kept. The scroll offset captured before the fetch is restored afterwards.
func (f *OrderFeed) Reconcile(ctx context.Context) error {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	offset := f.Offset()
	orders, err := f.src.ShopkeeperOrders(ctx)
	if err != nil {
		f.setErr(err)
		return err
	}
	SortNewestFirst(orders)

	f.mu.Lock()
	f.orders = orders
	f.offset = clamp(offset, len(orders))
	f.lastErr = nil
	f.fetches++
	snapshot := slices.Clone(orders)
	f.mu.Unlock()

	if f.OnChange != nil {
		f.OnChange(snapshot)
	}
	return nil
}

// SortNewestFirst orders by creation time, descending.
func SortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func clamp(offset, n int) int {
	if offset >= n {
		offset = n - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func (f *OrderFeed) Orders() []models.Order {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.orders)
}

// Offset is the index of the first visible row.
func (f *OrderFeed) Offset() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.offset
}

func (f *OrderFeed) SetOffset(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset = clamp(n, len(f.orders))
}

// LastError is the most recent fetch or action failure, cleared by the next
// success.
func (f *OrderFeed) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Fetches counts completed reconciliations.
func (f *OrderFeed) Fetches() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetches
}

func (f *OrderFeed) setErr(err error) {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
}

// BeginReject opens the reason picker for an order.
func (f *OrderFeed) BeginReject(id string) {
	f.mu.Lock()
	f.rejecting = id
	f.mu.Unlock()
}

func (f *OrderFeed) CancelReject() { f.BeginReject("") }

// Rejecting is the order whose reason picker is open, or "".
func (f *OrderFeed) Rejecting() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rejecting
}

// Approve moves an order to approved without a reason, then re-fetches.
func (f *OrderFeed) Approve(ctx context.Context, id string) error {
	return f.update(ctx, id, models.StatusApproved, nil)
}

// Reject sends status and reason in one call. On success the reason picker
// for that order is closed.
func (f *OrderFeed) Reject(ctx context.Context, id, reason string) error {
	if !models.IsRejectionReason(reason) {
		f.setErr(ErrInvalidReason)
		return ErrInvalidReason
	}
	if err := f.update(ctx, id, models.StatusRejected, &reason); err != nil {
		return err
	}
	f.mu.Lock()
	if f.rejecting == id {
		f.rejecting = ""
	}
	f.mu.Unlock()
	return nil
}

// SetStatus moves an order to any status. Legality is the server's call.
func (f *OrderFeed) SetStatus(ctx context.Context, id, status string) error {
	return f.update(ctx, id, status, nil)
}

// update leaves the list untouched on failure; the error is returned and
// kept in LastError.
func (f *OrderFeed) update(ctx context.Context, id, status string, reason *string) error {
	if _, err := f.src.UpdateOrderStatus(ctx, id, status, reason); err != nil {
		f.setErr(err)
		return err
	}
	return f.Reconcile(ctx)
}

// Run reconciles once, then on every new_order push and every poll tick
// until ctx ends. A closed events channel leaves polling alone.
func (f *OrderFeed) Run(ctx context.Context, pushes <-chan ws.Event) {
	f.refresh(ctx, "start")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx, "poll")
		case ev, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			if ev.Type == events.TypeNewOrder {
				f.refresh(ctx, "push")
			}
		}
	}
}

func (f *OrderFeed) refresh(ctx context.Context, trigger string) {
	if err := f.Reconcile(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("feed: order refresh failed", "trigger", trigger, "error", err)
	}
}
