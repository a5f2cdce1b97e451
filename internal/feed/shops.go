package feed

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/ws"
)

type ShopSource interface {
	Shops(ctx context.Context) ([]models.Shop, error)
}

// Defaults for ShopRegistry.Run.
const (
	DefaultShopRetry    = 2 * time.Second
	DefaultShopInterval = 30 * time.Second
)

// ShopRegistry caches the shop list and merges live token counts into it.
type ShopRegistry struct {
	src ShopSource

	// OnChange, when set, receives the list after every refresh or merge.
	OnChange func(shops []models.Shop)

	// Retry spaces attempts while the first load keeps failing; Interval
	// bounds staleness when pushes are missed.
	Retry    time.Duration
	Interval time.Duration

	mu     sync.RWMutex
	shops  []models.Shop
	resync chan struct{}
}

func NewShopRegistry(src ShopSource) *ShopRegistry {
	return &ShopRegistry{
		src:      src,
		Retry:    DefaultShopRetry,
		Interval: DefaultShopInterval,
		resync:   make(chan struct{}, 1),
	}
}

// Resync asks Run to refetch the list. Pass it as ws.Dialer.OnConnect so
// counters missed while disconnected are recovered. It never blocks.
func (r *ShopRegistry) Resync() {
	select {
	case r.resync <- struct{}{}:
	default:
	}
}

// Refresh replaces the cache. On error the previous list is kept.
func (r *ShopRegistry) Refresh(ctx context.Context) error {
	shops, err := r.src.Shops(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.shops = shops
	snapshot := slices.Clone(shops)
	r.mu.Unlock()
	r.changed(snapshot)
	return nil
}

func (r *ShopRegistry) Shops() []models.Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.shops)
}

// ApplyTokens sets one shop's active token count in place. Unknown ids are
// ignored; it reports whether a shop was updated.
func (r *ShopRegistry) ApplyTokens(shopID string, active int) bool {
	r.mu.Lock()
	i := slices.IndexFunc(r.shops, func(s models.Shop) bool { return s.ID == shopID })
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	r.shops[i].ActiveTokens = active
	snapshot := slices.Clone(r.shops)
	r.mu.Unlock()
	r.changed(snapshot)
	return true
}

// Apply merges a shop_tokens_update push; other events are ignored.
func (r *ShopRegistry) Apply(ev ws.Event) bool {
	if ev.Type != events.TypeShopTokensUpdate {
		return false
	}
	var p events.ShopTokensFrame
	if err := ev.Decode(&p); err != nil {
		logger.Warn("feed: bad shop_tokens_update", "error", err)
		return false
	}
	return r.ApplyTokens(p.ShopID, p.ActiveTokens)
}

// Run loads the list, retrying until it succeeds, then applies pushes until
// ctx ends or the channel closes. The list is refetched on Resync and every
// Interval. It returns ctx.Err() if ctx ends before the first load.
func (r *ShopRegistry) Run(ctx context.Context, pushes <-chan ws.Event) error {
	for {
		err := r.Refresh(ctx)
		if err == nil {
			break
		}
		logger.Warn("feed: shop list unavailable, retrying", "error", err, "in", r.Retry.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Retry):
		}
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refetch(ctx, "poll")
		case <-r.resync:
			r.refetch(ctx, "resync")
		case ev, ok := <-pushes:
			if !ok {
				return nil
			}
			r.Apply(ev)
		}
	}
}

func (r *ShopRegistry) refetch(ctx context.Context, reason string) {
	if err := r.Refresh(ctx); err != nil {
		logger.Warn("feed: shop refresh failed", "reason", reason, "error", err)
	}
}

func (r *ShopRegistry) changed(shops []models.Shop) {
	if r.OnChange != nil {
		r.OnChange(shops)
	}
}
