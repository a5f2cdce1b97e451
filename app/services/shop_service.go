package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/pkg/cache"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
)

const (
	shopListKey = "shops:all"
	shopListTTL = 30 * time.Second
)

// PlaceholderShopNames are demo entries that earlier deployments seeded into
// production and that the purge command removes.
var PlaceholderShopNames = []string{
	"Sample Shop",
	"Test Shop",
	"Demo Shop",
	"Placeholder Shop",
	"New Shop",
}

type ShopService struct {
	shops *repositories.ShopRepository
	cache *cache.Store
}

func NewShopService(shops *repositories.ShopRepository, c *cache.Store) *ShopService {
	return &ShopService{shops: shops, cache: c}
}

// Register drops the cached list whenever token counters move.
func (s *ShopService) Register(bus *event.Bus) {
	bus.Listen(events.ShopTokensChanged, func(ctx context.Context, _ interface{}) {
		s.invalidate(ctx)
	})
}

type ShopInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	Category      string `json:"category" validate:"max=60"`
	Closed        bool   `json:"closed"`
	EstimatedWait int    `json:"estimatedWait" validate:"gte=0,lte=240"`
	ImageURL      string `json:"imageUrl"`
}

// List returns every shop, read through the Redis cache.
func (s *ShopService) List(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	if s.cache.Get(ctx, shopListKey, &shops) {
		metrics.CacheHits.Inc()
		return shops, nil
	}
	if s.cache.Enabled() {
		metrics.CacheMisses.Inc()
	}

	shops, err := s.shops.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("shops: list: %w", err)
	}
	if err := s.cache.Set(ctx, shopListKey, shops, shopListTTL); err != nil {
		logger.WithCtx(ctx).Warn("shops: cache set failed", "error", err)
	}
	return shops, nil
}

func (s *ShopService) Get(ctx context.Context, id string) (models.Shop, error) {
	shop, err := s.shops.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Shop{}, ErrShopNotFound
	}
	return shop, err
}

// Owned returns the shops a user may operate: their own, or all for admins.
func (s *ShopService) Owned(ctx context.Context, userID, role string) ([]models.Shop, error) {
	if role == models.RoleAdmin {
		return s.shops.All(ctx)
	}
	return s.shops.ByOwner(ctx, userID)
}

func (s *ShopService) Create(ctx context.Context, ownerID string, in ShopInput) (models.Shop, error) {
	shop := models.Shop{
		OwnerID:       ownerID,
		Name:          strings.TrimSpace(in.Name),
		Category:      in.Category,
		Closed:        in.Closed,
		EstimatedWait: in.EstimatedWait,
		ImageURL:      in.ImageURL,
	}
	if err := s.shops.Create(ctx, &shop); err != nil {
		return models.Shop{}, fmt.Errorf("shops: create: %w", err)
	}
	s.invalidate(ctx)
	return shop, nil
}

// Update replaces the editable fields. Token counters are left alone.
func (s *ShopService) Update(ctx context.Context, userID, role, id string, in ShopInput) (models.Shop, error) {
	shop, err := s.owned(ctx, userID, role, id)
	if err != nil {
		return models.Shop{}, err
	}
	shop.Name = strings.TrimSpace(in.Name)
	shop.Category = in.Category
	shop.Closed = in.Closed
	shop.EstimatedWait = in.EstimatedWait
	shop.ImageURL = in.ImageURL
	if err := s.shops.Save(ctx, &shop); err != nil {
		return models.Shop{}, fmt.Errorf("shops: update: %w", err)
	}
	s.invalidate(ctx)
	return shop, nil
}

func (s *ShopService) Delete(ctx context.Context, userID, role, id string) error {
	if _, err := s.owned(ctx, userID, role, id); err != nil {
		return err
	}
	if err := s.shops.Delete(ctx, id); err != nil {
		return fmt.Errorf("shops: delete: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// PurgePlaceholders deletes shops whose name matches a known placeholder.
// With dryRun it only reports the matches. Running it twice is harmless.
func (s *ShopService) PurgePlaceholders(ctx context.Context, dryRun bool) ([]models.Shop, error) {
	shops, err := s.shops.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("shops: purge: list: %w", err)
	}

	var matched []models.Shop
	for _, shop := range shops {
		if IsPlaceholderShop(shop.Name) {
			matched = append(matched, shop)
		}
	}
	if dryRun || len(matched) == 0 {
		return matched, nil
	}

	var errs []error
	for _, shop := range matched {
		if err := s.shops.Delete(ctx, shop.ID); err != nil {
			errs = append(errs, fmt.Errorf("shops: purge %s: %w", shop.ID, err))
			continue
		}
		logger.WithCtx(ctx).Info("shops: placeholder purged", "shop_id", shop.ID, "name", shop.Name)
	}
	s.invalidate(ctx)
	return matched, errors.Join(errs...)
}

func IsPlaceholderShop(name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range PlaceholderShopNames {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}

func (s *ShopService) owned(ctx context.Context, userID, role, id string) (models.Shop, error) {
	shop, err := s.Get(ctx, id)
	if err != nil {
		return models.Shop{}, err
	}
	if role != models.RoleAdmin && shop.OwnerID != userID {
		return models.Shop{}, ErrForbidden
	}
	return shop, nil
}

func (s *ShopService) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, shopListKey); err != nil {
		logger.WithCtx(ctx).Warn("shops: cache invalidate failed", "error", err)
	}
}
