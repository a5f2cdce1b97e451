package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusbite/canteen/app/models"
)

type ShopRepository struct {
	db *gorm.DB
}

func NewShopRepository(db *gorm.DB) *ShopRepository {
	return &ShopRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ShopRepository) WithTx(tx *gorm.DB) *ShopRepository {
	return &ShopRepository{db: tx}
}

func (r *ShopRepository) All(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.WithContext(ctx).Order("name asc").Find(&shops).Error
	return shops, err
}

func (r *ShopRepository) ByOwner(ctx context.Context, ownerID string) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name asc").Find(&shops).Error
	return shops, err
}

func (r *ShopRepository) Find(ctx context.Context, id string) (models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error
	return shop, err
}

// FindForUpdate locks the row inside a transaction where the dialect
// supports it.
func (r *ShopRepository) FindForUpdate(ctx context.Context, id string) (models.Shop, error) {
	var shop models.Shop
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&shop, "id = ?", id).Error
	return shop, err
}

func (r *ShopRepository) Create(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *ShopRepository) Save(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}

func (r *ShopRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Shop{}, "id = ?", id).Error
}

// IssueToken bumps the active token and open order counters by one.
func (r *ShopRepository) IssueToken(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Shop{}).Where("id = ?", id).Updates(map[string]interface{}{
		"active_tokens":  gorm.Expr("active_tokens + 1"),
		"current_orders": gorm.Expr("current_orders + 1"),
	}).Error
}

// ReleaseOrder decrements the open order counter without going below zero.
func (r *ShopRepository) ReleaseOrder(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Shop{}).
		Where("id = ? AND current_orders > 0", id).
		Update("current_orders", gorm.Expr("current_orders - 1")).Error
}

// ResetTokens sets active_tokens to 0.
func (r *ShopRepository) ResetTokens(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Shop{}).Where("id = ?", id).
		Update("active_tokens", 0).Error
}
