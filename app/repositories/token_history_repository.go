package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusbite/canteen/app/models"
)

type TokenHistoryRepository struct {
	db *gorm.DB
}

func NewTokenHistoryRepository(db *gorm.DB) *TokenHistoryRepository {
	return &TokenHistoryRepository{db: db}
}

// Upsert writes the day's maximum token for a shop, overwriting any earlier
// record for the same (shop, date).
func (r *TokenHistoryRepository) Upsert(ctx context.Context, shopID, date string, maxToken int) error {
	row := models.ShopTokenHistory{ShopID: shopID, Date: date, MaxToken: maxToken}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"max_token": maxToken}),
	}).Create(&row).Error
}

func (r *TokenHistoryRepository) ForShop(ctx context.Context, shopID string) ([]models.ShopTokenHistory, error) {
	var out []models.ShopTokenHistory
	err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).Order("date desc").Find(&out).Error
	return out, err
}
