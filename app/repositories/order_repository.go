package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/models"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Find(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	return order, err
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// ForShops returns every order of the given shops, newest first.
func (r *OrderRepository) ForShops(ctx context.Context, shopIDs []string) ([]models.Order, error) {
	var orders []models.Order
	if len(shopIDs) == 0 {
		return orders, nil
	}
	err := r.db.WithContext(ctx).Where("shop_id IN ?", shopIDs).
		Order("created_at desc").Find(&orders).Error
	return orders, err
}

// ForUser returns a customer's orders, newest first.
func (r *OrderRepository) ForUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at desc").Find(&orders).Error
	return orders, err
}

// UpdateStatus moves an order from one status to another. It reports false
// when the row was no longer in from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string, reason *string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "rejection_reason": reason})
	return res.RowsAffected == 1, res.Error
}

func (r *OrderRepository) SetTransaction(ctx context.Context, id, provider, transactionID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_provider": provider,
		"transaction_id":   transactionID,
	}).Error
}

// MaxTokens returns the highest token per shop issued on date. Shops with no
// orders that day are absent.
func (r *OrderRepository) MaxTokens(ctx context.Context, date string) (map[string]int, error) {
	var rows []struct {
		ShopID   string
		MaxToken int
	}
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("shop_id, MAX(token_number) AS max_token").
		Where("business_date = ?", date).
		Group("shop_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ShopID] = row.MaxToken
	}
	return out, nil
}
