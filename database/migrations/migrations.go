// Package migrations registers the schema with pkg/migration. Import it for
// side effects from any command that migrates.
package migrations

import (
	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/migration"
)

func init() {
	migration.Register("20260101000000_create_users_table", table{&models.User{}, "users"})
	migration.Register("20260101000001_create_shops_table", table{&models.Shop{}, "shops"})
	migration.Register("20260101000002_create_orders_table", table{&models.Order{}, "orders"})
	migration.Register("20260101000003_create_notifications_table", table{&models.Notification{}, "notifications"})
	migration.Register("20260101000004_create_shop_token_histories_table", table{&models.ShopTokenHistory{}, "shop_token_histories"})
}

// table creates one model's table and drops it on rollback.
type table struct {
	model interface{}
	name  string
}

func (t table) Up(db *gorm.DB) error   { return db.AutoMigrate(t.model) }
func (t table) Down(db *gorm.DB) error { return db.Migrator().DropTable(t.name) }

// Models lists every migrated model, for tests that build a schema directly.
func Models() []interface{} {
	return []interface{}{
		&models.User{}, &models.Shop{}, &models.Order{},
		&models.Notification{}, &models.ShopTokenHistory{},
	}
}
