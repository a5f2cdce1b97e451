package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/database/migrations"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/testkit"
)

func setup(t *testing.T) (*gorm.DB, *event.Bus) {
	t.Helper()
	return testkit.DB(t, migrations.Models()...), event.NewBus()
}

func mkUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	u := models.User{Name: role, Email: role + "-" + t.Name() + "@campus.test", Password: "x", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func mkShop(t *testing.T, db *gorm.DB, ownerID, name string) models.Shop {
	t.Helper()
	s := models.Shop{OwnerID: ownerID, Name: name, Category: "Snacks"}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func items(lines ...string) models.Items {
	var out models.Items
	for _, l := range lines {
		out = append(out, models.Item{Name: l, Quantity: 1, Price: decimal.NewFromInt(20)})
	}
	return out
}

func reload(t *testing.T, db *gorm.DB, dest interface{}, id string) {
	t.Helper()
	require.NoError(t, db.WithContext(context.Background()).First(dest, "id = ?", id).Error)
}

func ptr(s string) *string { return &s }
