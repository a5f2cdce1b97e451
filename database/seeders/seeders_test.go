package seeders

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/database/migrations"
	"github.com/campusbite/canteen/pkg/testkit"
)

func TestRunAllIsIdempotent(t *testing.T) {
	db := testkit.DB(t, migrations.Models()...)

	var out bytes.Buffer
	require.NoError(t, RunAll(db, &out))
	require.NoError(t, RunAll(db, &out))
	assert.Contains(t, out.String(), "seeding users")
	assert.Contains(t, out.String(), "seeding shops")

	var users, shops int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Shop{}).Count(&shops).Error)
	assert.EqualValues(t, len(demoUsers), users)
	assert.EqualValues(t, 3, shops)
}

func TestShopsNeedTheShopkeeper(t *testing.T) {
	db := testkit.DB(t, migrations.Models()...)
	err := db.Transaction(seedShops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users seeder")
}
