// Package testkit holds helpers shared by the package tests: an in-memory
// database, a scripted HTTP transport for outbound gateway calls and a
// request helper for handlers.
package testkit

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusbite/canteen/pkg/database"
)

// DB opens a private in-memory sqlite database with models migrated. It is
// closed when the test ends.
func DB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err, "testkit: open sqlite")
	t.Cleanup(func() { _ = database.Close(db) })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...), "testkit: migrate")
	}
	return db
}
