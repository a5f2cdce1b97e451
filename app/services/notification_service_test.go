package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/repositories"
)

func TestPruneDropsOnlyOldReadNotifications(t *testing.T) {
	db, _ := setup(t)
	u := mkUser(t, db, models.RoleCustomer)
	svc := NewNotificationService(repositories.NewNotificationRepository(db))

	old := time.Now().Add(-40 * 24 * time.Hour)
	mk := func(title string, read bool, at time.Time) {
		n := models.Notification{UserID: u.ID, Title: title, Read: read}
		n.CreatedAt = at
		require.NoError(t, db.Create(&n).Error)
	}
	mk("old read", true, old)
	mk("old unread", false, old)
	mk("fresh read", true, time.Now())

	n, err := svc.Prune(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := svc.List(context.Background(), u.ID)
	require.NoError(t, err)
	var titles []string
	for _, l := range left {
		titles = append(titles, l.Title)
	}
	assert.ElementsMatch(t, []string{"old unread", "fresh read"}, titles)
}
