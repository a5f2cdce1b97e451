package services

import (
	"context"
	"fmt"
	"time"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/pkg/logger"
)

const notificationPageSize = 100

type NotificationService struct {
	repo *repositories.NotificationRepository
}

func NewNotificationService(repo *repositories.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// List returns the user's latest notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	out, err := s.repo.ForUser(ctx, userID, notificationPageSize)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification as read. Someone else's notification is
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// Prune deletes read notifications older than retention. Unread ones are
// kept however old they are.
func (s *NotificationService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.repo.PruneRead(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("notifications: prune: %w", err)
	}
	return n, nil
}

// PruneJob is the scheduled form of Prune using the configured retention.
func (s *NotificationService) PruneJob(ctx context.Context) error {
	n, err := s.Prune(ctx, config.NotificationRetention())
	if err != nil {
		return err
	}
	logger.Info("notifications: pruned", "deleted", n)
	return nil
}
