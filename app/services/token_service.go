package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
)

// TokenService closes a business day: it records each shop's highest token
// and puts the counters back to zero.
type TokenService struct {
	orders  *repositories.OrderRepository
	shops   *repositories.ShopRepository
	history *repositories.TokenHistoryRepository
	bus     *event.Bus

	Now func() time.Time
}

func NewTokenService(db *gorm.DB, bus *event.Bus) *TokenService {
	return &TokenService{
		orders:  repositories.NewOrderRepository(db),
		shops:   repositories.NewShopRepository(db),
		history: repositories.NewTokenHistoryRepository(db),
		bus:     bus,
		Now:     time.Now,
	}
}

// ResetReport summarises one run.
type ResetReport struct {
	Date     string `json:"date"`
	Shops    int    `json:"shops"`
	Recorded int    `json:"recorded"`
	Reset    int    `json:"reset"`
}

// Yesterday is the business date a run at Now closes.
func (s *TokenService) Yesterday() string {
	return s.Now().AddDate(0, 0, -1).Format(DateLayout)
}

// Reset closes date (YYYY-MM-DD). Shops without orders that day get no
// history row. A shop whose history write fails is still reset. Failures are
// collected and returned together; running twice for the same date leaves
// the same rows behind.
func (s *TokenService) Reset(ctx context.Context, date string) (ResetReport, error) {
	report := ResetReport{Date: date}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return report, fmt.Errorf("tokens: bad date %q: %w", date, err)
	}
	log := logger.WithCtx(ctx).With("date", date)

	shops, err := s.shops.All(ctx)
	if err != nil {
		return report, fmt.Errorf("tokens: list shops: %w", err)
	}
	report.Shops = len(shops)

	var errs []error
	maxes, err := s.orders.MaxTokens(ctx, date)
	if err != nil {
		errs = append(errs, fmt.Errorf("tokens: max tokens: %w", err))
		log.Error("tokens: cannot compute max tokens, resetting anyway", "error", err)
	}

	for _, shop := range shops {
		outcome := "ok"
		if maxToken, ok := maxes[shop.ID]; ok {
			if err := s.history.Upsert(ctx, shop.ID, date, maxToken); err != nil {
				errs = append(errs, fmt.Errorf("tokens: record %s: %w", shop.ID, err))
				log.Error("tokens: history write failed", "shop_id", shop.ID, "error", err)
				outcome = "history_failed"
			} else {
				report.Recorded++
			}
		}

		if err := s.shops.ResetTokens(ctx, shop.ID); err != nil {
			errs = append(errs, fmt.Errorf("tokens: reset %s: %w", shop.ID, err))
			log.Error("tokens: reset failed", "shop_id", shop.ID, "error", err)
			metrics.TokenResets.WithLabelValues("reset_failed").Inc()
			continue
		}
		report.Reset++
		metrics.TokenResets.WithLabelValues(outcome).Inc()
		s.bus.FireOrdered(ctx, events.ShopTokensChanged, events.ShopTokensChangedPayload{ShopID: shop.ID, CurrentOrders: shop.CurrentOrders})
	}

	log.Info("tokens: day closed", "shops", report.Shops, "recorded", report.Recorded, "reset", report.Reset)
	return report, errors.Join(errs...)
}

// Job is the scheduled form of Reset: it closes yesterday.
func (s *TokenService) Job(ctx context.Context) error {
	_, err := s.Reset(ctx, s.Yesterday())
	return err
}
