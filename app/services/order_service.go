package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
)

// DateLayout formats business dates.
const DateLayout = "2006-01-02"

type OrderService struct {
	db     *gorm.DB
	orders *repositories.OrderRepository
	shops  *repositories.ShopRepository
	bus    *event.Bus

	// Now is the clock used for business dates.
	Now func() time.Time
}

func NewOrderService(db *gorm.DB, bus *event.Bus) *OrderService {
	return &OrderService{
		db:     db,
		orders: repositories.NewOrderRepository(db),
		shops:  repositories.NewShopRepository(db),
		bus:    bus,
		Now:    time.Now,
	}
}

// PlaceOrderInput is what a customer sends. Payment details are recorded
// only by the payment endpoints after the gateway confirms them.
type PlaceOrderInput struct {
	ShopID string       `json:"shopId" validate:"required"`
	Items  models.Items `json:"items" validate:"required,min=1,max=50,dive"`
}

type StatusInput struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason"`
}

// Place issues the next token of the shop and stores the order awaiting
// approval. Counter bump and insert share one transaction.
func (s *OrderService) Place(ctx context.Context, userID string, in PlaceOrderInput) (models.Order, error) {
	if len(in.Items) == 0 {
		return models.Order{}, ErrEmptyOrder
	}

	var (
		order models.Order
		shop  models.Shop
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shops := s.shops.WithTx(tx)

		var err error
		shop, err = shops.FindForUpdate(ctx, in.ShopID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		if err != nil {
			return err
		}
		if shop.Closed {
			return ErrShopClosed
		}

		if err := shops.IssueToken(ctx, shop.ID); err != nil {
			return err
		}
		if shop, err = shops.Find(ctx, shop.ID); err != nil {
			return err
		}

		order = models.Order{
			UserID:       userID,
			ShopID:       shop.ID,
			Items:        in.Items,
			TotalAmount:  in.Items.Total(),
			Status:       models.StatusPendingApproval,
			TokenNumber:  shop.ActiveTokens,
			BusinessDate: s.Now().Format(DateLayout),
		}
		return s.orders.WithTx(tx).Create(ctx, &order)
	})
	if err != nil {
		if errors.Is(err, ErrShopNotFound) || errors.Is(err, ErrShopClosed) {
			return models.Order{}, err
		}
		return models.Order{}, fmt.Errorf("orders: place: %w", err)
	}

	metrics.OrdersPlaced.WithLabelValues(shop.ID).Inc()
	logger.WithCtx(ctx).Info("orders: placed", "order_id", order.ID, "shop_id", shop.ID, "token", order.TokenNumber)

	s.bus.FireAsync(ctx, events.OrderPlaced, events.OrderPlacedPayload{Order: order})
	s.bus.FireOrdered(ctx, events.ShopTokensChanged, events.ShopTokensChangedPayload{
		ShopID:        shop.ID,
		ActiveTokens:  shop.ActiveTokens,
		CurrentOrders: shop.CurrentOrders,
	})
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (models.Order, error) {
	order, err := s.orders.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, ErrOrderNotFound
	}
	return order, err
}

// ForCustomer lists a customer's own orders, newest first.
func (s *OrderService) ForCustomer(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.ForUser(ctx, userID)
}

// ForShopkeeper lists the orders of every shop the user operates, newest
// first.
func (s *OrderService) ForShopkeeper(ctx context.Context, userID, role string) ([]models.Order, error) {
	var (
		shops []models.Shop
		err   error
	)
	if role == models.RoleAdmin {
		shops, err = s.shops.All(ctx)
	} else {
		shops, err = s.shops.ByOwner(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: shops of %s: %w", userID, err)
	}
	ids := make([]string, len(shops))
	for i, shop := range shops {
		ids[i] = shop.ID
	}
	return s.orders.ForShops(ctx, ids)
}

// UpdateStatus moves an order along its lifecycle. The shop owner (or an
// admin) may make any legal move; the customer may only cancel an order that
// is still awaiting approval.
func (s *OrderService) UpdateStatus(ctx context.Context, userID, role, id string, in StatusInput) (models.Order, error) {
	if err := models.CheckStatusUpdate(in.Status, in.Reason); err != nil {
		return models.Order{}, err
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.authorize(ctx, userID, role, order, in.Status); err != nil {
		return models.Order{}, err
	}

	from := order.Status
	if !models.CanTransition(from, in.Status) {
		return models.Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, in.Status)
	}

	var (
		released bool
		shop     models.Shop
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.orders.WithTx(tx).UpdateStatus(ctx, id, from, in.Status, in.Reason)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		if !models.IsTerminal(in.Status) {
			return nil
		}
		shops := s.shops.WithTx(tx)
		if err := shops.ReleaseOrder(ctx, order.ShopID); err != nil {
			return err
		}
		released = true
		shop, err = shops.Find(ctx, order.ShopID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return models.Order{}, err
		}
		return models.Order{}, fmt.Errorf("orders: update status: %w", err)
	}

	order.Status = in.Status
	order.RejectionReason = in.Reason
	metrics.OrderTransitions.WithLabelValues(from, in.Status).Inc()
	logger.WithCtx(ctx).Info("orders: status changed", "order_id", id, "from", from, "to", in.Status)

	s.bus.FireAsync(ctx, events.OrderStatusChanged, events.OrderStatusChangedPayload{Order: order, From: from})
	if released {
		// current_orders moved: drop cached shop lists and push the counters.
		s.bus.FireOrdered(ctx, events.ShopTokensChanged, events.ShopTokensChangedPayload{
			ShopID:        shop.ID,
			ActiveTokens:  shop.ActiveTokens,
			CurrentOrders: shop.CurrentOrders,
		})
	}
	return order, nil
}

func (s *OrderService) authorize(ctx context.Context, userID, role string, order models.Order, target string) error {
	if role == models.RoleAdmin {
		return nil
	}
	if order.UserID == userID && target == models.StatusCancelled && order.Status == models.StatusPendingApproval {
		return nil
	}
	shop, err := s.shops.Find(ctx, order.ShopID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrShopNotFound
	}
	if err != nil {
		return err
	}
	if shop.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}

// AttachPayment records a gateway transaction on the customer's order.
func (s *OrderService) AttachPayment(ctx context.Context, userID, orderID, provider, transactionID string) (models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, ErrForbidden
	}
	if err := s.orders.SetTransaction(ctx, orderID, provider, transactionID); err != nil {
		return models.Order{}, fmt.Errorf("orders: attach payment: %w", err)
	}
	order.PaymentProvider = provider
	order.TransactionID = transactionID
	return order, nil
}

// ShopOwner returns the id of the user who owns the order's shop.
func (s *OrderService) ShopOwner(ctx context.Context, order models.Order) (string, error) {
	shop, err := s.shops.Find(ctx, order.ShopID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrShopNotFound
	}
	return shop.OwnerID, err
}
