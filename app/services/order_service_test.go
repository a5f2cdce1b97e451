package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
)

func TestPlaceIssuesSequentialTokens(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	customer := mkUser(t, db, models.RoleCustomer)
	shop := mkShop(t, db, owner.ID, "South Spice")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		order, err := svc.Place(ctx, customer.ID, PlaceOrderInput{ShopID: shop.ID, Items: items("Idli", "Vada")})
		require.NoError(t, err)
		assert.Equal(t, want, order.TokenNumber)
		assert.Equal(t, models.StatusPendingApproval, order.Status)
		assert.True(t, decimal.NewFromInt(40).Equal(order.TotalAmount))
	}
	bus.Wait()

	var got models.Shop
	reload(t, db, &got, shop.ID)
	assert.Equal(t, 3, got.ActiveTokens)
	assert.Equal(t, 3, got.CurrentOrders)
}

func TestPlaceRefusesClosedOrMissingShop(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	shop := mkShop(t, db, owner.ID, "Chai Point")
	require.NoError(t, db.Model(&shop).Update("closed", true).Error)
	svc := NewOrderService(db, bus)

	_, err := svc.Place(context.Background(), "c1", PlaceOrderInput{ShopID: shop.ID, Items: items("Tea")})
	assert.ErrorIs(t, err, ErrShopClosed)

	_, err = svc.Place(context.Background(), "c1", PlaceOrderInput{ShopID: "missing", Items: items("Tea")})
	assert.ErrorIs(t, err, ErrShopNotFound)

	_, err = svc.Place(context.Background(), "c1", PlaceOrderInput{ShopID: shop.ID})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestPlaceFiresPushEvents(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	shop := mkShop(t, db, owner.ID, "Roll Corner")

	var (
		mu     sync.Mutex
		placed []events.OrderPlacedPayload
		tokens []events.ShopTokensChangedPayload
	)
	bus.Listen(events.OrderPlaced, func(_ context.Context, p interface{}) {
		mu.Lock()
		defer mu.Unlock()
		placed = append(placed, p.(events.OrderPlacedPayload))
	})
	bus.Listen(events.ShopTokensChanged, func(_ context.Context, p interface{}) {
		mu.Lock()
		defer mu.Unlock()
		tokens = append(tokens, p.(events.ShopTokensChangedPayload))
	})

	order, err := NewOrderService(db, bus).Place(context.Background(), "c1", PlaceOrderInput{ShopID: shop.ID, Items: items("Roll")})
	require.NoError(t, err)
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, placed, 1)
	assert.Equal(t, order.ID, placed[0].Order.ID)
	require.Len(t, tokens, 1)
	assert.Equal(t, events.ShopTokensChangedPayload{ShopID: shop.ID, ActiveTokens: 1, CurrentOrders: 1}, tokens[0])
}

func TestTokenPushesArriveInIssueOrder(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	shop := mkShop(t, db, owner.ID, "South Spice")
	svc := NewOrderService(db, bus)

	var (
		mu     sync.Mutex
		pushed []int
	)
	bus.Listen(events.ShopTokensChanged, func(_ context.Context, p interface{}) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, p.(events.ShopTokensChangedPayload).ActiveTokens)
	})

	const n = 200
	for i := 0; i < n; i++ {
		_, err := svc.Place(context.Background(), "c1", PlaceOrderInput{ShopID: shop.ID, Items: items("Idli")})
		require.NoError(t, err)
	}
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, n)
	for i, v := range pushed {
		require.Equal(t, i+1, v, "push %d out of order", i)
	}
	assert.Equal(t, n, pushed[n-1])
}

func TestTerminalStatusPushesShopCounters(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	shop := mkShop(t, db, owner.ID, "Chai Point")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	order, err := svc.Place(ctx, "c1", PlaceOrderInput{ShopID: shop.ID, Items: items("Tea")})
	require.NoError(t, err)
	bus.Wait()

	var (
		mu     sync.Mutex
		pushed []events.ShopTokensChangedPayload
	)
	bus.Listen(events.ShopTokensChanged, func(_ context.Context, p interface{}) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, p.(events.ShopTokensChangedPayload))
	})

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusApproved})
	require.NoError(t, err)
	bus.Wait()
	mu.Lock()
	assert.Empty(t, pushed, "non-terminal moves leave the counters alone")
	mu.Unlock()

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusCompleted})
	require.NoError(t, err)
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	assert.Equal(t, events.ShopTokensChangedPayload{ShopID: shop.ID, ActiveTokens: 1, CurrentOrders: 0}, pushed[0])
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	customer := mkUser(t, db, models.RoleCustomer)
	shop := mkShop(t, db, owner.ID, "South Spice")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	order, err := svc.Place(ctx, customer.ID, PlaceOrderInput{ShopID: shop.ID, Items: items("Dosa")})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusApproved, Reason: ptr(models.ReasonOther)})
	assert.ErrorIs(t, err, models.ErrReasonForbidden)

	_, err = svc.UpdateStatus(ctx, customer.ID, customer.Role, order.ID, StatusInput{Status: models.StatusApproved})
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Nil(t, approved.RejectionReason)

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusRejected, Reason: ptr(models.ReasonOutOfStock)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusReady})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusCompleted})
	require.NoError(t, err)
	bus.Wait()

	var got models.Shop
	reload(t, db, &got, shop.ID)
	assert.Equal(t, 0, got.CurrentOrders)
	assert.Equal(t, 1, got.ActiveTokens)
}

func TestRejectStoresReason(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	shop := mkShop(t, db, owner.ID, "Chai Point")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	order, err := svc.Place(ctx, "c1", PlaceOrderInput{ShopID: shop.ID, Items: items("Tea")})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusRejected})
	assert.ErrorIs(t, err, models.ErrReasonRequired)

	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, order.ID, StatusInput{Status: models.StatusRejected, Reason: ptr(models.ReasonShopClosed)})
	require.NoError(t, err)
	bus.Wait()

	var got models.Order
	reload(t, db, &got, order.ID)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, models.ReasonShopClosed, *got.RejectionReason)
}

func TestCustomerMayCancelPendingOrderOnly(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	customer := mkUser(t, db, models.RoleCustomer)
	shop := mkShop(t, db, owner.ID, "Roll Corner")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	first, err := svc.Place(ctx, customer.ID, PlaceOrderInput{ShopID: shop.ID, Items: items("Roll")})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, customer.ID, customer.Role, first.ID, StatusInput{Status: models.StatusCancelled})
	require.NoError(t, err)

	second, err := svc.Place(ctx, customer.ID, PlaceOrderInput{ShopID: shop.ID, Items: items("Roll")})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, owner.ID, owner.Role, second.ID, StatusInput{Status: models.StatusApproved})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, customer.ID, customer.Role, second.ID, StatusInput{Status: models.StatusCancelled})
	assert.ErrorIs(t, err, ErrForbidden)
	bus.Wait()
}

func TestShopkeeperSeesOwnShopsNewestFirst(t *testing.T) {
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	other := mkUser(t, db, models.RoleShopkeeper)
	mine := mkShop(t, db, owner.ID, "South Spice")
	theirs := mkShop(t, db, other.ID, "Chai Point")
	svc := NewOrderService(db, bus)
	ctx := context.Background()

	var placed []string
	for _, shopID := range []string{mine.ID, theirs.ID, mine.ID} {
		o, err := svc.Place(ctx, "c1", PlaceOrderInput{ShopID: shopID, Items: items("x")})
		require.NoError(t, err)
		placed = append(placed, o.ID)
		time.Sleep(2 * time.Millisecond)
	}
	bus.Wait()

	orders, err := svc.ForShopkeeper(ctx, owner.ID, owner.Role)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, placed[2], orders[0].ID)
	assert.Equal(t, placed[0], orders[1].ID)

	all, err := svc.ForShopkeeper(ctx, "admin", models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
