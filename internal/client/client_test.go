package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/database/migrations"
	"github.com/campusbite/canteen/internal/kernel"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/testkit"
)

func newServer(t *testing.T) (*httptest.Server, *kernel.Kernel) {
	t.Helper()
	k, err := kernel.New(kernel.Deps{DB: testkit.DB(t, migrations.Models()...), Bus: event.NewBus()})
	require.NoError(t, err)
	srv := httptest.NewServer(k.Handler())
	t.Cleanup(srv.Close)
	return srv, k
}

func signUp(t *testing.T, k *kernel.Kernel, name, role string) {
	t.Helper()
	_, err := k.Services.Auth.Register(context.Background(), services.RegisterInput{
		Name: name, Email: name + "@campus.test", Password: "canteen123", Role: role,
	})
	require.NoError(t, err)
}

func TestClientRoundTrip(t *testing.T) {
	srv, k := newServer(t)
	ctx := context.Background()
	signUp(t, k, "ravi", models.RoleShopkeeper)
	signUp(t, k, "asha", models.RoleCustomer)

	path := filepath.Join(t.TempDir(), "session.json")
	keeper := New(srv.URL, NewSession(path), nil)
	_, err := keeper.Shops(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	user, err := keeper.Login(ctx, "ravi@campus.test", "canteen123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleShopkeeper, user.Role)

	restored, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, keeper.Session().Token(), restored.Token())

	shop, err := keeper.CreateShop(ctx, services.ShopInput{Name: "Chai Point"})
	require.NoError(t, err)

	customer := New(srv.URL, nil, nil)
	_, err = customer.Login(ctx, "asha@campus.test", "canteen123")
	require.NoError(t, err)
	order, err := customer.PlaceOrder(ctx, services.PlaceOrderInput{
		ShopID: shop.ID,
		Items:  models.Items{{Name: "Chai", Quantity: 2, Price: decimal.NewFromInt(15)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, order.TokenNumber)

	orders, err := keeper.ShopkeeperOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	_, err = keeper.UpdateOrderStatus(ctx, order.ID, models.StatusRejected, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, 422, apiErr.Status)
	assert.Contains(t, apiErr.Fields, "reason")

	updated, err := keeper.UpdateOrderStatus(ctx, order.ID, models.StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	require.NoError(t, keeper.Logout())
	_, err = keeper.MyShops(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestStreamURL(t *testing.T) {
	s := NewSession("")
	c := New("https://canteen.example/", s, nil)
	_, err := c.StreamURL()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	s.Set("abc", time.Now().Add(time.Hour), models.User{})
	u, err := c.StreamURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://canteen.example/ws?token=abc", u)
}
