package kernel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/database/migrations"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/testkit"
)

type app struct {
	t   *testing.T
	h   http.Handler
	bus *event.Bus
	k   *Kernel
}

func newApp(t *testing.T) *app {
	t.Helper()
	bus := event.NewBus()
	k, err := New(Deps{DB: testkit.DB(t, migrations.Models()...), Bus: bus})
	require.NoError(t, err)
	return &app{t: t, h: k.Handler(), bus: bus, k: k}
}

func (a *app) register(name, role string) services.AuthResult {
	a.t.Helper()
	rec := testkit.Do(a.t, a.h, http.MethodPost, "/api/auth/register", "", services.RegisterInput{
		Name: name, Email: strings.ToLower(name) + "@campus.test", Password: "canteen123", Role: role,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var res services.AuthResult
	testkit.Decode(a.t, rec, &res)
	return res
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)
	a.register("Asha", models.RoleCustomer)

	rec := testkit.Do(t, a.h, http.MethodPost, "/api/auth/login", "", services.LoginInput{Email: "asha@campus.test", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = testkit.Do(t, a.h, http.MethodPost, "/api/auth/login", "", services.LoginInput{Email: "asha@campus.test", Password: "canteen123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login services.AuthResult
	testkit.Decode(t, rec, &login)

	rec = testkit.Do(t, a.h, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	testkit.Decode(t, rec, &me)
	assert.Equal(t, "Asha", me.Name)
	assert.NotContains(t, rec.Body.String(), "password")

	assert.Equal(t, http.StatusUnauthorized, testkit.Do(t, a.h, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusConflict, testkit.Do(t, a.h, http.MethodPost, "/api/auth/register", "", services.RegisterInput{
		Name: "Asha", Email: "asha@campus.test", Password: "canteen123",
	}).Code)
}

func TestValidationErrorsUseFieldMap(t *testing.T) {
	a := newApp(t)
	rec := testkit.Do(t, a.h, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := testkit.Decode(t, rec, nil)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "name")
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	keeper := a.register("Ravi", models.RoleShopkeeper)
	customer := a.register("Asha", models.RoleCustomer)

	rec := testkit.Do(t, a.h, http.MethodPost, "/api/shops", customer.Token, services.ShopInput{Name: "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = testkit.Do(t, a.h, http.MethodPost, "/api/shops", keeper.Token, services.ShopInput{Name: "South Spice", Category: "Meals"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var shop models.Shop
	testkit.Decode(t, rec, &shop)

	place := map[string]interface{}{
		"shopId": shop.ID,
		"items":  []map[string]interface{}{{"name": "Dosa", "quantity": 2, "price": "35.50"}},
	}
	rec = testkit.Do(t, a.h, http.MethodPost, "/api/orders", customer.Token, place)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	testkit.Decode(t, rec, &order)
	assert.Equal(t, 1, order.TokenNumber)
	assert.Equal(t, "71", order.TotalAmount.String())

	rec = testkit.Do(t, a.h, http.MethodGet, "/api/shopkeeper/orders", keeper.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed []models.Order
	testkit.Decode(t, rec, &feed)
	require.Len(t, feed, 1)

	path := "/api/orders/" + order.ID + "/status"
	rec = testkit.Do(t, a.h, http.MethodPatch, path, keeper.Token, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, testkit.Decode(t, rec, nil).Errors, "reason")

	rec = testkit.Do(t, a.h, http.MethodPatch, path, customer.Token, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = testkit.Do(t, a.h, http.MethodPatch, path, keeper.Token, map[string]string{"status": "rejected", "reason": models.ReasonOutOfStock})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testkit.Decode(t, rec, &order)
	assert.Equal(t, models.StatusRejected, order.Status)

	rec = testkit.Do(t, a.h, http.MethodPatch, path, keeper.Token, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	a.bus.Wait()
	rec = testkit.Do(t, a.h, http.MethodGet, "/api/notifications", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []models.Notification
	testkit.Decode(t, rec, &notes)
	require.Len(t, notes, 2)

	rec = testkit.Do(t, a.h, http.MethodPatch, "/api/notifications/"+notes[0].ID+"/read", keeper.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = testkit.Do(t, a.h, http.MethodPatch, "/api/notifications/"+notes[0].ID+"/read", customer.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUploadFallsBackToDataURL(t *testing.T) {
	a := newApp(t)
	user := a.register("Asha", models.RoleCustomer)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	rec := testkit.Do(t, a.h, http.MethodPost, "/api/uploads/image", user.Token, map[string]string{
		"filename": "menu.png",
		"data":     base64.StdEncoding.EncodeToString(png),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res services.UploadResult
	testkit.Decode(t, rec, &res)
	assert.False(t, res.Stored)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/png;base64,"), res.URL)
}

func TestGraphQLShopDirectory(t *testing.T) {
	a := newApp(t)
	keeper := a.register("Ravi", models.RoleShopkeeper)
	for _, in := range []services.ShopInput{{Name: "Chai Point"}, {Name: "Roll Corner", Closed: true}} {
		require.Equal(t, http.StatusCreated, testkit.Do(t, a.h, http.MethodPost, "/api/shops", keeper.Token, in).Code)
	}

	body, _ := json.Marshal(map[string]string{"query": `{ shops(open: true) { name activeTokens } }`})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+keeper.Token)
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data struct {
			Shops []struct {
				Name         string `json:"name"`
				ActiveTokens int    `json:"activeTokens"`
			} `json:"shops"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data.Shops, 1)
	assert.Equal(t, "Chai Point", out.Data.Shops[0].Name)
}

func TestHealthAndRouteTable(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, testkit.Do(t, a.h, http.MethodGet, "/healthz", "", nil).Code)

	names := map[string]bool{}
	for _, r := range a.k.Routes() {
		names[r.Name] = true
	}
	for _, want := range []string{"auth.login", "orders.status", "shopkeeper.orders", "payments.razorpay.refund", "realtime.ws"} {
		assert.True(t, names[want], want)
	}
}

func TestPlacingAnOrderCannotClaimAPayment(t *testing.T) {
	a := newApp(t)
	keeper := a.register("Ravi", models.RoleShopkeeper)
	customer := a.register("Asha", models.RoleCustomer)

	rec := testkit.Do(t, a.h, http.MethodPost, "/api/shops", keeper.Token, services.ShopInput{Name: "South Spice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var shop models.Shop
	testkit.Decode(t, rec, &shop)

	rec = testkit.Do(t, a.h, http.MethodPost, "/api/orders", customer.Token, map[string]interface{}{
		"shopId":          shop.ID,
		"items":           []map[string]interface{}{{"name": "Dosa", "quantity": 1, "price": "35"}},
		"transactionId":   "pay_forged",
		"paymentProvider": "razorpay",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	testkit.Decode(t, rec, &order)
	assert.Empty(t, order.TransactionID)
	assert.Empty(t, order.PaymentProvider)

	rec = testkit.Do(t, a.h, http.MethodPost, "/api/payments/razorpay/refund", keeper.Token, map[string]string{"orderId": order.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	a.bus.Wait()
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	config.Set("CORS_ORIGINS", "https://canteen.campus.test")
	t.Cleanup(func() { config.Set("CORS_ORIGINS", "*") })

	a := newApp(t)
	token := a.register("Asha", models.RoleCustomer).Token
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.k.Hub.Run(ctx)
	srv := httptest.NewServer(a.h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://canteen.campus.test"}})
	require.NoError(t, err)
	conn.Close()
}
