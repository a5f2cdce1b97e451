package services

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/testkit"
)

const (
	stripeBase   = "https://stripe.test"
	razorpayBase = "https://razorpay.test"
)

func gatewayFixture(t *testing.T, steps ...*testkit.Step) (*PaymentService, *testkit.MockTransport, models.User, models.User, models.Order) {
	t.Helper()
	db, bus := setup(t)
	owner := mkUser(t, db, models.RoleShopkeeper)
	customer := mkUser(t, db, models.RoleCustomer)
	shop := mkShop(t, db, owner.ID, "South Spice")

	orders := NewOrderService(db, bus)
	order, err := orders.Place(context.Background(), customer.ID, PlaceOrderInput{
		ShopID: shop.ID,
		Items:  models.Items{{Name: "Thali", Quantity: 2, Price: decimal.RequireFromString("62.25")}},
	})
	require.NoError(t, err)
	bus.Wait()

	mt := testkit.NewMockTransport(steps...)
	svc := NewPaymentService(GatewayConfig{
		StripeSecretKey:   "sk_test",
		StripeAPIURL:      stripeBase + "/",
		StripeCurrency:    "inr",
		RazorpayKeyID:     "rzp_key",
		RazorpayKeySecret: "rzp_secret",
		RazorpayAPIURL:    razorpayBase,
	}, orders, mt.Client())
	return svc, mt, owner, customer, order
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(12450), MinorUnits(decimal.RequireFromString("124.50")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}

func TestStripeIntent(t *testing.T) {
	svc, mt, _, customer, order := gatewayFixture(t, &testkit.Step{
		Method: "POST",
		Prefix: stripeBase + "/v1/payment_intents",
		Body:   `{"id":"pi_1","client_secret":"pi_1_secret","status":"requires_payment_method","amount":12450,"currency":"inr"}`,
	})

	res, err := svc.StripeIntent(context.Background(), customer.ID, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "pi_1", res.ID)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	mt.AssertAllCalled(t)

	calls := mt.Calls()
	require.Len(t, calls, 1)
	form, err := url.ParseQuery(calls[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "12450", form.Get("amount"))
	assert.Equal(t, order.ID, form.Get("metadata[order_id]"))
	assert.Equal(t, "Bearer sk_test", calls[0].Header.Get("Authorization"))
}

func TestStripeErrorIsAResultNotAnError(t *testing.T) {
	svc, _, _, customer, order := gatewayFixture(t, &testkit.Step{
		Prefix: stripeBase,
		Status: 402,
		Body:   `{"error":{"message":"Your card was declined."}}`,
	})

	res, err := svc.StripeIntent(context.Background(), customer.ID, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "card was declined")
}

func TestStripeConfirmRecordsTransaction(t *testing.T) {
	svc, _, _, customer, order := gatewayFixture(t)
	svc.client = testkit.NewMockTransport(&testkit.Step{
		Method: "GET",
		Prefix: stripeBase + "/v1/payment_intents/pi_9",
		Body:   `{"id":"pi_9","status":"succeeded","amount":12450,"currency":"inr","metadata":{"order_id":"` + order.ID + `"}}`,
	}).Client()

	res, err := svc.StripeConfirm(context.Background(), customer.ID, order.ID, "pi_9")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	got, err := svc.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ProviderStripe, got.PaymentProvider)
	assert.Equal(t, "pi_9", got.TransactionID)
}

func TestPaymentsRequireOrderOwner(t *testing.T) {
	svc, _, owner, _, order := gatewayFixture(t)
	_, err := svc.StripeIntent(context.Background(), owner.ID, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.RazorpayOrder(context.Background(), owner.ID, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRazorpaySignature(t *testing.T) {
	sig := RazorpaySignature("rzp_secret", "order_A", "pay_B")
	assert.Len(t, sig, 64)
	assert.True(t, VerifyRazorpaySignature("rzp_secret", "order_A", "pay_B", sig))
	assert.True(t, VerifyRazorpaySignature("rzp_secret", "order_A", "pay_B", " "+sig+" "))
	assert.False(t, VerifyRazorpaySignature("rzp_secret", "order_A", "pay_C", sig))
	assert.False(t, VerifyRazorpaySignature("other", "order_A", "pay_B", sig))
}

func razorpayOrderStep(gatewayOrderID, receipt string, amount int64) *testkit.Step {
	return &testkit.Step{
		Method: "GET",
		Prefix: razorpayBase + "/v1/orders/" + gatewayOrderID,
		Body:   fmt.Sprintf(`{"id":%q,"status":"paid","amount":%d,"currency":"INR","receipt":%q,"notes":{"order_id":%q}}`, gatewayOrderID, amount, receipt, receipt),
	}
}

func TestRazorpayVerifyAndRefund(t *testing.T) {
	svc, _, owner, customer, order := gatewayFixture(t)
	mt := testkit.NewMockTransport(
		razorpayOrderStep("order_A", order.ID, 12450),
		&testkit.Step{
			Method: "POST",
			Prefix: razorpayBase + "/v1/payments/pay_B/refund",
			Body:   `{"id":"rfnd_1","status":"processed","amount":12450,"currency":"INR"}`,
		},
	)
	svc.client = mt.Client()
	ctx := context.Background()

	_, err := svc.RazorpayRefund(ctx, owner.ID, owner.Role, order.ID, 0)
	assert.ErrorIs(t, err, ErrNotPaid)

	bad, err := svc.RazorpayVerify(ctx, customer.ID, RazorpayVerifyInput{
		OrderID: order.ID, RazorpayOrderID: "order_A", RazorpayPaymentID: "pay_B", Signature: "deadbeef",
	})
	require.NoError(t, err)
	assert.False(t, bad.Success)
	assert.Equal(t, "signature mismatch", bad.Error)

	ok, err := svc.RazorpayVerify(ctx, customer.ID, RazorpayVerifyInput{
		OrderID: order.ID, RazorpayOrderID: "order_A", RazorpayPaymentID: "pay_B",
		Signature: RazorpaySignature("rzp_secret", "order_A", "pay_B"),
	})
	require.NoError(t, err)
	assert.True(t, ok.Success, ok.Error)
	assert.Equal(t, int64(12450), ok.Amount)

	_, err = svc.RazorpayRefund(ctx, customer.ID, customer.Role, order.ID, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	refund, err := svc.RazorpayRefund(ctx, owner.ID, owner.Role, order.ID, 0)
	require.NoError(t, err)
	assert.True(t, refund.Success, refund.Error)
	assert.Equal(t, "rfnd_1", refund.ID)
	mt.AssertAllCalled(t)
}

func TestRazorpayVerifyChecksGatewayOrderBelongsToOrder(t *testing.T) {
	svc, _, _, customer, cheap := gatewayFixture(t)
	ctx := context.Background()
	pricey, err := svc.orders.Place(ctx, customer.ID, PlaceOrderInput{
		ShopID: cheap.ShopID,
		Items:  models.Items{{Name: "Party Platter", Quantity: 1, Price: decimal.NewFromInt(5000)}},
	})
	require.NoError(t, err)

	// A real payment for the cheap order's gateway order, replayed against
	// the pricey one.
	svc.client = testkit.NewMockTransport(razorpayOrderStep("order_cheap", cheap.ID, 12450)).Client()
	res, err := svc.RazorpayVerify(ctx, customer.ID, RazorpayVerifyInput{
		OrderID: pricey.ID, RazorpayOrderID: "order_cheap", RazorpayPaymentID: "pay_1",
		Signature: RazorpaySignature("rzp_secret", "order_cheap", "pay_1"),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "another order")

	got, err := svc.orders.Get(ctx, pricey.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TransactionID)
	assert.Empty(t, got.PaymentProvider)

	// Right order, wrong amount.
	svc.client = testkit.NewMockTransport(razorpayOrderStep("order_short", pricey.ID, 100)).Client()
	res, err = svc.RazorpayVerify(ctx, customer.ID, RazorpayVerifyInput{
		OrderID: pricey.ID, RazorpayOrderID: "order_short", RazorpayPaymentID: "pay_2",
		Signature: RazorpaySignature("rzp_secret", "order_short", "pay_2"),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "amount")
}

func TestUnconfiguredGatewayReportsFailure(t *testing.T) {
	svc, _, _, customer, order := gatewayFixture(t)
	svc.cfg.RazorpayKeyID = ""

	res, err := svc.RazorpayOrder(context.Background(), customer.ID, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ProviderRazorpay, res.Provider)
	assert.NotEmpty(t, res.Error)
}
