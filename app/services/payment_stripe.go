package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	httpclient "github.com/campusbite/canteen/pkg/http"
)

const ProviderStripe = "stripe"

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Metadata     struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StripeIntent creates a payment intent for the order's total.
func (s *PaymentService) StripeIntent(ctx context.Context, userID, orderID string) (PaymentResult, error) {
	order, err := s.customerOrder(ctx, userID, orderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if s.cfg.StripeSecretKey == "" {
		return failed(ProviderStripe, errGatewayNotConfigured), nil
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(MinorUnits(order.TotalAmount), 10))
	form.Set("currency", s.cfg.StripeCurrency)
	form.Set("metadata[order_id]", order.ID)
	form.Set("automatic_payment_methods[enabled]", "true")

	var intent stripeIntent
	req := httpclient.Post(s.cfg.StripeAPIURL + "/v1/payment_intents").
		Header("Idempotency-Key", "intent-"+order.ID+"-"+form.Get("amount")).
		Body(form)
	res := s.stripeCall(s.request(ctx, req, false), &intent)
	if res.Success {
		res.ID, res.ClientSecret, res.Status = intent.ID, intent.ClientSecret, intent.Status
		res.Amount, res.Currency = intent.Amount, intent.Currency
	}
	logGateway(ctx, ProviderStripe, "intent", res)
	return res, nil
}

// StripeConfirm checks that the intent succeeded for this order and records
// it as the order's transaction.
func (s *PaymentService) StripeConfirm(ctx context.Context, userID, orderID, intentID string) (PaymentResult, error) {
	order, err := s.customerOrder(ctx, userID, orderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if s.cfg.StripeSecretKey == "" {
		return failed(ProviderStripe, errGatewayNotConfigured), nil
	}

	var intent stripeIntent
	target := s.cfg.StripeAPIURL + "/v1/payment_intents/" + url.PathEscape(intentID)
	res := s.stripeCall(s.request(ctx, httpclient.Get(target), true), &intent)
	if !res.Success {
		logGateway(ctx, ProviderStripe, "confirm", res)
		return res, nil
	}

	res.ID, res.Status, res.Amount, res.Currency = intent.ID, intent.Status, intent.Amount, intent.Currency
	switch {
	case intent.Metadata.OrderID != order.ID:
		res.Success, res.Error = false, "payment intent belongs to another order"
	case intent.Status != "succeeded":
		res.Success, res.Error = false, "payment not completed: "+intent.Status
	default:
		if _, err := s.orders.AttachPayment(ctx, userID, order.ID, ProviderStripe, intent.ID); err != nil {
			return PaymentResult{}, err
		}
	}
	logGateway(ctx, ProviderStripe, "confirm", res)
	return res, nil
}

func (s *PaymentService) stripeCall(req *httpclient.Request, dest interface{}) PaymentResult {
	resp, err := req.Bearer(s.cfg.StripeSecretKey).Send()
	if err != nil {
		return failed(ProviderStripe, err)
	}
	if !resp.OK() {
		var e stripeError
		if resp.JSON(&e) == nil && e.Error.Message != "" {
			return failed(ProviderStripe, fmt.Errorf("stripe: %s", e.Error.Message))
		}
		return failed(ProviderStripe, resp.Throw())
	}
	if err := resp.JSON(dest); err != nil {
		return failed(ProviderStripe, fmt.Errorf("stripe: decode: %w", err))
	}
	return PaymentResult{Success: true, Provider: ProviderStripe}
}
