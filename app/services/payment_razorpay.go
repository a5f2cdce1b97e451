package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/campusbite/canteen/app/models"
	httpclient "github.com/campusbite/canteen/pkg/http"
)

const ProviderRazorpay = "razorpay"

type razorpayEntity struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type razorpayError struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
}

type RazorpayVerifyInput struct {
	OrderID           string `json:"orderId" validate:"required"`
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	Signature         string `json:"razorpaySignature" validate:"required"`
}

// RazorpayOrder opens a gateway order for the order's total. KeyID is
// returned so the checkout widget can be started.
func (s *PaymentService) RazorpayOrder(ctx context.Context, userID, orderID string) (PaymentResult, error) {
	order, err := s.customerOrder(ctx, userID, orderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if s.cfg.RazorpayKeyID == "" || s.cfg.RazorpayKeySecret == "" {
		return failed(ProviderRazorpay, errGatewayNotConfigured), nil
	}

	body := map[string]interface{}{
		"amount":   MinorUnits(order.TotalAmount),
		"currency": "INR",
		"receipt":  order.ID,
		"notes":    map[string]string{"order_id": order.ID},
	}
	var entity razorpayEntity
	res := s.razorpayCall(s.request(ctx, httpclient.Post(s.cfg.RazorpayAPIURL+"/v1/orders").Body(body), false), &entity)
	if res.Success {
		res.ID, res.Status, res.Amount, res.Currency = entity.ID, entity.Status, entity.Amount, entity.Currency
		res.KeyID = s.cfg.RazorpayKeyID
	}
	logGateway(ctx, ProviderRazorpay, "order", res)
	return res, nil
}

// RazorpayVerify checks the checkout signature, then that the gateway order
// was opened for this order and its total, and records the payment.
func (s *PaymentService) RazorpayVerify(ctx context.Context, userID string, in RazorpayVerifyInput) (PaymentResult, error) {
	order, err := s.customerOrder(ctx, userID, in.OrderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if s.cfg.RazorpayKeySecret == "" {
		return failed(ProviderRazorpay, errGatewayNotConfigured), nil
	}
	if !VerifyRazorpaySignature(s.cfg.RazorpayKeySecret, in.RazorpayOrderID, in.RazorpayPaymentID, in.Signature) {
		res := PaymentResult{Provider: ProviderRazorpay, ID: in.RazorpayPaymentID, Error: "signature mismatch"}
		logGateway(ctx, ProviderRazorpay, "verify", res)
		return res, nil
	}

	var gw razorpayEntity
	target := fmt.Sprintf("%s/v1/orders/%s", s.cfg.RazorpayAPIURL, url.PathEscape(in.RazorpayOrderID))
	if res := s.razorpayCall(s.request(ctx, httpclient.Get(target), true), &gw); !res.Success {
		logGateway(ctx, ProviderRazorpay, "verify", res)
		return res, nil
	}
	if gw.Receipt != order.ID && gw.Notes["order_id"] != order.ID {
		res := PaymentResult{Provider: ProviderRazorpay, ID: in.RazorpayPaymentID, Error: "gateway order belongs to another order"}
		logGateway(ctx, ProviderRazorpay, "verify", res)
		return res, nil
	}
	if gw.Amount != MinorUnits(order.TotalAmount) {
		res := PaymentResult{Provider: ProviderRazorpay, ID: in.RazorpayPaymentID, Error: "gateway order amount does not match the order total"}
		logGateway(ctx, ProviderRazorpay, "verify", res)
		return res, nil
	}

	if _, err := s.orders.AttachPayment(ctx, userID, in.OrderID, ProviderRazorpay, in.RazorpayPaymentID); err != nil {
		return PaymentResult{}, err
	}
	res := PaymentResult{Success: true, Provider: ProviderRazorpay, ID: in.RazorpayPaymentID, Status: "captured", Amount: gw.Amount, Currency: gw.Currency}
	logGateway(ctx, ProviderRazorpay, "verify", res)
	return res, nil
}

// RazorpayRefund refunds the order's recorded payment, fully when amount is
// zero. Only the shop owner or an admin may refund.
func (s *PaymentService) RazorpayRefund(ctx context.Context, userID, role, orderID string, amount int64) (PaymentResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if role != models.RoleAdmin {
		owner, err := s.orders.ShopOwner(ctx, order)
		if err != nil {
			return PaymentResult{}, err
		}
		if owner != userID {
			return PaymentResult{}, ErrForbidden
		}
	}
	if order.PaymentProvider != ProviderRazorpay || order.TransactionID == "" {
		return PaymentResult{}, ErrNotPaid
	}
	if s.cfg.RazorpayKeyID == "" || s.cfg.RazorpayKeySecret == "" {
		return failed(ProviderRazorpay, errGatewayNotConfigured), nil
	}

	body := map[string]interface{}{"notes": map[string]string{"order_id": order.ID}}
	if amount > 0 {
		body["amount"] = amount
	}
	target := fmt.Sprintf("%s/v1/payments/%s/refund", s.cfg.RazorpayAPIURL, url.PathEscape(order.TransactionID))

	var entity razorpayEntity
	res := s.razorpayCall(s.request(ctx, httpclient.Post(target).Body(body), false), &entity)
	if res.Success {
		res.ID, res.Status, res.Amount, res.Currency = entity.ID, entity.Status, entity.Amount, entity.Currency
	}
	logGateway(ctx, ProviderRazorpay, "refund", res)
	return res, nil
}

func (s *PaymentService) razorpayCall(req *httpclient.Request, dest interface{}) PaymentResult {
	resp, err := req.BasicAuth(s.cfg.RazorpayKeyID, s.cfg.RazorpayKeySecret).Send()
	if err != nil {
		return failed(ProviderRazorpay, err)
	}
	if !resp.OK() {
		var e razorpayError
		if resp.JSON(&e) == nil && e.Error.Description != "" {
			return failed(ProviderRazorpay, fmt.Errorf("razorpay: %s", e.Error.Description))
		}
		return failed(ProviderRazorpay, resp.Throw())
	}
	if err := resp.JSON(dest); err != nil {
		return failed(ProviderRazorpay, fmt.Errorf("razorpay: decode: %w", err))
	}
	return PaymentResult{Success: true, Provider: ProviderRazorpay}
}

// RazorpaySignature is the hex HMAC-SHA256 of "orderID|paymentID".
func RazorpaySignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyRazorpaySignature(secret, orderID, paymentID, signature string) bool {
	want := RazorpaySignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
