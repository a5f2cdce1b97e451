package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/config"
	httpclient "github.com/campusbite/canteen/pkg/http"
	"github.com/campusbite/canteen/pkg/logger"
)

const gatewayTimeout = 20 * time.Second

// PaymentResult is what every gateway call returns. Gateway-level failures
// are reported through Success and Error rather than as Go errors.
type PaymentResult struct {
	Success      bool   `json:"success"`
	Provider     string `json:"provider"`
	ID           string `json:"id,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Status       string `json:"status,omitempty"`
	Amount       int64  `json:"amount,omitempty"` // minor units
	Currency     string `json:"currency,omitempty"`
	KeyID        string `json:"keyId,omitempty"`
	Error        string `json:"error,omitempty"`
}

func failed(provider string, err error) PaymentResult {
	return PaymentResult{Provider: provider, Error: err.Error()}
}

// GatewayConfig holds credentials and endpoints for both gateways.
type GatewayConfig struct {
	StripeSecretKey string
	StripeAPIURL    string
	StripeCurrency  string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayAPIURL    string
}

func GatewayConfigFromEnv() GatewayConfig {
	return GatewayConfig{
		StripeSecretKey:   config.StripeSecretKey(),
		StripeAPIURL:      config.StripeAPIURL(),
		StripeCurrency:    config.StripeCurrency(),
		RazorpayKeyID:     config.RazorpayKeyID(),
		RazorpayKeySecret: config.RazorpayKeySecret(),
		RazorpayAPIURL:    config.RazorpayAPIURL(),
	}
}

var errGatewayNotConfigured = errors.New("payment gateway is not configured")

// PaymentService talks to Stripe and Razorpay on behalf of an order.
type PaymentService struct {
	cfg    GatewayConfig
	orders *OrderService
	client *http.Client
}

// NewPaymentService uses client for gateway calls; nil means the shared
// default client.
func NewPaymentService(cfg GatewayConfig, orders *OrderService, client *http.Client) *PaymentService {
	cfg.StripeAPIURL = strings.TrimRight(cfg.StripeAPIURL, "/")
	cfg.RazorpayAPIURL = strings.TrimRight(cfg.RazorpayAPIURL, "/")
	return &PaymentService{cfg: cfg, orders: orders, client: client}
}

// request applies the shared timeout. Only safe calls are retried; gateway
// writes are not idempotent without a key.
func (s *PaymentService) request(ctx context.Context, req *httpclient.Request, safe bool) *httpclient.Request {
	req.WithContext(ctx).Timeout(gatewayTimeout)
	if safe {
		req.Retry(3, 300*time.Millisecond)
	}
	if s.client != nil {
		req.Using(s.client)
	}
	return req
}

// customerOrder loads an order the caller owns.
func (s *PaymentService) customerOrder(ctx context.Context, userID, orderID string) (models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, ErrForbidden
	}
	return order, nil
}

// MinorUnits converts a decimal amount to paise or cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func logGateway(ctx context.Context, provider, op string, res PaymentResult) {
	if res.Success {
		logger.WithCtx(ctx).Info("payments: gateway call ok", "provider", provider, "op", op, "id", res.ID)
		return
	}
	logger.WithCtx(ctx).Warn("payments: gateway call failed", "provider", provider, "op", op, "error", res.Error)
}
