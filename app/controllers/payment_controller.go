package controllers

import (
	"net/http"

	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

type orderRef struct {
	OrderID string `json:"orderId" validate:"required"`
}

type stripeConfirmBody struct {
	OrderID         string `json:"orderId" validate:"required"`
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

type refundBody struct {
	OrderID string `json:"orderId" validate:"required"`
	Amount  int64  `json:"amount" validate:"gte=0"` // minor units, 0 refunds in full
}

func (p *PaymentController) StripeIntent(c *ctx.Context) {
	var in orderRef
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.StripeIntent(c.Context(), c.UserID(), in.OrderID)
	p.reply(c, res, err)
}

func (p *PaymentController) StripeConfirm(c *ctx.Context) {
	var in stripeConfirmBody
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.StripeConfirm(c.Context(), c.UserID(), in.OrderID, in.PaymentIntentID)
	p.reply(c, res, err)
}

func (p *PaymentController) RazorpayOrder(c *ctx.Context) {
	var in orderRef
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.RazorpayOrder(c.Context(), c.UserID(), in.OrderID)
	p.reply(c, res, err)
}

func (p *PaymentController) RazorpayVerify(c *ctx.Context) {
	var in services.RazorpayVerifyInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.RazorpayVerify(c.Context(), c.UserID(), in)
	p.reply(c, res, err)
}

func (p *PaymentController) RazorpayRefund(c *ctx.Context) {
	var in refundBody
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.RazorpayRefund(c.Context(), c.UserID(), c.Role(), in.OrderID, in.Amount)
	p.reply(c, res, err)
}

// reply sends the structured result. Gateway refusals are still a 200; the
// caller branches on success.
func (p *PaymentController) reply(c *ctx.Context, res services.PaymentResult, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	if !res.Success {
		c.Respond(http.StatusOK, res.Error, res)
		return
	}
	c.Success(res)
}
