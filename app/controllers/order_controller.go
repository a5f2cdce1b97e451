package controllers

import (
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Index lists the caller's own orders.
func (o *OrderController) Index(c *ctx.Context) {
	list, err := o.orders.ForCustomer(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

// Shopkeeper lists every order of the caller's shops, newest first.
func (o *OrderController) Shopkeeper(c *ctx.Context) {
	list, err := o.orders.ForShopkeeper(c.Context(), c.UserID(), c.Role())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

func (o *OrderController) Store(c *ctx.Context) {
	var in services.PlaceOrderInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := o.orders.Place(c.Context(), c.UserID(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(order)
}

func (o *OrderController) UpdateStatus(c *ctx.Context) {
	var in services.StatusInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := o.orders.UpdateStatus(c.Context(), c.UserID(), c.Role(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}
