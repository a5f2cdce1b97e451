package controllers

import (
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(n *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: n}
}

func (n *NotificationController) Index(c *ctx.Context) {
	list, err := n.notifications.List(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

func (n *NotificationController) MarkRead(c *ctx.Context) {
	if err := n.notifications.MarkRead(c.Context(), c.UserID(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.NoContent()
}
