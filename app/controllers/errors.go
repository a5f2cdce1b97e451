package controllers

import (
	"errors"
	"net/http"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

var statusFor = []struct {
	err  error
	code int
}{
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrShopNotFound, http.StatusNotFound},
	{services.ErrOrderNotFound, http.StatusNotFound},
	{services.ErrNotificationNotFound, http.StatusNotFound},
	{services.ErrEmailTaken, http.StatusConflict},
	{services.ErrShopClosed, http.StatusConflict},
	{services.ErrInvalidTransition, http.StatusConflict},
	{services.ErrNotPaid, http.StatusConflict},
}

var fieldFor = []struct {
	err   error
	field string
}{
	{models.ErrUnknownStatus, "status"},
	{models.ErrReasonRequired, "reason"},
	{models.ErrReasonForbidden, "reason"},
	{services.ErrEmptyOrder, "items"},
}

// fail maps a service error onto a response. Anything unrecognised is
// logged and reported as a 500 without detail.
func fail(c *ctx.Context, err error) {
	for _, f := range fieldFor {
		if errors.Is(err, f.err) {
			c.ValidationError(map[string]string{f.field: f.err.Error()})
			return
		}
	}
	for _, s := range statusFor {
		if errors.Is(err, s.err) {
			c.Error(s.code, s.err.Error())
			return
		}
	}
	c.Log().Error("request failed", "error", err)
	c.Error(http.StatusInternalServerError, "Internal server error")
}
