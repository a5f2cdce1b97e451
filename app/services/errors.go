package services

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrShopNotFound         = errors.New("shop not found")
	ErrShopClosed           = errors.New("shop is closed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrForbidden            = errors.New("not allowed")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrEmptyOrder           = errors.New("order has no items")
	ErrNotPaid              = errors.New("order has no recorded payment")
)
