package models

import "github.com/campusbite/canteen/pkg/auth"

const (
	RoleCustomer   = auth.RoleCustomer
	RoleShopkeeper = auth.RoleShopkeeper
	RoleAdmin      = auth.RoleAdmin
)

type User struct {
	Base
	Name     string `gorm:"size:255;not null" json:"name"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role     string `gorm:"size:20;not null;default:customer" json:"role"`
}

// IsRole reports whether role is one a user may hold.
func IsRole(role string) bool {
	switch role {
	case RoleCustomer, RoleShopkeeper, RoleAdmin:
		return true
	}
	return false
}
