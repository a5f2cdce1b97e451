package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Order is a customer's order at one shop.
type Order struct {
	Base
	UserID          string          `gorm:"size:36;index;not null" json:"userId"`
	ShopID          string          `gorm:"size:36;not null;index:idx_orders_shop_day,priority:1" json:"shopId"`
	Items           Items           `json:"items"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	Status          string          `gorm:"size:32;index;not null;default:pending_approval" json:"status"`
	RejectionReason *string         `gorm:"size:64" json:"rejectionReason,omitempty"`
	TransactionID   string          `gorm:"size:128" json:"transactionId,omitempty"`
	PaymentProvider string          `gorm:"size:32" json:"paymentProvider,omitempty"`
	TokenNumber     int             `gorm:"not null;default:0" json:"tokenNumber"`
	// BusinessDate is the local calendar day (YYYY-MM-DD) the token was
	// issued on.
	BusinessDate string `gorm:"size:10;not null;index:idx_orders_shop_day,priority:2" json:"businessDate"`
}

// Item is one order line.
type Item struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Quantity int             `json:"quantity" validate:"required,min=1,max=100"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
}

// Items is stored as a JSON column.
type Items []Item

// Total is the sum of price times quantity over every line.
func (it Items) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range it {
		sum = sum.Add(i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))))
	}
	return sum
}

func (it Items) Value() (driver.Value, error) {
	if it == nil {
		return "[]", nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (it *Items) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*it = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into Items", src)
	}
	if len(raw) == 0 {
		*it = nil
		return nil
	}
	return json.Unmarshal(raw, it)
}

func (Items) GormDataType() string { return "json" }

func (Items) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver":
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}

// Order statuses.
const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusPreparing       = "preparing"
	StatusReady           = "ready"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

var transitions = map[string][]string{
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusPreparing, StatusReady, StatusCompleted, StatusCancelled},
	StatusPreparing:       {StatusReady, StatusCompleted, StatusCancelled},
	StatusReady:           {StatusCompleted},
}

// Statuses lists every order status in lifecycle order.
var Statuses = []string{
	StatusPendingApproval, StatusApproved, StatusRejected, StatusPreparing,
	StatusReady, StatusCompleted, StatusCancelled,
}

func IsStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s string) bool {
	return IsStatus(s) && len(transitions[s]) == 0
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rejection reasons a shopkeeper may pick from.
const (
	ReasonOutOfStock   = "Out of stock"
	ReasonShopClosed   = "Shop closed"
	ReasonInvalidOrder = "Invalid order"
	ReasonOther        = "Other"
)

var RejectionReasons = []string{ReasonOutOfStock, ReasonShopClosed, ReasonInvalidOrder, ReasonOther}

func IsRejectionReason(r string) bool {
	for _, v := range RejectionReasons {
		if v == r {
			return true
		}
	}
	return false
}

var (
	ErrUnknownStatus   = errors.New("unknown order status")
	ErrReasonRequired  = errors.New("rejection requires a reason from the allowed list")
	ErrReasonForbidden = errors.New("a reason is only accepted when rejecting")
)

// CheckStatusUpdate validates a (status, reason) pair on its own, without
// regard to the order's current status.
func CheckStatusUpdate(status string, reason *string) error {
	if !IsStatus(status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if status == StatusRejected {
		if reason == nil || !IsRejectionReason(*reason) {
			return ErrReasonRequired
		}
		return nil
	}
	if reason != nil {
		return ErrReasonForbidden
	}
	return nil
}
