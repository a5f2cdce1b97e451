// Package events names the domain events fired on the bus and the push
// frames clients receive.
package events

import "github.com/campusbite/canteen/app/models"

// Bus event names.
const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
	ShopTokensChanged  = "shop.tokens_changed"
)

// Push frame types.
const (
	TypeNewOrder         = "new_order"
	TypeShopTokensUpdate = "shop_tokens_update"
)

type OrderPlacedPayload struct {
	Order models.Order
}

type OrderStatusChangedPayload struct {
	Order models.Order
	From  string
}

type ShopTokensChangedPayload struct {
	ShopID        string
	ActiveTokens  int
	CurrentOrders int
}

// NewOrderFrame is the payload of a new_order push. Clients treat it as a
// trigger to re-fetch.
type NewOrderFrame struct {
	ShopID  string `json:"shopId"`
	OrderID string `json:"orderId"`
}

// ShopTokensFrame is the payload of a shop_tokens_update push.
type ShopTokensFrame struct {
	ShopID        string `json:"shopId"`
	ActiveTokens  int    `json:"activeTokens"`
	CurrentOrders int    `json:"currentOrders"`
}
