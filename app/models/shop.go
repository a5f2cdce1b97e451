package models

// Shop is one counter in the canteen. ActiveTokens is the token number most
// recently handed out today; the nightly reset sets it back to 0.
type Shop struct {
	Base
	OwnerID       string `gorm:"size:36;index;not null" json:"ownerId"`
	Name          string `gorm:"size:120;not null" json:"name"`
	Category      string `gorm:"size:60" json:"category"`
	Closed        bool   `gorm:"not null;default:false" json:"closed"`
	EstimatedWait int    `gorm:"not null;default:0" json:"estimatedWait"` // minutes
	ImageURL      string `gorm:"type:text" json:"imageUrl"`
	ActiveTokens  int    `gorm:"not null;default:0" json:"activeTokens"`
	CurrentOrders int    `gorm:"not null;default:0" json:"currentOrders"`
}

// ShopTokenHistory records the highest token issued by a shop on one day.
type ShopTokenHistory struct {
	Base
	ShopID   string `gorm:"size:36;not null;uniqueIndex:idx_token_history_shop_date,priority:1" json:"shopId"`
	Date     string `gorm:"size:10;not null;uniqueIndex:idx_token_history_shop_date,priority:2" json:"date"`
	MaxToken int    `gorm:"not null" json:"maxToken"`
}
