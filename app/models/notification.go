package models

type Notification struct {
	Base
	UserID  string  `gorm:"size:36;index;not null" json:"userId"`
	OrderID *string `gorm:"size:36" json:"orderId,omitempty"`
	Title   string  `gorm:"size:160;not null" json:"title"`
	Message string  `gorm:"type:text" json:"message"`
	Read    bool    `gorm:"column:is_read;not null;default:false" json:"read"`
}
