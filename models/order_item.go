package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderItem struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	// Order disembunyikan dari JSON untuk menghindari nesting rekursif
	Order          Order  `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuItemID     string `gorm:"type:varchar(36);not null" json:"menu_item_id"`
	Name           string `gorm:"type:varchar(255);not null" json:"name"`
	Quantity       int    `gorm:"not null" json:"quantity"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
	Notes          string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == "" {
		oi.ID = uuid.NewString()
	}
	return nil
}
