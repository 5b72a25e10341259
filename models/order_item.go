package models

import (
	"time"
)

type ItemStatus string

const (
	ItemStatusReceived  ItemStatus = "received"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusServed    ItemStatus = "served"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// OrderItem keeps a snapshot of the menu naming and price at order time.
type OrderItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OrderID      uint       `gorm:"not null;index" json:"order_id"`
	Order        *Order     `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuItemID   uint       `gorm:"not null;index" json:"menu_item_id"`
	VariantID    *uint      `json:"variant_id,omitempty"`
	ItemName     string     `gorm:"type:varchar(255);not null" json:"item_name"`
	VariantName  string     `gorm:"type:varchar(255)" json:"variant_name,omitempty"`
	PriceAtOrder float64    `gorm:"type:decimal(10,2);not null" json:"price_at_order"`
	Quantity     int        `gorm:"not null;default:1" json:"quantity"`
	Status       ItemStatus `gorm:"type:varchar(16);not null" json:"status"`
	Notes        string     `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (i OrderItem) LineTotal() float64 {
	if i.Status == ItemStatusCancelled {
		return 0
	}
	return i.PriceAtOrder * float64(i.Quantity)
}
