package models

import "time"

type OrderStatus string

const (
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is attributed to exactly one of CreatedBy (staff) or
// CreatedByDeviceID (self-service participant).
type Order struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	RestaurantID      uint          `gorm:"not null;uniqueIndex:idx_order_restaurant_number,priority:1;index:idx_orders_kitchen,priority:1" json:"restaurant_id"`
	TableSessionID    uint          `gorm:"not null;index" json:"table_session_id"`
	Session           *TableSession `gorm:"foreignKey:TableSessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedBy         *uint         `gorm:"index" json:"created_by,omitempty"`
	CreatedByDeviceID *string       `gorm:"type:varchar(128);index" json:"created_by_device_id,omitempty"`
	OrderNumber       string        `gorm:"type:varchar(32);not null;uniqueIndex:idx_order_restaurant_number,priority:2" json:"order_number"`
	Sequence          int           `gorm:"not null" json:"-"`
	Status            OrderStatus   `gorm:"type:varchar(16);not null;index:idx_orders_kitchen,priority:2" json:"status"`
	Notes             string        `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`
	Items             []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
}

// Subtotal -> sum of non-cancelled items at their snapshot price
func (o *Order) Subtotal() float64 {
	if o.Status == OrderStatusCancelled {
		return 0
	}
	var total float64
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	return total
}
