package models

import "time"

type Table struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;uniqueIndex:idx_table_restaurant_number,priority:1" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	TableNumber  int        `gorm:"not null;uniqueIndex:idx_table_restaurant_number,priority:2" json:"table_number"`
	Capacity     int        `gorm:"not null;default:4" json:"capacity"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
