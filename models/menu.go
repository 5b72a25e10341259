package models

import "time"

type MenuItem struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	RestaurantID uint              `gorm:"not null;index" json:"restaurant_id"`
	CategoryID   uint              `gorm:"not null;index" json:"category_id"`
	Category     *MenuCategory     `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name         string            `gorm:"type:varchar(255);not null" json:"name"`
	Description  string            `gorm:"type:text" json:"description"`
	Price        float64           `gorm:"type:decimal(10,2);not null" json:"price"`
	IsVeg        bool              `gorm:"not null" json:"is_veg"`
	ImagePath    *string           `gorm:"type:varchar(255)" json:"image_path,omitempty"`
	IsAvailable  bool              `gorm:"not null" json:"is_available"`
	IsActive     bool              `gorm:"not null" json:"is_active"`
	HasVariants  bool              `gorm:"not null" json:"has_variants"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
	Variants     []MenuItemVariant `gorm:"foreignKey:MenuItemID" json:"variants,omitempty"`
}

type MenuItemVariant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MenuItemID uint      `gorm:"not null;index" json:"menu_item_id"`
	MenuItem   *MenuItem `gorm:"foreignKey:MenuItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Price      float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}
