package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowSettings is the per-restaurant order lifecycle configuration.
type WorkflowSettings struct {
	HasKitchenView bool     `json:"has_kitchen_view"`
	OrderFlow      []string `json:"order_flow"`
	AllowSkip      bool     `json:"allow_skip"`
}

// DefaultWorkflowSettings -> flow used when a restaurant does not declare one
func DefaultWorkflowSettings() WorkflowSettings {
	return WorkflowSettings{
		HasKitchenView: true,
		OrderFlow: []string{
			string(OrderStatusReceived),
			string(OrderStatusPreparing),
			string(OrderStatusReady),
			string(OrderStatusServed),
			string(OrderStatusPaid),
		},
	}
}

type Restaurant struct {
	ID               uint                                 `gorm:"primaryKey" json:"id"`
	Name             string                               `gorm:"type:varchar(255);not null" json:"name"`
	Slug             string                               `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	WorkflowSettings datatypes.JSONType[WorkflowSettings] `gorm:"not null" json:"workflow_settings"`
	IsActive         bool                                 `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time                            `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                            `gorm:"not null" json:"updated_at"`
}

// Workflow returns the stored settings, falling back to the default flow.
func (r *Restaurant) Workflow() WorkflowSettings {
	settings := r.WorkflowSettings.Data()
	if len(settings.OrderFlow) == 0 {
		defaults := DefaultWorkflowSettings()
		settings.OrderFlow = defaults.OrderFlow
	}
	return settings
}

// RestaurantMember links a staff user to a tenant.
type RestaurantMember struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;uniqueIndex:idx_member_restaurant_user,priority:1" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_member_restaurant_user,priority:2;index" json:"user_id"`
	User         User       `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	IsOwner      bool       `gorm:"not null" json:"is_owner"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

type Role struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	RestaurantID uint                        `gorm:"not null;uniqueIndex:idx_role_restaurant_name,priority:1" json:"restaurant_id"`
	Restaurant   Restaurant                  `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name         string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_role_restaurant_name,priority:2" json:"name"`
	Permissions  datatypes.JSONSlice[string] `gorm:"not null" json:"permissions"`
	IsActive     bool                        `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"not null" json:"updated_at"`
}

type UserRole struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_user_role,priority:1" json:"user_id"`
	RoleID       uint      `gorm:"not null;uniqueIndex:idx_user_role,priority:2" json:"role_id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	AssignedAt   time.Time `gorm:"not null" json:"assigned_at"`
}
