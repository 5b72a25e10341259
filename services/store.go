package services

import (
	"context"
	"time"

	"github.com/yeremiapane/table-ordering/models"
)

// Store is the persistence the services run against. Lookups return
// ErrNotFound on a miss and writes return ErrDuplicate when a unique index
// rejects them. Conditional updates report whether a row matched.
type Store interface {
	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateRestaurant(ctx context.Context, restaurant *models.Restaurant) error
	GetRestaurant(ctx context.Context, id uint) (*models.Restaurant, error)
	UpdateWorkflowSettings(ctx context.Context, restaurantID uint, settings models.WorkflowSettings) error
	DeleteRestaurant(ctx context.Context, id uint) error
	ListRestaurantsForUser(ctx context.Context, userID uint) ([]models.Restaurant, error)

	CreateMember(ctx context.Context, member *models.RestaurantMember) error
	GetMember(ctx context.Context, restaurantID, userID uint) (*models.RestaurantMember, error)
	DeleteMember(ctx context.Context, id uint) error
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByName(ctx context.Context, restaurantID uint, name string) (*models.Role, error)
	DeleteRole(ctx context.Context, id uint) error
	AssignRole(ctx context.Context, userRole *models.UserRole) error
	DeleteUserRole(ctx context.Context, id uint) error
	ListMemberRoles(ctx context.Context, restaurantID, userID uint) ([]models.Role, error)

	CreateTable(ctx context.Context, table *models.Table) error
	GetTable(ctx context.Context, restaurantID, tableID uint) (*models.Table, error)
	ListTables(ctx context.Context, restaurantID uint) ([]models.Table, error)
	SetTableActive(ctx context.Context, restaurantID, tableID uint, active bool) error

	CreateSession(ctx context.Context, session *models.TableSession) error
	GetSession(ctx context.Context, id uint) (*models.TableSession, error)
	GetActiveSessionByTable(ctx context.Context, tableID uint) (*models.TableSession, error)
	GetActiveSessionByCode(ctx context.Context, restaurantID uint, code string) (*models.TableSession, error)
	ActiveJoinCodeExists(ctx context.Context, restaurantID uint, code string) (bool, error)
	ListActiveSessions(ctx context.Context, restaurantID uint) ([]models.TableSession, error)
	// TouchActiveSession bumps updated_at only while the session is active.
	TouchActiveSession(ctx context.Context, id uint) (bool, error)
	// EndSession moves an active session to a terminal status and releases
	// its table and join code slots.
	EndSession(ctx context.Context, id uint, end SessionEnd) (bool, error)
	SetSessionTotal(ctx context.Context, id uint, total float64) error
	// ListIdleSessions returns active sessions started before the cutoff that
	// have no orders.
	ListIdleSessions(ctx context.Context, startedBefore time.Time, limit int) ([]models.TableSession, error)

	CreateParticipant(ctx context.Context, participant *models.Participant) error
	GetParticipant(ctx context.Context, sessionID uint, deviceID string) (*models.Participant, error)
	UpdateParticipant(ctx context.Context, participant *models.Participant) error
	ListParticipants(ctx context.Context, sessionID uint) ([]models.Participant, error)

	CreateCategory(ctx context.Context, category *models.MenuCategory) error
	GetCategory(ctx context.Context, restaurantID, categoryID uint) (*models.MenuCategory, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	GetMenuItem(ctx context.Context, restaurantID, itemID uint) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, restaurantID, itemID uint, fields map[string]interface{}) error
	ListMenu(ctx context.Context, restaurantID uint) ([]models.MenuCategory, error)

	NextOrderSequence(ctx context.Context, restaurantID uint) (int, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	GetOrderItem(ctx context.Context, id uint) (*models.OrderItem, error)
	ListSessionOrders(ctx context.Context, sessionID uint) ([]models.Order, error)
	CountSessionOrders(ctx context.Context, sessionID uint) (int64, error)
	ListOrdersByStatus(ctx context.Context, restaurantID uint, statuses []models.OrderStatus) ([]models.Order, error)
	// SetOrderStatus and SetItemStatus apply only when the row still holds from.
	SetOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error)
	SetItemStatus(ctx context.Context, id uint, from, to models.ItemStatus) (bool, error)
}

// SessionEnd describes how a session leaves the active state.
type SessionEnd struct {
	Status  models.SessionStatus
	EndedBy *uint
	At      time.Time
}
