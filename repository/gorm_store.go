package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements services.Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

var _ services.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	var typed *services.Error
	if errors.As(err, &typed) {
		return err
	}
	return translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrNotFound):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", services.ErrDuplicate, err)
	}
	return err
}

// isUniqueViolation catches drivers whose errors gorm does not translate.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// updated turns a zero-row update into ErrNotFound, re-checking existence
// because mysql reports unchanged rows as unaffected.
func (s *GormStore) updated(ctx context.Context, res *gorm.DB, model interface{}, query string, args ...interface{}) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	ok, err := s.exists(ctx, model, query, args...)
	if err != nil {
		return err
	}
	if !ok {
		return services.ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.conn(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) CreateRestaurant(ctx context.Context, restaurant *models.Restaurant) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(restaurant).Error)
}

func (s *GormStore) GetRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := s.conn(ctx).First(&restaurant, id).Error; err != nil {
		return nil, translate(err)
	}
	return &restaurant, nil
}

func (s *GormStore) UpdateWorkflowSettings(ctx context.Context, restaurantID uint, settings models.WorkflowSettings) error {
	res := s.conn(ctx).Model(&models.Restaurant{}).
		Where("id = ?", restaurantID).
		Update("workflow_settings", datatypes.NewJSONType(settings))
	return s.updated(ctx, res, &models.Restaurant{}, "id = ?", restaurantID)
}

// DeleteRestaurant removes the tenant with its membership rows; the other
// children go through the foreign key cascade.
func (s *GormStore) DeleteRestaurant(ctx context.Context, id uint) error {
	return translate(s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("restaurant_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", id).Delete(&models.Role{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", id).Delete(&models.RestaurantMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Restaurant{}, id).Error
	}))
}

func (s *GormStore) ListRestaurantsForUser(ctx context.Context, userID uint) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	err := s.conn(ctx).
		Joins("JOIN restaurant_members m ON m.restaurant_id = restaurants.id").
		Where("m.user_id = ? AND m.is_active = ?", userID, true).
		Order("restaurants.id").
		Find(&restaurants).Error
	return restaurants, translate(err)
}

func (s *GormStore) CreateMember(ctx context.Context, member *models.RestaurantMember) error {
	return translate(s.conn(ctx).Create(member).Error)
}

func (s *GormStore) GetMember(ctx context.Context, restaurantID, userID uint) (*models.RestaurantMember, error) {
	var member models.RestaurantMember
	err := s.conn(ctx).Where("restaurant_id = ? AND user_id = ?", restaurantID, userID).First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (s *GormStore) DeleteMember(ctx context.Context, id uint) error {
	return translate(s.conn(ctx).Delete(&models.RestaurantMember{}, id).Error)
}

func (s *GormStore) CreateRole(ctx context.Context, role *models.Role) error {
	return translate(s.conn(ctx).Create(role).Error)
}

func (s *GormStore) GetRoleByName(ctx context.Context, restaurantID uint, name string) (*models.Role, error) {
	var role models.Role
	if err := s.conn(ctx).Where("restaurant_id = ? AND name = ?", restaurantID, name).First(&role).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (s *GormStore) DeleteRole(ctx context.Context, id uint) error {
	return translate(s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, id).Error
	}))
}

func (s *GormStore) AssignRole(ctx context.Context, userRole *models.UserRole) error {
	return translate(s.conn(ctx).Create(userRole).Error)
}

func (s *GormStore) DeleteUserRole(ctx context.Context, id uint) error {
	return translate(s.conn(ctx).Delete(&models.UserRole{}, id).Error)
}

func (s *GormStore) ListMemberRoles(ctx context.Context, restaurantID, userID uint) ([]models.Role, error) {
	var roles []models.Role
	err := s.conn(ctx).
		Joins("JOIN user_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ? AND roles.restaurant_id = ?", userID, restaurantID).
		Find(&roles).Error
	return roles, translate(err)
}

func (s *GormStore) CreateTable(ctx context.Context, table *models.Table) error {
	return translate(s.conn(ctx).Create(table).Error)
}

func (s *GormStore) GetTable(ctx context.Context, restaurantID, tableID uint) (*models.Table, error) {
	var table models.Table
	if err := s.conn(ctx).Where("id = ? AND restaurant_id = ?", tableID, restaurantID).First(&table).Error; err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (s *GormStore) ListTables(ctx context.Context, restaurantID uint) ([]models.Table, error) {
	var tables []models.Table
	err := s.conn(ctx).Where("restaurant_id = ?", restaurantID).Order("table_number").Find(&tables).Error
	return tables, translate(err)
}

func (s *GormStore) SetTableActive(ctx context.Context, restaurantID, tableID uint, active bool) error {
	res := s.conn(ctx).Model(&models.Table{}).
		Where("id = ? AND restaurant_id = ?", tableID, restaurantID).
		Update("is_active", active)
	return s.updated(ctx, res, &models.Table{}, "id = ? AND restaurant_id = ?", tableID, restaurantID)
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.TableSession) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(session).Error)
}

func (s *GormStore) GetSession(ctx context.Context, id uint) (*models.TableSession, error) {
	var session models.TableSession
	if err := s.conn(ctx).First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) GetActiveSessionByTable(ctx context.Context, tableID uint) (*models.TableSession, error) {
	var session models.TableSession
	if err := s.conn(ctx).Where("active_table_id = ?", tableID).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) GetActiveSessionByCode(ctx context.Context, restaurantID uint, code string) (*models.TableSession, error) {
	var session models.TableSession
	err := s.conn(ctx).
		Where("restaurant_id = ? AND active_join_code = ?", restaurantID, code).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) ActiveJoinCodeExists(ctx context.Context, restaurantID uint, code string) (bool, error) {
	return s.exists(ctx, &models.TableSession{}, "restaurant_id = ? AND active_join_code = ?", restaurantID, code)
}

func (s *GormStore) ListActiveSessions(ctx context.Context, restaurantID uint) ([]models.TableSession, error) {
	var sessions []models.TableSession
	err := s.conn(ctx).
		Where("restaurant_id = ? AND status = ?", restaurantID, models.SessionStatusActive).
		Order("start_time").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (s *GormStore) TouchActiveSession(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).Model(&models.TableSession{}).
		Where("id = ? AND status = ?", id, models.SessionStatusActive).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return s.exists(ctx, &models.TableSession{}, "id = ? AND status = ?", id, models.SessionStatusActive)
}

func (s *GormStore) EndSession(ctx context.Context, id uint, end services.SessionEnd) (bool, error) {
	res := s.conn(ctx).Model(&models.TableSession{}).
		Where("id = ? AND status = ?", id, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":           end.Status,
			"active_table_id":  nil,
			"active_join_code": nil,
			"ended_by":         end.EndedBy,
			"end_time":         end.At,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) SetSessionTotal(ctx context.Context, id uint, total float64) error {
	res := s.conn(ctx).Model(&models.TableSession{}).Where("id = ?", id).Update("calculated_total", total)
	return s.updated(ctx, res, &models.TableSession{}, "id = ?", id)
}

func (s *GormStore) ListIdleSessions(ctx context.Context, startedBefore time.Time, limit int) ([]models.TableSession, error) {
	var sessions []models.TableSession
	err := s.conn(ctx).
		Where("status = ? AND start_time < ?", models.SessionStatusActive, startedBefore).
		Where("NOT EXISTS (SELECT 1 FROM orders o WHERE o.table_session_id = table_sessions.id)").
		Order("start_time").
		Limit(limit).
		Find(&sessions).Error
	return sessions, translate(err)
}

func (s *GormStore) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	return translate(s.conn(ctx).Create(participant).Error)
}

func (s *GormStore) GetParticipant(ctx context.Context, sessionID uint, deviceID string) (*models.Participant, error) {
	var participant models.Participant
	err := s.conn(ctx).Where("session_id = ? AND device_id = ?", sessionID, deviceID).First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (s *GormStore) UpdateParticipant(ctx context.Context, participant *models.Participant) error {
	return translate(s.conn(ctx).Save(participant).Error)
}

func (s *GormStore) ListParticipants(ctx context.Context, sessionID uint) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.conn(ctx).Where("session_id = ?", sessionID).Order("joined_at, id").Find(&participants).Error
	return participants, translate(err)
}

func (s *GormStore) CreateCategory(ctx context.Context, category *models.MenuCategory) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(category).Error)
}

func (s *GormStore) GetCategory(ctx context.Context, restaurantID, categoryID uint) (*models.MenuCategory, error) {
	var category models.MenuCategory
	err := s.conn(ctx).Where("id = ? AND restaurant_id = ?", categoryID, restaurantID).First(&category).Error
	if err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (s *GormStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	return translate(s.conn(ctx).Create(item).Error)
}

func (s *GormStore) GetMenuItem(ctx context.Context, restaurantID, itemID uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.conn(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ? AND restaurant_id = ?", itemID, restaurantID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *GormStore) UpdateMenuItem(ctx context.Context, restaurantID, itemID uint, fields map[string]interface{}) error {
	res := s.conn(ctx).Model(&models.MenuItem{}).
		Where("id = ? AND restaurant_id = ?", itemID, restaurantID).
		Updates(fields)
	return s.updated(ctx, res, &models.MenuItem{}, "id = ? AND restaurant_id = ?", itemID, restaurantID)
}

func (s *GormStore) ListMenu(ctx context.Context, restaurantID uint) ([]models.MenuCategory, error) {
	var categories []models.MenuCategory
	err := s.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("name")
		}).
		Preload("Items.Variants", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("id")
		}).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("display_order, id").
		Find(&categories).Error
	return categories, translate(err)
}

func (s *GormStore) NextOrderSequence(ctx context.Context, restaurantID uint) (int, error) {
	var last int
	err := s.conn(ctx).Model(&models.Order{}).
		Where("restaurant_id = ?", restaurantID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, translate(err)
	}
	return last + 1, nil
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return translate(s.conn(ctx).Create(order).Error)
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (s *GormStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.conn(ctx).Preload("Items", preloadItems).First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *GormStore) GetOrderItem(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.conn(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *GormStore) ListSessionOrders(ctx context.Context, sessionID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.conn(ctx).Preload("Items", preloadItems).
		Where("table_session_id = ?", sessionID).
		Order("sequence").
		Find(&orders).Error
	return orders, translate(err)
}

func (s *GormStore) CountSessionOrders(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Order{}).Where("table_session_id = ?", sessionID).Count(&count).Error
	return count, translate(err)
}

func (s *GormStore) ListOrdersByStatus(ctx context.Context, restaurantID uint, statuses []models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := s.conn(ctx).Preload("Items", preloadItems).
		Where("restaurant_id = ? AND status IN ?", restaurantID, statuses).
		Order("created_at, id").
		Find(&orders).Error
	return orders, translate(err)
}

func (s *GormStore) SetOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := s.conn(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) SetItemStatus(ctx context.Context, id uint, from, to models.ItemStatus) (bool, error) {
	res := s.conn(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}
