package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
	"gorm.io/datatypes"
)

const (
	ownerRoleName = "owner"
	slugAttempts  = 5
)

type RestaurantService struct {
	store Store
	authz *Authorizer
	saga  *Saga
	log   *logrus.Logger
}

func NewRestaurantService(store Store, authz *Authorizer, saga *Saga, log *logrus.Logger) *RestaurantService {
	return &RestaurantService{store: store, authz: authz, saga: saga, log: log}
}

// CreateRestaurant creates the tenant and makes ownerID its owner. The steps
// run as a saga so a failed owner link removes the restaurant again.
func (s *RestaurantService) CreateRestaurant(ctx context.Context, ownerID uint, name string, settings *models.WorkflowSettings) (*models.Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validation("restaurant name is required")
	}
	if len(name) > 255 {
		return nil, Validation("restaurant name is too long")
	}
	workflow := models.DefaultWorkflowSettings()
	if settings != nil {
		if err := ValidateWorkflowSettings(*settings); err != nil {
			return nil, err
		}
		workflow = *settings
	}
	if _, err := s.store.GetUser(ctx, ownerID); err != nil {
		return nil, lookup(err, "user", ownerID)
	}

	now := time.Now()
	restaurant := &models.Restaurant{
		Name:             name,
		WorkflowSettings: datatypes.NewJSONType(workflow),
		IsActive:         true,
	}
	member := &models.RestaurantMember{UserID: ownerID, IsOwner: true, IsActive: true, JoinedAt: now}
	role := &models.Role{Name: ownerRoleName, IsActive: true}
	for _, p := range AllPermissions {
		role.Permissions = append(role.Permissions, string(p))
	}
	userRole := &models.UserRole{UserID: ownerID, AssignedAt: now}

	err := s.saga.Run(ctx,
		Step{
			Name: "create_restaurant",
			Do: func(ctx context.Context) error {
				return s.insertWithSlug(ctx, restaurant)
			},
			Undo: func(ctx context.Context) error {
				return s.store.DeleteRestaurant(ctx, restaurant.ID)
			},
		},
		Step{
			Name: "add_owner_member",
			Do: func(ctx context.Context) error {
				member.RestaurantID = restaurant.ID
				return wrapStore(s.store.CreateMember(ctx, member), "failed to add owner")
			},
			Undo: func(ctx context.Context) error {
				return s.store.DeleteMember(ctx, member.ID)
			},
		},
		Step{
			Name: "create_owner_role",
			Do: func(ctx context.Context) error {
				role.RestaurantID = restaurant.ID
				return wrapStore(s.store.CreateRole(ctx, role), "failed to create owner role")
			},
			Undo: func(ctx context.Context) error {
				return s.store.DeleteRole(ctx, role.ID)
			},
		},
		Step{
			Name: "assign_owner_role",
			Do: func(ctx context.Context) error {
				userRole.RoleID = role.ID
				userRole.RestaurantID = restaurant.ID
				return wrapStore(s.store.AssignRole(ctx, userRole), "failed to assign owner role")
			},
		},
	)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurant.ID,
		"slug":          restaurant.Slug,
		"user_id":       ownerID,
	}).Info("restaurant created")
	return restaurant, nil
}

func (s *RestaurantService) insertWithSlug(ctx context.Context, restaurant *models.Restaurant) error {
	base := Slugify(restaurant.Name)
	for attempt := 0; attempt < slugAttempts; attempt++ {
		restaurant.ID = 0
		restaurant.Slug = base
		if attempt > 0 {
			restaurant.Slug = base + "-" + uuid.NewString()[:6]
		}
		err := s.store.CreateRestaurant(ctx, restaurant)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return wrapStore(err, "failed to create restaurant")
		}
	}
	return &Error{Kind: KindResourceExhausted, Message: "could not find a free slug for " + restaurant.Name}
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "restaurant"
	}
	return b.String()
}

func (s *RestaurantService) GetRestaurant(ctx context.Context, restaurantID uint) (*models.Restaurant, error) {
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, lookup(err, "restaurant", restaurantID)
	}
	return restaurant, nil
}

func (s *RestaurantService) ListRestaurants(ctx context.Context, userID uint) ([]models.Restaurant, error) {
	restaurants, err := s.store.ListRestaurantsForUser(ctx, userID)
	if err != nil {
		return nil, wrapStore(err, "failed to list restaurants")
	}
	return restaurants, nil
}

func (s *RestaurantService) UpdateWorkflow(ctx context.Context, staffID, restaurantID uint, settings models.WorkflowSettings) (*models.Restaurant, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageRestaurant); err != nil {
		return nil, err
	}
	if err := ValidateWorkflowSettings(settings); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWorkflowSettings(ctx, restaurantID, settings); err != nil {
		return nil, lookup(err, "restaurant", restaurantID)
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"order_flow":    settings.OrderFlow,
		"allow_skip":    settings.AllowSkip,
	}).Info("workflow updated")
	return s.GetRestaurant(ctx, restaurantID)
}

type AddStaffRequest struct {
	Email       string
	RoleName    string
	Permissions []string
}

// AddStaff makes an existing user a member with the named role, creating the
// role with the given permissions when the restaurant does not have it yet.
func (s *RestaurantService) AddStaff(ctx context.Context, actorID, restaurantID uint, req AddStaffRequest) (*models.RestaurantMember, error) {
	if err := s.authz.Require(ctx, restaurantID, actorID, PermManageStaff); err != nil {
		return nil, err
	}
	roleName := strings.ToLower(strings.TrimSpace(req.RoleName))
	if roleName == "" {
		return nil, Validation("role name is required")
	}
	if roleName == ownerRoleName {
		return nil, Validation("the owner role cannot be assigned")
	}
	perms, err := ParsePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, lookup(err, "user", req.Email)
	}

	now := time.Now()
	var member *models.RestaurantMember
	err = s.store.Transaction(ctx, func(tx Store) error {
		role, err := tx.GetRoleByName(ctx, restaurantID, roleName)
		if errors.Is(err, ErrNotFound) {
			if len(perms) == 0 {
				return Validation("new role %s needs at least one permission", roleName)
			}
			role = &models.Role{RestaurantID: restaurantID, Name: roleName, IsActive: true}
			for _, p := range perms {
				role.Permissions = append(role.Permissions, string(p))
			}
			err = tx.CreateRole(ctx, role)
		}
		if err != nil {
			return err
		}

		member, err = tx.GetMember(ctx, restaurantID, user.ID)
		if errors.Is(err, ErrNotFound) {
			member = &models.RestaurantMember{RestaurantID: restaurantID, UserID: user.ID, IsActive: true, JoinedAt: now}
			err = tx.CreateMember(ctx, member)
		}
		if err != nil {
			return err
		}

		err = tx.AssignRole(ctx, &models.UserRole{
			UserID:       user.ID,
			RoleID:       role.ID,
			RestaurantID: restaurantID,
			AssignedAt:   now,
		})
		if errors.Is(err, ErrDuplicate) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "failed to add staff")
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"user_id":       user.ID,
		"role":          roleName,
	}).Info("staff added")
	return member, nil
}
