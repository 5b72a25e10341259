package services

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

const maxPrice = 100_000_000

type VariantInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type MenuItemInput struct {
	CategoryID  uint           `json:"category_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	IsVeg       bool           `json:"is_veg"`
	ImagePath   *string        `json:"image_path"`
	Variants    []VariantInput `json:"variants"`
}

type MenuService struct {
	store Store
	authz *Authorizer
	log   *logrus.Logger
}

func NewMenuService(store Store, authz *Authorizer, log *logrus.Logger) *MenuService {
	return &MenuService{store: store, authz: authz, log: log}
}

func (s *MenuService) CreateCategory(ctx context.Context, staffID, restaurantID uint, name string, displayOrder int) (*models.MenuCategory, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageMenu); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, Validation("category name must be 1 to 100 characters")
	}
	category := &models.MenuCategory{
		RestaurantID: restaurantID,
		Name:         name,
		DisplayOrder: displayOrder,
		IsActive:     true,
	}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, wrapStore(err, "failed to create category")
	}
	return category, nil
}

func (s *MenuService) CreateMenuItem(ctx context.Context, staffID, restaurantID uint, input MenuItemInput) (*models.MenuItem, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageMenu); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, Validation("menu item name is required")
	}
	price, err := normalizePrice(input.Price)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCategory(ctx, restaurantID, input.CategoryID); err != nil {
		return nil, lookup(err, "category", input.CategoryID)
	}

	item := &models.MenuItem{
		RestaurantID: restaurantID,
		CategoryID:   input.CategoryID,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Price:        price,
		IsVeg:        input.IsVeg,
		ImagePath:    input.ImagePath,
		IsAvailable:  true,
		IsActive:     true,
		HasVariants:  len(input.Variants) > 0,
	}
	for _, v := range input.Variants {
		variantName := strings.TrimSpace(v.Name)
		if variantName == "" {
			return nil, Validation("variant name is required")
		}
		variantPrice, err := normalizePrice(v.Price)
		if err != nil {
			return nil, err
		}
		item.Variants = append(item.Variants, models.MenuItemVariant{
			Name:     variantName,
			Price:    variantPrice,
			IsActive: true,
		})
	}
	if err := s.store.CreateMenuItem(ctx, item); err != nil {
		return nil, wrapStore(err, "failed to create menu item")
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"menu_item_id":  item.ID,
	}).Info("menu item created")
	return item, nil
}

// UpdateMenuItemPrice changes the price for future orders only.
func (s *MenuService) UpdateMenuItemPrice(ctx context.Context, staffID, restaurantID, itemID uint, price float64) (*models.MenuItem, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageMenu); err != nil {
		return nil, err
	}
	price, err := normalizePrice(price)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, restaurantID, itemID, map[string]interface{}{"price": price})
}

func (s *MenuService) SetMenuItemAvailability(ctx context.Context, staffID, restaurantID, itemID uint, available bool) (*models.MenuItem, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageMenu); err != nil {
		return nil, err
	}
	return s.update(ctx, restaurantID, itemID, map[string]interface{}{"is_available": available})
}

func (s *MenuService) update(ctx context.Context, restaurantID, itemID uint, fields map[string]interface{}) (*models.MenuItem, error) {
	if err := s.store.UpdateMenuItem(ctx, restaurantID, itemID, fields); err != nil {
		return nil, lookup(err, "menu item", itemID)
	}
	item, err := s.store.GetMenuItem(ctx, restaurantID, itemID)
	if err != nil {
		return nil, lookup(err, "menu item", itemID)
	}
	return item, nil
}

// ListMenu returns the active categories with their active items.
func (s *MenuService) ListMenu(ctx context.Context, restaurantID uint) ([]models.MenuCategory, error) {
	if _, err := s.store.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, lookup(err, "restaurant", restaurantID)
	}
	menu, err := s.store.ListMenu(ctx, restaurantID)
	if err != nil {
		return nil, wrapStore(err, "failed to load menu")
	}
	return menu, nil
}

func normalizePrice(price float64) (float64, error) {
	if math.IsNaN(price) || price < 0 || price > maxPrice {
		return 0, Validation("price must be between 0 and %d", maxPrice)
	}
	return math.Round(price*100) / 100, nil
}
