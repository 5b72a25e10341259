package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

type MenuController struct {
	menu *services.MenuService
	log  *logrus.Logger
}

func NewMenuController(menu *services.MenuService, log *logrus.Logger) *MenuController {
	return &MenuController{menu: menu, log: log}
}

// GetMenu -> public menu of a restaurant, grouped by category
func (mc *MenuController) GetMenu(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	menu, err := mc.menu.ListMenu(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, mc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", menu)
}

func (mc *MenuController) CreateCategory(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Name         string `json:"name" binding:"required"`
		DisplayOrder int    `json:"display_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	category, err := mc.menu.CreateCategory(c.Request.Context(), middlewares.UserID(c), restaurantID, req.Name, req.DisplayOrder)
	if err != nil {
		respondServiceError(c, mc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Category created", category)
}

func (mc *MenuController) CreateMenu(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var input services.MenuItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	item, err := mc.menu.CreateMenuItem(c.Request.Context(), middlewares.UserID(c), restaurantID, input)
	if err != nil {
		respondServiceError(c, mc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Menu item created", item)
}

// UpdateMenu -> price and/or availability; orders already placed keep their snapshot
func (mc *MenuController) UpdateMenu(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	itemID, err := paramID(c, "item_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Price       *float64 `json:"price"`
		IsAvailable *bool    `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if req.Price == nil && req.IsAvailable == nil {
		respondServiceError(c, mc.log, services.Validation("nothing to update"))
		return
	}

	ctx := c.Request.Context()
	staffID := middlewares.UserID(c)
	var updated *models.MenuItem
	if req.Price != nil {
		item, err := mc.menu.UpdateMenuItemPrice(ctx, staffID, restaurantID, itemID, *req.Price)
		if err != nil {
			respondServiceError(c, mc.log, err)
			return
		}
		updated = item
	}
	if req.IsAvailable != nil {
		item, err := mc.menu.SetMenuItemAvailability(ctx, staffID, restaurantID, itemID, *req.IsAvailable)
		if err != nil {
			respondServiceError(c, mc.log, err)
			return
		}
		updated = item
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item updated", updated)
}
