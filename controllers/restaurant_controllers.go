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

type RestaurantController struct {
	restaurants *services.RestaurantService
	log         *logrus.Logger
}

func NewRestaurantController(restaurants *services.RestaurantService, log *logrus.Logger) *RestaurantController {
	return &RestaurantController{restaurants: restaurants, log: log}
}

// CreateRestaurant -> the caller becomes the owner
func (rc *RestaurantController) CreateRestaurant(c *gin.Context) {
	var req struct {
		Name     string                   `json:"name" binding:"required"`
		Workflow *models.WorkflowSettings `json:"workflow_settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	restaurant, err := rc.restaurants.CreateRestaurant(c.Request.Context(), middlewares.UserID(c), req.Name, req.Workflow)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Restaurant created", restaurant)
}

func (rc *RestaurantController) ListRestaurants(c *gin.Context) {
	restaurants, err := rc.restaurants.ListRestaurants(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of restaurants", restaurants)
}

func (rc *RestaurantController) GetRestaurant(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	restaurant, err := rc.restaurants.GetRestaurant(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant detail", restaurant)
}

// UpdateWorkflow -> replaces the status flow of a restaurant
func (rc *RestaurantController) UpdateWorkflow(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var settings models.WorkflowSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		respondBadRequest(c, err)
		return
	}

	restaurant, err := rc.restaurants.UpdateWorkflow(c.Request.Context(), middlewares.UserID(c), restaurantID, settings)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Workflow updated", restaurant)
}

// AddStaff -> links a registered user to the restaurant with a role
func (rc *RestaurantController) AddStaff(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Email       string   `json:"email" binding:"required"`
		Role        string   `json:"role" binding:"required"`
		Permissions []string `json:"permissions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	member, err := rc.restaurants.AddStaff(c.Request.Context(), middlewares.UserID(c), restaurantID, services.AddStaffRequest{
		Email:       req.Email,
		RoleName:    req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Staff added", member)
}
