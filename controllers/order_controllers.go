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

type OrderController struct {
	orders *services.OrderService
	log    *logrus.Logger
}

func NewOrderController(orders *services.OrderService, log *logrus.Logger) *OrderController {
	return &OrderController{orders: orders, log: log}
}

// CreateOrder -> a participant device (or staff) orders for the session
func (oc *OrderController) CreateOrder(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Items []services.OrderItemInput `json:"items" binding:"required"`
		Notes string                    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := oc.orders.PlaceOrder(c.Request.Context(), sessionID, actor(c), req.Items, req.Notes)
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

func (oc *OrderController) GetSessionOrders(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	orders, err := oc.orders.ListSessionOrders(c.Request.Context(), actor(c), sessionID)
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), actor(c), orderID)
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus -> staff moves the order along the workflow
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := oc.orders.UpdateOrderStatus(c.Request.Context(), orderID, req.Status, actor(c))
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// CancelOrder -> the device that placed the order withdraws it before cooking starts
func (oc *OrderController) CancelOrder(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	order, err := oc.orders.UpdateOrderStatus(c.Request.Context(), orderID, models.OrderStatusCancelled, actor(c))
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

// UpdateItemStatus -> kitchen progress on a single line
func (oc *OrderController) UpdateItemStatus(c *gin.Context) {
	itemID, err := paramID(c, "item_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		Status models.ItemStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := oc.orders.UpdateItemStatus(c.Request.Context(), itemID, req.Status, actor(c))
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item status updated", order)
}

// GetKitchenDisplay -> open orders oldest first
func (oc *OrderController) GetKitchenDisplay(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	orders, err := oc.orders.KitchenQueue(c.Request.Context(), middlewares.UserID(c), restaurantID)
	if err != nil {
		respondServiceError(c, oc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen queue", orders)
}
