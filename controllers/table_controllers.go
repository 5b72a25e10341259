package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

type TableController struct {
	tables *services.TableService
	log    *logrus.Logger
}

func NewTableController(tables *services.TableService, log *logrus.Logger) *TableController {
	return &TableController{tables: tables, log: log}
}

// CreateTable -> menambahkan meja baru
func (tc *TableController) CreateTable(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		TableNumber int `json:"table_number" binding:"required"`
		Capacity    int `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	table, err := tc.tables.CreateTable(c.Request.Context(), middlewares.UserID(c), restaurantID, req.TableNumber, req.Capacity)
	if err != nil {
		respondServiceError(c, tc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> tables with their occupancy
func (tc *TableController) GetAllTables(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	tables, err := tc.tables.ListTables(c.Request.Context(), middlewares.UserID(c), restaurantID)
	if err != nil {
		respondServiceError(c, tc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateTableStatus -> enable or disable a table
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	tableID, err := paramID(c, "table_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var body struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}

	table, err := tc.tables.SetTableActive(c.Request.Context(), middlewares.UserID(c), restaurantID, tableID, *body.IsActive)
	if err != nil {
		respondServiceError(c, tc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}
