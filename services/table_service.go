package services

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

const maxTableCapacity = 50

// TableView is a table plus whether an active session sits on it.
type TableView struct {
	models.Table
	Occupied        bool  `json:"occupied"`
	ActiveSessionID *uint `json:"active_session_id,omitempty"`
}

type TableService struct {
	store Store
	authz *Authorizer
	log   *logrus.Logger
}

func NewTableService(store Store, authz *Authorizer, log *logrus.Logger) *TableService {
	return &TableService{store: store, authz: authz, log: log}
}

func (s *TableService) CreateTable(ctx context.Context, staffID, restaurantID uint, number, capacity int) (*models.Table, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageTables); err != nil {
		return nil, err
	}
	if number < 1 {
		return nil, Validation("table number must be positive")
	}
	if capacity < 1 || capacity > maxTableCapacity {
		return nil, Validation("capacity must be between 1 and %d", maxTableCapacity)
	}

	table := &models.Table{
		RestaurantID: restaurantID,
		TableNumber:  number,
		Capacity:     capacity,
		IsActive:     true,
	}
	if err := s.store.CreateTable(ctx, table); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &Error{Kind: KindConflict, Message: "table number already exists", Err: err}
		}
		return nil, wrapStore(err, "failed to create table")
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"table_id":      table.ID,
		"table_number":  number,
	}).Info("table created")
	return table, nil
}

// SetTableActive enables or disables a table. A disabled table keeps any
// session already running on it but cannot get a new one.
func (s *TableService) SetTableActive(ctx context.Context, staffID, restaurantID, tableID uint, active bool) (*models.Table, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageTables); err != nil {
		return nil, err
	}
	if err := s.store.SetTableActive(ctx, restaurantID, tableID, active); err != nil {
		return nil, lookup(err, "table", tableID)
	}
	table, err := s.store.GetTable(ctx, restaurantID, tableID)
	if err != nil {
		return nil, lookup(err, "table", tableID)
	}
	return table, nil
}

func (s *TableService) ListTables(ctx context.Context, staffID, restaurantID uint) ([]TableView, error) {
	if err := s.authz.RequireMember(ctx, restaurantID, staffID); err != nil {
		return nil, err
	}
	tables, err := s.store.ListTables(ctx, restaurantID)
	if err != nil {
		return nil, wrapStore(err, "failed to list tables")
	}
	sessions, err := s.store.ListActiveSessions(ctx, restaurantID)
	if err != nil {
		return nil, wrapStore(err, "failed to list sessions")
	}
	byTable := lo.KeyBy(sessions, func(session models.TableSession) uint {
		return session.TableID
	})
	return lo.Map(tables, func(table models.Table, _ int) TableView {
		view := TableView{Table: table}
		if session, ok := byTable[table.ID]; ok {
			view.Occupied = true
			view.ActiveSessionID = lo.ToPtr(session.ID)
		}
		return view
	}), nil
}
