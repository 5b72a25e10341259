package services_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/database"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/repository"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []services.Event
}

func (n *recordingNotifier) Publish(event services.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []services.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]services.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// fixture is a migrated in-memory database with one restaurant, its owner,
// a four-seat table and a small menu.
type fixture struct {
	ctx    context.Context
	log    *logrus.Logger
	store  services.Store
	authz  *services.Authorizer
	events *recordingNotifier

	users        *services.UserService
	restaurants  *services.RestaurantService
	tables       *services.TableService
	menu         *services.MenuService
	participants *services.ParticipantService
	sessions     *services.SessionService
	orders       *services.OrderService

	owner      *models.User
	restaurant *models.Restaurant
	table      *models.Table
	burger     *models.MenuItem
	coffee     *models.MenuItem
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := quietLogger()
	db, err := database.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewGormStore(db)
	authz := services.NewAuthorizer(store)
	events := &recordingNotifier{}
	participants := services.NewParticipantService(store, authz, events, log)

	f := &fixture{
		ctx:          context.Background(),
		log:          log,
		store:        store,
		authz:        authz,
		events:       events,
		users:        services.NewUserService(store, utils.NewTokenManager("test-secret", time.Hour), log),
		restaurants:  services.NewRestaurantService(store, authz, services.NewSaga(log), log),
		tables:       services.NewTableService(store, authz, log),
		menu:         services.NewMenuService(store, authz, log),
		participants: participants,
		sessions:     services.NewSessionService(store, services.DefaultJoinCodeGenerator(), participants, authz, events, log),
		orders:       services.NewOrderService(store, authz, events, log),
	}

	f.owner = f.newUser(t, "owner@example.com")
	f.restaurant, err = f.restaurants.CreateRestaurant(f.ctx, f.owner.ID, "Warung Senja", nil)
	require.NoError(t, err)
	f.table = f.newTable(t, 1, 4)

	category, err := f.menu.CreateCategory(f.ctx, f.owner.ID, f.restaurant.ID, "Mains", 1)
	require.NoError(t, err)
	f.burger, err = f.menu.CreateMenuItem(f.ctx, f.owner.ID, f.restaurant.ID, services.MenuItemInput{
		CategoryID: category.ID,
		Name:       "Burger",
		Price:      12.50,
	})
	require.NoError(t, err)
	f.coffee, err = f.menu.CreateMenuItem(f.ctx, f.owner.ID, f.restaurant.ID, services.MenuItemInput{
		CategoryID: category.ID,
		Name:       "Coffee",
		Price:      3,
		Variants: []services.VariantInput{
			{Name: "Small", Price: 3},
			{Name: "Large", Price: 4.25},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) newUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.users.Register(f.ctx, "User "+email, email, "password123")
	require.NoError(t, err)
	return user
}

func (f *fixture) newTable(t *testing.T, number, capacity int) *models.Table {
	t.Helper()
	table, err := f.tables.CreateTable(f.ctx, f.owner.ID, f.restaurant.ID, number, capacity)
	require.NoError(t, err)
	return table
}

func (f *fixture) openSession(t *testing.T, table *models.Table, host string) *models.TableSession {
	t.Helper()
	session, err := f.sessions.OpenSession(f.ctx, services.OpenSessionRequest{
		RestaurantID: f.restaurant.ID,
		TableID:      table.ID,
		HostDeviceID: host,
		HostName:     "Host",
		PersonsCount: 2,
	})
	require.NoError(t, err)
	return session
}

func (f *fixture) placeBurgers(t *testing.T, session *models.TableSession, device string, qty int) *models.Order {
	t.Helper()
	order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer(device), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: qty},
	}, "")
	require.NoError(t, err)
	return order
}

func (f *fixture) staffWith(t *testing.T, email string, perms ...services.Permission) *models.User {
	t.Helper()
	user := f.newUser(t, email)
	raw := make([]string, len(perms))
	for i, p := range perms {
		raw[i] = string(p)
	}
	_, err := f.restaurants.AddStaff(f.ctx, f.owner.ID, f.restaurant.ID, services.AddStaffRequest{
		Email:       email,
		RoleName:    fmt.Sprintf("role-%s", email),
		Permissions: raw,
	})
	require.NoError(t, err)
	return user
}
