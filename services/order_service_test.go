package services_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
)

func TestPlaceOrderSnapshotsMenu(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")

	order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: 2, Notes: " no onion "},
		{MenuItemID: f.coffee.ID, VariantID: &f.coffee.Variants[0].ID, Quantity: 1},
	}, "birthday")
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", order.OrderNumber)
	assert.Equal(t, models.OrderStatusReceived, order.Status)
	require.NotNil(t, order.CreatedByDeviceID)
	assert.Equal(t, "host", *order.CreatedByDeviceID)
	assert.Nil(t, order.CreatedBy)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Burger", order.Items[0].ItemName)
	assert.Equal(t, 12.50, order.Items[0].PriceAtOrder)
	assert.Equal(t, "no onion", order.Items[0].Notes)
	assert.Equal(t, "Small", order.Items[1].VariantName)
	assert.Equal(t, 3.0, order.Items[1].PriceAtOrder)

	_, err = f.menu.UpdateMenuItemPrice(f.ctx, f.owner.ID, f.restaurant.ID, f.burger.ID, 20)
	require.NoError(t, err)

	stored, err := f.orders.GetOrder(f.ctx, services.Customer("host"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.50, stored.Items[0].PriceAtOrder, "menu price changes do not touch placed orders")
	assert.InDelta(t, 28.0, stored.Subtotal(), 0.001)
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	burger := []services.OrderItemInput{{MenuItemID: f.burger.ID, Quantity: 1}}

	t.Run("not a participant", func(t *testing.T) {
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("stranger"), burger, "")
		assert.ErrorIs(t, err, services.ErrForbidden)
	})

	t.Run("left participant", func(t *testing.T) {
		_, err := f.sessions.JoinSession(f.ctx, f.restaurant.ID, session.JoinCode, "leaver", "")
		require.NoError(t, err)
		_, err = f.participants.LeaveSession(f.ctx, session.ID, "leaver")
		require.NoError(t, err)
		_, err = f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("leaver"), burger, "")
		assert.ErrorIs(t, err, services.ErrForbidden)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), nil, "")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("bad quantity", func(t *testing.T) {
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
			{MenuItemID: f.burger.ID, Quantity: 0},
		}, "")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
			{MenuItemID: 999, Quantity: 1},
		}, "")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("variant required", func(t *testing.T) {
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
			{MenuItemID: f.coffee.ID, Quantity: 1},
		}, "")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("unavailable item", func(t *testing.T) {
		_, err := f.menu.SetMenuItemAvailability(f.ctx, f.owner.ID, f.restaurant.ID, f.burger.ID, false)
		require.NoError(t, err)
		defer f.menu.SetMenuItemAvailability(f.ctx, f.owner.ID, f.restaurant.ID, f.burger.ID, true)

		_, err = f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), burger, "")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("staff without permission", func(t *testing.T) {
		cook := f.staffWith(t, "menu@example.com", services.PermManageMenu)
		_, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Staff(cook.ID), burger, "")
		assert.ErrorIs(t, err, services.ErrForbidden)
	})

	t.Run("closed session", func(t *testing.T) {
		_, err := f.sessions.CloseSession(f.ctx, session.ID, f.owner.ID)
		require.NoError(t, err)
		_, err = f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), burger, "")
		assert.ErrorIs(t, err, services.ErrSessionNotActive)
		_, err = f.orders.PlaceOrder(f.ctx, session.ID, services.Staff(f.owner.ID), burger, "")
		assert.ErrorIs(t, err, services.ErrSessionNotActive)
	})
}

func TestStaffPlacesOrder(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")

	order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Staff(f.owner.ID), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: 1},
	}, "")
	require.NoError(t, err)
	require.NotNil(t, order.CreatedBy)
	assert.Equal(t, f.owner.ID, *order.CreatedBy)
	assert.Nil(t, order.CreatedByDeviceID)
}

func TestOrderNumbersAreUniquePerRestaurant(t *testing.T) {
	f := newFixture(t)
	first := f.openSession(t, f.table, "a")
	second := f.openSession(t, f.newTable(t, 2, 4), "b")

	const perSession = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := map[string]bool{}
	for i := 0; i < perSession; i++ {
		for _, s := range []struct {
			session *models.TableSession
			device  string
		}{{first, "a"}, {second, "b"}} {
			wg.Add(1)
			go func(session *models.TableSession, device string) {
				defer wg.Done()
				order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer(device), []services.OrderItemInput{
					{MenuItemID: f.burger.ID, Quantity: 1},
				}, "")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, numbers[order.OrderNumber], "duplicate %s", order.OrderNumber)
				numbers[order.OrderNumber] = true
			}(s.session, s.device)
		}
	}
	wg.Wait()
	assert.Len(t, numbers, 2*perSession)
}

func TestOrderStatusFollowsWorkflow(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	order := f.placeBurgers(t, session, "host", 1)
	staff := services.Staff(f.owner.ID)

	_, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusReady, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "skipping preparing")

	for _, next := range []models.OrderStatus{
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusServed,
	} {
		order, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, next, staff)
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
		assert.Equal(t, models.ItemStatus(next), order.Items[0].Status, "items follow the order")
	}

	same, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusServed, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServed, same.Status)

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusReady, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "no going back")

	paid, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPaid, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.Equal(t, models.ItemStatusServed, paid.Items[0].Status)

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCancelled, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "paid is final")
}

func TestCustomerCancelsOwnOrder(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	_, err := f.sessions.JoinSession(f.ctx, f.restaurant.ID, session.JoinCode, "guest", "")
	require.NoError(t, err)

	order := f.placeBurgers(t, session, "host", 1)

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCancelled, services.Customer("guest"))
	assert.ErrorIs(t, err, services.ErrForbidden, "not the device that ordered")

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPreparing, services.Customer("host"))
	assert.ErrorIs(t, err, services.ErrForbidden, "devices only cancel")

	cancelled, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCancelled, services.Customer("host"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, models.ItemStatusCancelled, cancelled.Items[0].Status)
	assert.Zero(t, cancelled.Subtotal())

	started := f.placeBurgers(t, session, "host", 1)
	_, err = f.orders.UpdateOrderStatus(f.ctx, started.ID, models.OrderStatusPreparing, services.Staff(f.owner.ID))
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(f.ctx, started.ID, models.OrderStatusCancelled, services.Customer("host"))
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "kitchen already started")
}

func TestItemStatusDrivesOrder(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: 1},
		{MenuItemID: f.coffee.ID, VariantID: &f.coffee.Variants[0].ID, Quantity: 1},
	}, "")
	require.NoError(t, err)
	staff := services.Staff(f.owner.ID)
	burgerLine, coffeeLine := order.Items[0].ID, order.Items[1].ID

	_, err = f.orders.UpdateItemStatus(f.ctx, burgerLine, models.ItemStatusPreparing, services.Customer("host"))
	assert.ErrorIs(t, err, services.ErrForbidden, "devices do not touch items")

	order, err = f.orders.UpdateItemStatus(f.ctx, burgerLine, models.ItemStatusPreparing, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, order.Status, "coffee is still received")

	order, err = f.orders.UpdateItemStatus(f.ctx, coffeeLine, models.ItemStatusPreparing, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)

	order, err = f.orders.UpdateItemStatus(f.ctx, burgerLine, models.ItemStatusReady, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)

	order, err = f.orders.UpdateItemStatus(f.ctx, coffeeLine, models.ItemStatusCancelled, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, order.Status, "cancelled lines do not hold the order back")

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPaid, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "cannot skip served")

	order, err = f.orders.UpdateItemStatus(f.ctx, burgerLine, models.ItemStatusServed, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServed, order.Status)
	assert.InDelta(t, 12.50, order.Subtotal(), 0.001)

	order, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPaid, staff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	assert.Contains(t, f.events.types(), services.EventItemStatus)
	assert.Contains(t, f.events.types(), services.EventOrderStatus)
}

func TestCancellingEveryItemCancelsOrder(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	order := f.placeBurgers(t, session, "host", 2)

	updated, err := f.orders.UpdateItemStatus(f.ctx, order.Items[0].ID, models.ItemStatusCancelled, services.Staff(f.owner.ID))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
}

func TestPaidNeedsServedItemsWithSkipFlow(t *testing.T) {
	f := newFixture(t)
	settings := models.DefaultWorkflowSettings()
	settings.AllowSkip = true
	_, err := f.restaurants.UpdateWorkflow(f.ctx, f.owner.ID, f.restaurant.ID, settings)
	require.NoError(t, err)

	session := f.openSession(t, f.table, "host")
	order, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: 1},
	}, "")
	require.NoError(t, err)

	order, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusReady, services.Staff(f.owner.ID))
	require.NoError(t, err, "skip allowed")
	assert.Equal(t, models.ItemStatusReady, order.Items[0].Status)

	paid, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPaid, services.Staff(f.owner.ID))
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Nil(t, paid)
}

func TestKitchenQueue(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	first := f.placeBurgers(t, session, "host", 1)
	second := f.placeBurgers(t, session, "host", 1)
	staff := services.Staff(f.owner.ID)

	for _, next := range []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusServed} {
		_, err := f.orders.UpdateOrderStatus(f.ctx, first.ID, next, staff)
		require.NoError(t, err)
	}

	queue, err := f.orders.KitchenQueue(f.ctx, f.owner.ID, f.restaurant.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, second.ID, queue[0].ID)

	settings := models.DefaultWorkflowSettings()
	settings.HasKitchenView = false
	_, err = f.restaurants.UpdateWorkflow(f.ctx, f.owner.ID, f.restaurant.ID, settings)
	require.NoError(t, err)
	_, err = f.orders.KitchenQueue(f.ctx, f.owner.ID, f.restaurant.ID)
	assert.ErrorIs(t, err, services.ErrValidation)
}

// A diner's whole visit: open, friend joins, both order, kitchen works
// through it, bill is settled and the table frees up.
func TestTableVisitEndToEnd(t *testing.T) {
	f := newFixture(t)
	staff := services.Staff(f.owner.ID)

	session := f.openSession(t, f.table, "alice")
	joined, err := f.sessions.JoinSession(f.ctx, f.restaurant.ID, session.JoinCode, "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, session.ID, joined.Session.ID)

	aliceOrder := f.placeBurgers(t, session, "alice", 1)
	bobOrder, err := f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("bob"), []services.OrderItemInput{
		{MenuItemID: f.coffee.ID, VariantID: &f.coffee.Variants[1].ID, Quantity: 2},
	}, "")
	require.NoError(t, err)

	for _, order := range []*models.Order{aliceOrder, bobOrder} {
		for _, next := range []models.OrderStatus{
			models.OrderStatusPreparing,
			models.OrderStatusReady,
			models.OrderStatusServed,
			models.OrderStatusPaid,
		} {
			_, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, next, staff)
			require.NoError(t, err)
		}
	}

	orders, err := f.orders.ListSessionOrders(f.ctx, services.Customer("bob"), session.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	closed, err := f.sessions.CloseSession(f.ctx, session.ID, f.owner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 12.50+2*4.25, closed.CalculatedTotal, 0.001)

	_, err = f.orders.PlaceOrder(f.ctx, session.ID, services.Customer("alice"), []services.OrderItemInput{
		{MenuItemID: f.burger.ID, Quantity: 1},
	}, "")
	assert.ErrorIs(t, err, services.ErrSessionNotActive)

	f.openSession(t, f.table, "carol")
}

func TestEndedSessionFreezesLedger(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	order := f.placeBurgers(t, session, "host", 2)
	staff := services.Staff(f.owner.ID)

	closed, err := f.sessions.CloseSession(f.ctx, session.ID, f.owner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, closed.CalculatedTotal, 0.001)

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCancelled, staff)
	assert.ErrorIs(t, err, services.ErrSessionNotActive)
	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusPreparing, staff)
	assert.ErrorIs(t, err, services.ErrSessionNotActive)
	_, err = f.orders.UpdateItemStatus(f.ctx, order.Items[0].ID, models.ItemStatusCancelled, staff)
	assert.ErrorIs(t, err, services.ErrSessionNotActive)

	orders, err := f.orders.ListSessionOrders(f.ctx, staff, session.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusReceived, orders[0].Status)
	assert.InDelta(t, closed.CalculatedTotal, services.SessionTotal(orders), 0.001)
}

func TestPaidOrderStaysPaidAfterFlowEdit(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	order := f.placeBurgers(t, session, "host", 1)
	staff := services.Staff(f.owner.ID)

	for _, next := range []models.OrderStatus{
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusServed,
		models.OrderStatusPaid,
	} {
		_, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, next, staff)
		require.NoError(t, err)
	}

	_, err := f.restaurants.UpdateWorkflow(f.ctx, f.owner.ID, f.restaurant.ID, models.WorkflowSettings{
		HasKitchenView: true,
		OrderFlow:      []string{"received", "preparing", "ready", "served"},
	})
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCancelled, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = f.orders.UpdateItemStatus(f.ctx, order.Items[0].ID, models.ItemStatusCancelled, staff)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	current, err := f.orders.GetOrder(f.ctx, staff, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, current.Status)
}
