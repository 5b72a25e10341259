package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

const (
	maxOrderLines    = 50
	maxLineQuantity  = 99
	orderNumberWidth = 6
)

type OrderItemInput struct {
	MenuItemID uint   `json:"menu_item_id"`
	VariantID  *uint  `json:"variant_id,omitempty"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

// OrderService is the ledger of orders placed against table sessions.
type OrderService struct {
	store    Store
	authz    *Authorizer
	notifier Notifier
	log      *logrus.Logger
}

func NewOrderService(store Store, authz *Authorizer, notifier Notifier, log *logrus.Logger) *OrderService {
	return &OrderService{store: store, authz: authz, notifier: notifier, log: log}
}

// FormatOrderNumber renders the per-restaurant sequence shown on tickets.
func FormatOrderNumber(seq int) string {
	return fmt.Sprintf("ORD-%0*d", orderNumberWidth, seq)
}

// PlaceOrder records an order on an active session. A device must be an
// active participant of the session; a staff user needs manage_orders.
// Item names and prices are copied from the menu as they are right now.
func (s *OrderService) PlaceOrder(ctx context.Context, sessionID uint, by Attribution, items []OrderItemInput, notes string) (*models.Order, error) {
	if err := by.validate(); err != nil {
		return nil, err
	}
	if err := validateOrderLines(items); err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	if by.IsStaff() {
		if err := s.authz.Require(ctx, session.RestaurantID, by.StaffID(), PermManageOrders); err != nil {
			return nil, err
		}
	} else {
		ok, err := isActiveParticipant(ctx, s.store, session.ID, by.DeviceID())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, Forbidden("device is not an active participant of session %d", session.ID)
		}
	}
	if !session.IsActive() {
		return nil, &Error{Kind: KindSessionNotActive, Message: "session is " + string(session.Status)}
	}

	var order *models.Order
	for attempt := 0; ; attempt++ {
		order, err = s.insertOrder(ctx, session, by, items, strings.TrimSpace(notes))
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		if attempt >= 1 {
			return nil, &Error{Kind: KindConflict, Message: "order number collided twice", Err: err}
		}
		s.log.WithField("restaurant_id", session.RestaurantID).Warn("order number collision, retrying")
	}

	s.log.WithFields(logrus.Fields{
		"restaurant_id": order.RestaurantID,
		"session_id":    order.TableSessionID,
		"order_id":      order.ID,
		"order_number":  order.OrderNumber,
	}).Info("order placed")
	s.notifier.Publish(Event{
		Type:         EventOrderPlaced,
		RestaurantID: order.RestaurantID,
		SessionID:    order.TableSessionID,
		Data:         order,
	})
	return order, nil
}

func (s *OrderService) insertOrder(ctx context.Context, session *models.TableSession, by Attribution, inputs []OrderItemInput, notes string) (*models.Order, error) {
	order := &models.Order{
		RestaurantID:   session.RestaurantID,
		TableSessionID: session.ID,
		Status:         models.OrderStatusReceived,
		Notes:          notes,
	}
	if by.IsStaff() {
		order.CreatedBy = lo.ToPtr(by.StaffID())
	} else {
		order.CreatedByDeviceID = lo.ToPtr(by.DeviceID())
	}

	err := s.store.Transaction(ctx, func(tx Store) error {
		// serializes with CloseSession on the session row
		if err := touchSession(ctx, tx, session.ID); err != nil {
			return err
		}

		lines, err := snapshotItems(ctx, tx, session.RestaurantID, inputs)
		if err != nil {
			return err
		}
		seq, err := tx.NextOrderSequence(ctx, session.RestaurantID)
		if err != nil {
			return err
		}
		order.ID = 0
		order.Sequence = seq
		order.OrderNumber = FormatOrderNumber(seq)
		order.Items = lines
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, wrapStore(err, "failed to place order")
	}
	return order, nil
}

func validateOrderLines(items []OrderItemInput) error {
	if len(items) == 0 {
		return Validation("order needs at least one item")
	}
	if len(items) > maxOrderLines {
		return Validation("order has more than %d lines", maxOrderLines)
	}
	for i, item := range items {
		if item.MenuItemID == 0 {
			return Validation("item %d: menu_item_id is required", i+1)
		}
		if item.Quantity < 1 || item.Quantity > maxLineQuantity {
			return Validation("item %d: quantity must be between 1 and %d", i+1, maxLineQuantity)
		}
	}
	return nil
}

// snapshotItems copies the current menu name, variant name and price into
// new order lines.
func snapshotItems(ctx context.Context, store Store, restaurantID uint, inputs []OrderItemInput) ([]models.OrderItem, error) {
	lines := make([]models.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		menuItem, err := store.GetMenuItem(ctx, restaurantID, input.MenuItemID)
		if err != nil {
			return nil, lookup(err, "menu item", input.MenuItemID)
		}
		if !menuItem.IsActive || !menuItem.IsAvailable {
			return nil, Validation("%s is not available", menuItem.Name)
		}

		line := models.OrderItem{
			MenuItemID:   menuItem.ID,
			ItemName:     menuItem.Name,
			PriceAtOrder: menuItem.Price,
			Quantity:     input.Quantity,
			Status:       models.ItemStatusReceived,
			Notes:        strings.TrimSpace(input.Notes),
		}
		if input.VariantID != nil {
			variant, found := lo.Find(menuItem.Variants, func(v models.MenuItemVariant) bool {
				return v.ID == *input.VariantID
			})
			if !found {
				return nil, NotFound("variant %d of %s not found", *input.VariantID, menuItem.Name)
			}
			if !variant.IsActive {
				return nil, Validation("variant %s of %s is not available", variant.Name, menuItem.Name)
			}
			line.VariantID = lo.ToPtr(variant.ID)
			line.VariantName = variant.Name
			line.PriceAtOrder = variant.Price
		} else if menuItem.HasVariants {
			return nil, Validation("%s needs a variant", menuItem.Name)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *OrderService) workflowFor(ctx context.Context, restaurantID uint) (*Workflow, *models.Restaurant, error) {
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, nil, lookup(err, "restaurant", restaurantID)
	}
	return NewWorkflow(restaurant.Workflow()), restaurant, nil
}

// UpdateOrderStatus moves an order along the restaurant workflow. Moving an
// order forward brings its lagging items along; cancelling it cancels every
// item that is not finished. A device may only cancel its own order while the
// kitchen has not started on it.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uint, to models.OrderStatus, by Attribution) (*models.Order, error) {
	if err := by.validate(); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookup(err, "order", orderID)
	}
	if err := s.authorizeOrderChange(ctx, order, to, by); err != nil {
		return nil, err
	}
	if err := s.ledgerOpen(ctx, order.TableSessionID); err != nil {
		return nil, err
	}
	wf, _, err := s.workflowFor(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}

	noop, err := wf.CheckOrder(order.Status, to)
	if err != nil {
		return nil, err
	}
	if noop {
		return order, nil
	}

	var lagging []models.OrderItem
	var itemTarget models.ItemStatus
	if to == models.OrderStatusCancelled {
		itemTarget = models.ItemStatusCancelled
		lagging = lo.Filter(order.Items, func(item models.OrderItem, _ int) bool {
			return !wf.IsItemTerminal(item.Status)
		})
	} else {
		itemTarget = wf.ItemStatusFor(to)
		lagging = wf.LaggingItems(order.Items, to)
		if to == models.OrderStatusPaid && len(lagging) > 0 {
			return nil, InvalidTransition("order %s has items not yet %s", order.OrderNumber, itemTarget)
		}
	}

	from := order.Status
	err = s.store.Transaction(ctx, func(tx Store) error {
		if err := touchSession(ctx, tx, order.TableSessionID); err != nil {
			return err
		}
		ok, err := tx.SetOrderStatus(ctx, order.ID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return InvalidTransition("order %s changed concurrently", order.OrderNumber)
		}
		for _, item := range lagging {
			ok, err := tx.SetItemStatus(ctx, item.ID, item.Status, itemTarget)
			if err != nil {
				return err
			}
			if !ok {
				return InvalidTransition("item %d changed concurrently", item.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStore(err, "failed to update order status")
	}

	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookup(err, "order", orderID)
	}
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       to,
	}).Info("order status changed")
	s.notifier.Publish(Event{
		Type:         EventOrderStatus,
		RestaurantID: order.RestaurantID,
		SessionID:    order.TableSessionID,
		Data:         order,
	})
	return order, nil
}

// ledgerOpen rejects changes to orders of a session that has ended; its
// calculated_total is final.
func (s *OrderService) ledgerOpen(ctx context.Context, sessionID uint) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return lookup(err, "session", sessionID)
	}
	if !session.IsActive() {
		return &Error{Kind: KindSessionNotActive, Message: "session is " + string(session.Status)}
	}
	return nil
}

func touchSession(ctx context.Context, tx Store, sessionID uint) error {
	ok, err := tx.TouchActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Kind: KindSessionNotActive, Message: "session is no longer active"}
	}
	return nil
}

func (s *OrderService) authorizeOrderChange(ctx context.Context, order *models.Order, to models.OrderStatus, by Attribution) error {
	if by.IsStaff() {
		return s.authz.Require(ctx, order.RestaurantID, by.StaffID(), PermManageOrders)
	}
	if order.CreatedByDeviceID == nil || *order.CreatedByDeviceID != by.DeviceID() {
		return Forbidden("device did not place order %s", order.OrderNumber)
	}
	ok, err := isActiveParticipant(ctx, s.store, order.TableSessionID, by.DeviceID())
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("device is not an active participant of session %d", order.TableSessionID)
	}
	if to != models.OrderStatusCancelled {
		return Forbidden("a device can only cancel its orders")
	}
	if order.Status != models.OrderStatusReceived && order.Status != models.OrderStatusCancelled {
		return InvalidTransition("order %s is already %s", order.OrderNumber, order.Status)
	}
	return nil
}

// UpdateItemStatus moves one line along the item workflow and lets the order
// follow its least advanced item.
func (s *OrderService) UpdateItemStatus(ctx context.Context, itemID uint, to models.ItemStatus, by Attribution) (*models.Order, error) {
	if err := by.validate(); err != nil {
		return nil, err
	}
	if !by.IsStaff() {
		return nil, Forbidden("only staff can change item status")
	}
	item, err := s.store.GetOrderItem(ctx, itemID)
	if err != nil {
		return nil, lookup(err, "order item", itemID)
	}
	order, err := s.store.GetOrder(ctx, item.OrderID)
	if err != nil {
		return nil, lookup(err, "order", item.OrderID)
	}
	if err := s.authz.Require(ctx, order.RestaurantID, by.StaffID(), PermManageOrders); err != nil {
		return nil, err
	}
	if err := s.ledgerOpen(ctx, order.TableSessionID); err != nil {
		return nil, err
	}
	wf, _, err := s.workflowFor(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}

	noop, err := wf.CheckItem(item.Status, to)
	if err != nil {
		return nil, err
	}
	if noop {
		return order, nil
	}
	if wf.IsOrderTerminal(order.Status) {
		return nil, InvalidTransition("order %s is %s", order.OrderNumber, order.Status)
	}

	from := item.Status
	orderFrom := order.Status
	var orderTo models.OrderStatus
	err = s.store.Transaction(ctx, func(tx Store) error {
		if err := touchSession(ctx, tx, order.TableSessionID); err != nil {
			return err
		}
		ok, err := tx.SetItemStatus(ctx, item.ID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return InvalidTransition("item %d changed concurrently", item.ID)
		}
		current, err := tx.GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		orderTo = wf.Aggregate(current.Status, current.Items)
		if orderTo == current.Status {
			return nil
		}
		ok, err = tx.SetOrderStatus(ctx, current.ID, current.Status, orderTo)
		if err != nil {
			return err
		}
		if !ok {
			return InvalidTransition("order %s changed concurrently", current.OrderNumber)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStore(err, "failed to update item status")
	}

	order, err = s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, lookup(err, "order", item.OrderID)
	}
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"item_id":  item.ID,
		"from":     from,
		"to":       to,
	}).Info("item status changed")
	s.notifier.Publish(Event{
		Type:         EventItemStatus,
		RestaurantID: order.RestaurantID,
		SessionID:    order.TableSessionID,
		Data:         order,
	})
	if orderTo != orderFrom {
		s.notifier.Publish(Event{
			Type:         EventOrderStatus,
			RestaurantID: order.RestaurantID,
			SessionID:    order.TableSessionID,
			Data:         order,
		})
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, by Attribution, orderID uint) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookup(err, "order", orderID)
	}
	session, err := s.store.GetSession(ctx, order.TableSessionID)
	if err != nil {
		return nil, lookup(err, "session", order.TableSessionID)
	}
	if err := canView(ctx, s.store, s.authz, session, by); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ListSessionOrders(ctx context.Context, by Attribution, sessionID uint) ([]models.Order, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	if err := canView(ctx, s.store, s.authz, session, by); err != nil {
		return nil, err
	}
	orders, err := s.store.ListSessionOrders(ctx, sessionID)
	if err != nil {
		return nil, wrapStore(err, "failed to list orders")
	}
	return orders, nil
}

// KitchenQueue lists orders the kitchen still has to work on, oldest first.
func (s *OrderService) KitchenQueue(ctx context.Context, staffID, restaurantID uint) ([]models.Order, error) {
	if err := s.authz.Require(ctx, restaurantID, staffID, PermManageOrders); err != nil {
		return nil, err
	}
	wf, restaurant, err := s.workflowFor(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !restaurant.Workflow().HasKitchenView {
		return nil, Validation("kitchen view is disabled for this restaurant")
	}
	done := wf.ItemFlow()[len(wf.ItemFlow())-1]
	pending := lo.Filter(wf.OrderFlow(), func(status models.OrderStatus, _ int) bool {
		return !wf.IsOrderTerminal(status) && wf.ItemStatusFor(status) != done
	})
	if len(pending) == 0 {
		return []models.Order{}, nil
	}
	orders, err := s.store.ListOrdersByStatus(ctx, restaurantID, pending)
	if err != nil {
		return nil, wrapStore(err, "failed to load kitchen queue")
	}
	return orders, nil
}

