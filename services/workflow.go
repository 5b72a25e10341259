package services

import (
	"github.com/samber/lo"
	"github.com/yeremiapane/table-ordering/models"
)

var knownOrderStatuses = []models.OrderStatus{
	models.OrderStatusReceived,
	models.OrderStatusPreparing,
	models.OrderStatusReady,
	models.OrderStatusServed,
	models.OrderStatusPaid,
}

// ValidateWorkflowSettings checks a restaurant's declared order flow.
func ValidateWorkflowSettings(settings models.WorkflowSettings) error {
	flow := settings.OrderFlow
	if len(flow) == 0 {
		return Validation("order_flow must not be empty")
	}
	if flow[0] != string(models.OrderStatusReceived) {
		return Validation("order_flow must start with %q", models.OrderStatusReceived)
	}
	if dups := lo.FindDuplicates(flow); len(dups) > 0 {
		return Validation("order_flow repeats %v", dups)
	}
	if kitchen := lo.Without(flow, string(models.OrderStatusPaid)); len(kitchen) < 2 {
		return Validation("order_flow needs at least two statuses besides %q", models.OrderStatusPaid)
	}
	for i, status := range flow {
		if status == string(models.OrderStatusCancelled) {
			return Validation("order_flow must not contain %q", models.OrderStatusCancelled)
		}
		if !lo.Contains(knownOrderStatuses, models.OrderStatus(status)) {
			return Validation("unknown status %q in order_flow", status)
		}
		if status == string(models.OrderStatusPaid) && i != len(flow)-1 {
			return Validation("%q must be the last status of order_flow", models.OrderStatusPaid)
		}
	}
	return nil
}

// Workflow enforces a restaurant's order and item lifecycle.
//
// Items follow the order flow without "paid". An order is never ahead of the
// least advanced of its non-cancelled items.
type Workflow struct {
	orderFlow []models.OrderStatus
	itemFlow  []models.ItemStatus
	allowSkip bool
}

func NewWorkflow(settings models.WorkflowSettings) *Workflow {
	if len(settings.OrderFlow) == 0 {
		settings.OrderFlow = models.DefaultWorkflowSettings().OrderFlow
	}
	orderFlow := lo.Map(settings.OrderFlow, func(s string, _ int) models.OrderStatus {
		return models.OrderStatus(s)
	})
	itemFlow := lo.FilterMap(settings.OrderFlow, func(s string, _ int) (models.ItemStatus, bool) {
		return models.ItemStatus(s), s != string(models.OrderStatusPaid)
	})
	return &Workflow{orderFlow: orderFlow, itemFlow: itemFlow, allowSkip: settings.AllowSkip}
}

func (w *Workflow) OrderFlow() []models.OrderStatus {
	return w.orderFlow
}

func (w *Workflow) ItemFlow() []models.ItemStatus {
	return w.itemFlow
}

// IsOrderTerminal reports whether an order can no longer change. Paid and
// cancelled stay terminal even if a later flow edit drops them.
func (w *Workflow) IsOrderTerminal(status models.OrderStatus) bool {
	switch status {
	case models.OrderStatusCancelled, models.OrderStatusPaid:
		return true
	}
	return status == w.orderFlow[len(w.orderFlow)-1]
}

func (w *Workflow) IsItemTerminal(status models.ItemStatus) bool {
	switch status {
	case models.ItemStatusCancelled, models.ItemStatusServed:
		return true
	}
	return status == w.itemFlow[len(w.itemFlow)-1]
}

// CheckOrder validates an order moving from -> to. A same-status update is a
// no-op and reports noop=true.
func (w *Workflow) CheckOrder(from, to models.OrderStatus) (noop bool, err error) {
	return checkStep(w.orderFlow, w.allowSkip, from, to, models.OrderStatusCancelled, w.IsOrderTerminal(from))
}

// CheckItem validates an item moving from -> to.
func (w *Workflow) CheckItem(from, to models.ItemStatus) (noop bool, err error) {
	return checkStep(w.itemFlow, w.allowSkip, from, to, models.ItemStatusCancelled, w.IsItemTerminal(from))
}

func checkStep[S ~string](flow []S, allowSkip bool, from, to, cancelled S, terminal bool) (bool, error) {
	if from == to {
		return true, nil
	}
	if terminal {
		return false, InvalidTransition("status %q is terminal", from)
	}
	if to == cancelled {
		return false, nil
	}
	toRank := lo.IndexOf(flow, to)
	if toRank < 0 {
		return false, InvalidTransition("status %q is not part of the workflow", to)
	}
	fromRank := lo.IndexOf(flow, from)
	if fromRank < 0 {
		return false, InvalidTransition("current status %q is not part of the workflow", from)
	}
	if toRank < fromRank {
		return false, InvalidTransition("cannot move back from %q to %q", from, to)
	}
	if !allowSkip && toRank != fromRank+1 {
		return false, InvalidTransition("cannot skip from %q to %q", from, to)
	}
	return false, nil
}

// ItemStatusFor maps an order status onto the item flow: the same status
// when items share it, otherwise the last item status ("paid" means every
// item was served).
func (w *Workflow) ItemStatusFor(status models.OrderStatus) models.ItemStatus {
	if lo.Contains(w.itemFlow, models.ItemStatus(status)) {
		return models.ItemStatus(status)
	}
	return w.itemFlow[len(w.itemFlow)-1]
}

func (w *Workflow) itemRank(status models.ItemStatus) int {
	return lo.IndexOf(w.itemFlow, status)
}

// LaggingItems returns the non-cancelled items that sit behind the item
// status matching an order status.
func (w *Workflow) LaggingItems(items []models.OrderItem, status models.OrderStatus) []models.OrderItem {
	target := w.itemRank(w.ItemStatusFor(status))
	return lo.Filter(items, func(item models.OrderItem, _ int) bool {
		return item.Status != models.ItemStatusCancelled && w.itemRank(item.Status) < target
	})
}

// Aggregate returns the status an order should hold after its items changed.
// All items cancelled cancels the order; otherwise the order advances to the
// least advanced item status but never moves back and never becomes "paid".
func (w *Workflow) Aggregate(current models.OrderStatus, items []models.OrderItem) models.OrderStatus {
	if w.IsOrderTerminal(current) {
		return current
	}
	live := lo.Filter(items, func(item models.OrderItem, _ int) bool {
		return item.Status != models.ItemStatusCancelled
	})
	if len(live) == 0 {
		return models.OrderStatusCancelled
	}
	minRank := lo.Min(lo.Map(live, func(item models.OrderItem, _ int) int {
		return w.itemRank(item.Status)
	}))
	if minRank < 0 {
		return current
	}
	if minRank > w.itemRank(w.ItemStatusFor(current)) {
		return models.OrderStatus(w.itemFlow[minRank])
	}
	return current
}
