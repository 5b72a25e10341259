package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
)

func TestValidateWorkflowSettings(t *testing.T) {
	tests := []struct {
		name string
		flow []string
		ok   bool
	}{
		{"default", []string{"received", "preparing", "ready", "served", "paid"}, true},
		{"without kitchen", []string{"received", "served", "paid"}, true},
		{"without paid", []string{"received", "ready", "served"}, true},
		{"empty", nil, false},
		{"wrong start", []string{"preparing", "served"}, false},
		{"duplicate", []string{"received", "ready", "ready"}, false},
		{"unknown", []string{"received", "plated"}, false},
		{"cancelled", []string{"received", "cancelled"}, false},
		{"paid in the middle", []string{"received", "paid", "served"}, false},
		{"single status", []string{"received"}, false},
		{"received then paid", []string{"received", "paid"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := services.ValidateWorkflowSettings(models.WorkflowSettings{OrderFlow: tt.flow})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestWorkflowCheckOrder(t *testing.T) {
	wf := services.NewWorkflow(models.DefaultWorkflowSettings())

	noop, err := wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.False(t, noop)

	noop, err = wf.CheckOrder(models.OrderStatusReady, models.OrderStatusReady)
	require.NoError(t, err)
	assert.True(t, noop, "same status is a no-op")

	_, err = wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusReady)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "skip is rejected by default")

	_, err = wf.CheckOrder(models.OrderStatusReady, models.OrderStatusPreparing)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "backwards is rejected")

	_, err = wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusCancelled)
	assert.NoError(t, err)

	_, err = wf.CheckOrder(models.OrderStatusServed, models.OrderStatusCancelled)
	assert.NoError(t, err)

	_, err = wf.CheckOrder(models.OrderStatusPaid, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "paid is terminal")

	_, err = wf.CheckOrder(models.OrderStatusCancelled, models.OrderStatusReceived)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "cancelled is terminal")
}

func TestWorkflowCustomFlow(t *testing.T) {
	wf := services.NewWorkflow(models.WorkflowSettings{
		OrderFlow: []string{"received", "served", "paid"},
	})

	_, err := wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusServed)
	assert.NoError(t, err)

	_, err = wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusPreparing)
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "status outside the flow")

	assert.Equal(t, []models.ItemStatus{models.ItemStatusReceived, models.ItemStatusServed}, wf.ItemFlow())
	assert.True(t, wf.IsItemTerminal(models.ItemStatusServed))
	assert.Equal(t, models.ItemStatusServed, wf.ItemStatusFor(models.OrderStatusPaid))
}

func TestWorkflowTerminalSurvivesFlowEdit(t *testing.T) {
	wf := services.NewWorkflow(models.WorkflowSettings{
		OrderFlow: []string{"received", "preparing", "ready"},
	})

	assert.True(t, wf.IsOrderTerminal(models.OrderStatusPaid))
	assert.True(t, wf.IsOrderTerminal(models.OrderStatusReady))
	assert.False(t, wf.IsOrderTerminal(models.OrderStatusReceived))
	assert.True(t, wf.IsItemTerminal(models.ItemStatusServed))

	_, err := wf.CheckOrder(models.OrderStatusPaid, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = wf.CheckItem(models.ItemStatusServed, models.ItemStatusCancelled)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusCancelled)
	assert.NoError(t, err)
}

func TestWorkflowAllowSkip(t *testing.T) {
	settings := models.DefaultWorkflowSettings()
	settings.AllowSkip = true
	wf := services.NewWorkflow(settings)

	_, err := wf.CheckOrder(models.OrderStatusReceived, models.OrderStatusServed)
	assert.NoError(t, err)
	_, err = wf.CheckItem(models.ItemStatusReceived, models.ItemStatusReady)
	assert.NoError(t, err)
	_, err = wf.CheckItem(models.ItemStatusReady, models.ItemStatusReceived)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestWorkflowAggregate(t *testing.T) {
	wf := services.NewWorkflow(models.DefaultWorkflowSettings())
	items := func(statuses ...models.ItemStatus) []models.OrderItem {
		out := make([]models.OrderItem, len(statuses))
		for i, s := range statuses {
			out[i] = models.OrderItem{Status: s}
		}
		return out
	}

	assert.Equal(t, models.OrderStatusReceived,
		wf.Aggregate(models.OrderStatusReceived, items(models.ItemStatusPreparing, models.ItemStatusReceived)))
	assert.Equal(t, models.OrderStatusPreparing,
		wf.Aggregate(models.OrderStatusReceived, items(models.ItemStatusPreparing, models.ItemStatusReady)))
	assert.Equal(t, models.OrderStatusReady,
		wf.Aggregate(models.OrderStatusReceived, items(models.ItemStatusReady, models.ItemStatusCancelled)),
		"cancelled items are ignored")
	assert.Equal(t, models.OrderStatusCancelled,
		wf.Aggregate(models.OrderStatusPreparing, items(models.ItemStatusCancelled, models.ItemStatusCancelled)))
	assert.Equal(t, models.OrderStatusServed,
		wf.Aggregate(models.OrderStatusServed, items(models.ItemStatusServed)), "never reaches paid")
	assert.Equal(t, models.OrderStatusPaid,
		wf.Aggregate(models.OrderStatusPaid, items(models.ItemStatusCancelled)), "terminal stays")

	lagging := wf.LaggingItems(items(models.ItemStatusReceived, models.ItemStatusReady, models.ItemStatusCancelled), models.OrderStatusReady)
	require.Len(t, lagging, 1)
	assert.Equal(t, models.ItemStatusReceived, lagging[0].Status)
}
