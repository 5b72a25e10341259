package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
)

// raceScript tells a racingStore which writes lose to a concurrent writer.
// Counters are shared between the store and the stores it hands to
// transactions.
type raceScript struct {
	sessionDups     int
	orderDups       int
	participantDups int
	// tableTaken makes the table look occupied once a session insert lost.
	tableTaken bool

	sessionCreates     int
	orderCreates       int
	participantCreates int
}

// racingStore reports ErrDuplicate on scripted inserts, as a unique index
// does when another request commits the same key first.
type racingStore struct {
	services.Store
	script *raceScript
}

func (r *racingStore) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	return r.Store.Transaction(ctx, func(tx services.Store) error {
		return fn(&racingStore{Store: tx, script: r.script})
	})
}

func (r *racingStore) CreateSession(ctx context.Context, session *models.TableSession) error {
	r.script.sessionCreates++
	if r.script.sessionDups > 0 {
		r.script.sessionDups--
		return services.ErrDuplicate
	}
	return r.Store.CreateSession(ctx, session)
}

func (r *racingStore) GetActiveSessionByTable(ctx context.Context, tableID uint) (*models.TableSession, error) {
	if r.script.tableTaken && r.script.sessionCreates > 0 {
		return &models.TableSession{ID: 9999, TableID: tableID, Status: models.SessionStatusActive}, nil
	}
	return r.Store.GetActiveSessionByTable(ctx, tableID)
}

func (r *racingStore) CreateOrder(ctx context.Context, order *models.Order) error {
	r.script.orderCreates++
	if r.script.orderDups > 0 {
		r.script.orderDups--
		return services.ErrDuplicate
	}
	return r.Store.CreateOrder(ctx, order)
}

// CreateParticipant lets the competing request win: the row is written,
// then this insert reports the collision.
func (r *racingStore) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	r.script.participantCreates++
	if r.script.participantDups > 0 {
		r.script.participantDups--
		winner := *participant
		if err := r.Store.CreateParticipant(ctx, &winner); err != nil {
			return err
		}
		return services.ErrDuplicate
	}
	return r.Store.CreateParticipant(ctx, participant)
}

func (f *fixture) racing(script *raceScript) (*services.SessionService, *services.OrderService) {
	store := &racingStore{Store: f.store, script: script}
	participants := services.NewParticipantService(store, f.authz, f.events, f.log)
	sessions := services.NewSessionService(store, services.DefaultJoinCodeGenerator(), participants, f.authz, f.events, f.log)
	return sessions, services.NewOrderService(store, f.authz, f.events, f.log)
}

func (f *fixture) openRequest(host string) services.OpenSessionRequest {
	return services.OpenSessionRequest{
		RestaurantID: f.restaurant.ID,
		TableID:      f.table.ID,
		HostDeviceID: host,
		PersonsCount: 2,
	}
}

func TestOpenSessionRegeneratesCodeOnce(t *testing.T) {
	f := newFixture(t)
	script := &raceScript{sessionDups: 1}
	sessions, _ := f.racing(script)

	session, err := sessions.OpenSession(f.ctx, f.openRequest("host"))
	require.NoError(t, err)
	assert.Equal(t, 2, script.sessionCreates)
	assert.Equal(t, models.SessionStatusActive, session.Status)
	require.Len(t, session.Participants, 1)
	assert.Equal(t, "host", session.Participants[0].DeviceID)
}

func TestOpenSessionGivesUpAfterSecondCollision(t *testing.T) {
	f := newFixture(t)
	script := &raceScript{sessionDups: 2}
	sessions, _ := f.racing(script)

	_, err := sessions.OpenSession(f.ctx, f.openRequest("host"))
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, 2, script.sessionCreates)

	_, err = f.store.GetActiveSessionByTable(f.ctx, f.table.ID)
	assert.ErrorIs(t, err, services.ErrNotFound, "nothing left behind")
	f.openSession(t, f.table, "host")
}

func TestOpenSessionLosesTableAtInsert(t *testing.T) {
	f := newFixture(t)
	script := &raceScript{sessionDups: 1, tableTaken: true}
	sessions, _ := f.racing(script)

	_, err := sessions.OpenSession(f.ctx, f.openRequest("host"))
	assert.ErrorIs(t, err, services.ErrTableUnavailable)
	assert.Equal(t, 1, script.sessionCreates, "no retry once the table is taken")
}

func TestPlaceOrderRetriesOnce(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")
	burgers := []services.OrderItemInput{{MenuItemID: f.burger.ID, Quantity: 1}}

	script := &raceScript{orderDups: 1}
	_, orders := f.racing(script)
	order, err := orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), burgers, "")
	require.NoError(t, err)
	assert.Equal(t, 2, script.orderCreates)
	assert.NotEmpty(t, order.OrderNumber)

	script = &raceScript{orderDups: 2}
	_, orders = f.racing(script)
	_, err = orders.PlaceOrder(f.ctx, session.ID, services.Customer("host"), burgers, "")
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, 2, script.orderCreates)

	placed, err := f.orders.ListSessionOrders(f.ctx, services.Customer("host"), session.ID)
	require.NoError(t, err)
	assert.Len(t, placed, 1, "the failed attempts left no order")
}

func TestConcurrentJoinReturnsExistingParticipant(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "host")

	script := &raceScript{participantDups: 1}
	sessions, _ := f.racing(script)
	result, err := sessions.JoinSession(f.ctx, f.restaurant.ID, session.JoinCode, "guest", "Guest")
	require.NoError(t, err)
	assert.Equal(t, 1, script.participantCreates)
	assert.True(t, result.Rejoined)
	assert.Equal(t, models.ParticipantStatusActive, result.Participant.Status)

	stored, err := f.store.GetParticipant(f.ctx, session.ID, "guest")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, result.Participant.ID)

	participants, err := f.participants.ListParticipants(f.ctx, services.Staff(f.owner.ID), session.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}
