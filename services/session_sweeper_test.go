package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
)

func TestSweepCancelsOnlyUnusedSessions(t *testing.T) {
	f := newFixture(t)
	idle := f.openSession(t, f.table, "idle")
	busy := f.openSession(t, f.newTable(t, 2, 4), "busy")
	f.placeBurgers(t, busy, "busy", 1)

	// a negative timeout puts the cutoff in the future, so both count as old
	sweeper := services.NewSessionSweeper(f.store, f.events, f.log, time.Hour, -time.Hour)
	cancelled, err := sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	got, err := f.store.GetSession(f.ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, got.Status)
	assert.Nil(t, got.EndedBy)

	got, err = f.store.GetSession(f.ctx, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, got.Status)

	// the freed table takes a new session
	f.openSession(t, f.table, "next")
}

func TestSweepLeavesFreshSessions(t *testing.T) {
	f := newFixture(t)
	f.openSession(t, f.table, "fresh")

	sweeper := services.NewSessionSweeper(f.store, f.events, f.log, time.Hour, time.Hour)
	cancelled, err := sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, cancelled)
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.table, "idle")

	sweeper := services.NewSessionSweeper(f.store, f.events, f.log, 10*time.Millisecond, -time.Hour)
	sweeper.Start()
	require.Eventually(t, func() bool {
		got, err := f.store.GetSession(f.ctx, session.ID)
		return err == nil && got.Status == models.SessionStatusCancelled
	}, 2*time.Second, 20*time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()
}
