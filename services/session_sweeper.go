package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

const sweepBatchSize = 100

// SessionSweeper cancels sessions that were opened but never ordered from
// within the idle timeout, freeing tables left behind by diners.
type SessionSweeper struct {
	store       Store
	notifier    Notifier
	log         *logrus.Logger
	interval    time.Duration
	idleTimeout time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSessionSweeper(store Store, notifier Notifier, log *logrus.Logger, interval, idleTimeout time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:       store,
		notifier:    notifier,
		log:         log,
		interval:    interval,
		idleTimeout: idleTimeout,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (sw *SessionSweeper) Start() {
	go func() {
		defer close(sw.done)
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := sw.Sweep(context.Background()); err != nil {
					sw.log.WithError(err).Error("idle session sweep failed")
				}
			case <-sw.stopChan:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for a sweep in progress to finish.
func (sw *SessionSweeper) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.stopChan)
	})
	<-sw.done
}

// Sweep runs one pass and returns the number of sessions cancelled.
func (sw *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-sw.idleTimeout)
	sessions, err := sw.store.ListIdleSessions(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, wrapStore(err, "failed to list idle sessions")
	}

	cancelled := 0
	for _, session := range sessions {
		ok, err := sw.cancelIfUnused(ctx, session.ID)
		if err != nil {
			sw.log.WithError(err).WithField("session_id", session.ID).Warn("could not cancel idle session")
			continue
		}
		if !ok {
			continue
		}
		cancelled++
		session.Status = models.SessionStatusCancelled
		sw.notifier.Publish(Event{
			Type:         EventSessionCancelled,
			RestaurantID: session.RestaurantID,
			SessionID:    session.ID,
			Data:         session,
		})
	}
	if cancelled > 0 {
		sw.log.WithField("count", cancelled).Info("cancelled idle sessions")
	}
	return cancelled, nil
}

var errSessionInUse = errors.New("session is in use")

func (sw *SessionSweeper) cancelIfUnused(ctx context.Context, sessionID uint) (bool, error) {
	err := sw.store.Transaction(ctx, func(tx Store) error {
		ok, err := tx.EndSession(ctx, sessionID, SessionEnd{
			Status: models.SessionStatusCancelled,
			At:     time.Now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return errSessionInUse
		}
		count, err := tx.CountSessionOrders(ctx, sessionID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errSessionInUse
		}
		return nil
	})
	if errors.Is(err, errSessionInUse) {
		return false, nil
	}
	return err == nil, err
}
