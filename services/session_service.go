package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

type OpenSessionRequest struct {
	RestaurantID uint
	TableID      uint
	HostDeviceID string
	HostName     string
	PersonsCount int
}

// JoinResult is what a device gets back from joining by code.
type JoinResult struct {
	Session     *models.TableSession `json:"session"`
	Participant *models.Participant  `json:"participant"`
	Rejoined    bool                 `json:"rejoined"`
}

// SessionService owns the table session lifecycle.
type SessionService struct {
	store        Store
	codes        *JoinCodeGenerator
	participants *ParticipantService
	authz        *Authorizer
	notifier     Notifier
	log          *logrus.Logger

	// AllowRejoin lets an active participant join again and get its row back.
	// When false the second join fails with AlreadyJoined.
	AllowRejoin bool
}

func NewSessionService(store Store, codes *JoinCodeGenerator, participants *ParticipantService, authz *Authorizer, notifier Notifier, log *logrus.Logger) *SessionService {
	return &SessionService{
		store:        store,
		codes:        codes,
		participants: participants,
		authz:        authz,
		notifier:     notifier,
		log:          log,
		AllowRejoin:  true,
	}
}

// OpenSession starts a session on a free table and seats the host device as
// its first participant.
func (s *SessionService) OpenSession(ctx context.Context, req OpenSessionRequest) (*models.TableSession, error) {
	if err := validateDeviceID(req.HostDeviceID); err != nil {
		return nil, err
	}
	hostName, err := cleanDisplayName(req.HostName)
	if err != nil {
		return nil, err
	}
	if req.PersonsCount < 1 {
		return nil, Validation("persons count must be at least 1")
	}

	restaurant, err := s.store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, lookup(err, "restaurant", req.RestaurantID)
	}
	if !restaurant.IsActive {
		return nil, NotFound("restaurant %d not found", req.RestaurantID)
	}
	table, err := s.store.GetTable(ctx, req.RestaurantID, req.TableID)
	if err != nil {
		return nil, lookup(err, "table", req.TableID)
	}
	if !table.IsActive {
		return nil, &Error{Kind: KindTableUnavailable, Message: "table is disabled"}
	}
	if req.PersonsCount > table.Capacity {
		return nil, Validation("table %d seats at most %d persons", table.TableNumber, table.Capacity)
	}
	if _, err := s.store.GetActiveSessionByTable(ctx, table.ID); err == nil {
		return nil, tableOccupied(table)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, wrapStore(err, "failed to check table")
	}

	var session *models.TableSession
	for attempt := 0; ; attempt++ {
		code, err := s.codes.Generate(ctx, s.store, req.RestaurantID)
		if err != nil {
			return nil, err
		}
		session, err = s.insertSession(ctx, table, code, req.HostDeviceID, hostName, req.PersonsCount)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}

		// either the table or the code was taken between check and insert
		if _, lookupErr := s.store.GetActiveSessionByTable(ctx, table.ID); lookupErr == nil {
			return nil, tableOccupied(table)
		}
		if attempt >= 1 {
			return nil, &Error{Kind: KindConflict, Message: "join code collided twice", Err: err}
		}
		s.log.WithField("restaurant_id", req.RestaurantID).Warn("join code collision, regenerating")
	}

	s.log.WithFields(logrus.Fields{
		"restaurant_id": session.RestaurantID,
		"session_id":    session.ID,
		"table_id":      session.TableID,
	}).Info("table session opened")
	s.notifier.Publish(Event{
		Type:         EventSessionOpened,
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		Data:         session,
	})
	return session, nil
}

// OpenSessionAsStaff opens a session for a diner's device from the staff side.
func (s *SessionService) OpenSessionAsStaff(ctx context.Context, staffID uint, req OpenSessionRequest) (*models.TableSession, error) {
	if err := s.authz.Require(ctx, req.RestaurantID, staffID, PermManageSessions); err != nil {
		return nil, err
	}
	return s.OpenSession(ctx, req)
}

func (s *SessionService) insertSession(ctx context.Context, table *models.Table, code, hostDeviceID, hostName string, persons int) (*models.TableSession, error) {
	now := time.Now()
	session := &models.TableSession{
		RestaurantID:   table.RestaurantID,
		TableID:        table.ID,
		JoinCode:       code,
		ActiveTableID:  lo.ToPtr(table.ID),
		ActiveJoinCode: lo.ToPtr(code),
		HostDeviceID:   hostDeviceID,
		PersonsCount:   persons,
		Status:         models.SessionStatusActive,
		StartTime:      now,
	}
	err := s.store.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		host, _, err := s.participants.register(ctx, tx, session.ID, hostDeviceID, hostName, false)
		if err != nil {
			return err
		}
		session.Participants = []models.Participant{*host}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, wrapStore(err, "failed to open session")
	}
	return session, nil
}

// JoinSession attaches a device to the active session holding joinCode in the
// restaurant. Joining again with the same device returns the same participant.
func (s *SessionService) JoinSession(ctx context.Context, restaurantID uint, joinCode, deviceID, name string) (*JoinResult, error) {
	joinCode = strings.TrimSpace(joinCode)
	if joinCode == "" {
		return nil, Validation("join code is required")
	}
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}
	session, err := s.store.GetActiveSessionByCode(ctx, restaurantID, joinCode)
	if errors.Is(err, ErrNotFound) {
		return nil, NotFound("no active session with code %s", joinCode)
	}
	if err != nil {
		return nil, wrapStore(err, "failed to find session")
	}

	if !s.AllowRejoin {
		active, err := s.participants.IsActiveParticipant(ctx, session.ID, deviceID)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, &Error{Kind: KindAlreadyJoined, Message: "device already joined this session"}
		}
	}

	participant, existed, err := s.participants.AddParticipant(ctx, Customer(deviceID), session.ID, deviceID, name)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"session_id":    session.ID,
		"device_id":     deviceID,
		"rejoined":      existed,
	}).Info("device joined session")
	return &JoinResult{Session: session, Participant: participant, Rejoined: existed}, nil
}

// CloseSession checks the table out and fixes the session total.
func (s *SessionService) CloseSession(ctx context.Context, sessionID, staffID uint) (*models.TableSession, error) {
	return s.end(ctx, sessionID, staffID, models.SessionStatusClosed)
}

// CancelSession abandons the session.
func (s *SessionService) CancelSession(ctx context.Context, sessionID, staffID uint) (*models.TableSession, error) {
	return s.end(ctx, sessionID, staffID, models.SessionStatusCancelled)
}

func (s *SessionService) end(ctx context.Context, sessionID, staffID uint, status models.SessionStatus) (*models.TableSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	if err := s.authz.Require(ctx, session.RestaurantID, staffID, PermManageSessions); err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, InvalidTransition("session is already %s", session.Status)
	}

	err = s.store.Transaction(ctx, func(tx Store) error {
		// ending first holds the session row, so an order racing this close
		// either committed already and is counted, or sees the session ended
		ok, err := tx.EndSession(ctx, sessionID, SessionEnd{
			Status:  status,
			EndedBy: lo.ToPtr(staffID),
			At:      time.Now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return InvalidTransition("session is no longer active")
		}
		return s.recomputeTotal(ctx, tx, sessionID)
	})
	if err != nil {
		return nil, wrapStore(err, "failed to end session")
	}

	session, err = s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	event := EventSessionClosed
	if status == models.SessionStatusCancelled {
		event = EventSessionCancelled
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    staffID,
		"status":     status,
		"total":      session.CalculatedTotal,
	}).Info("table session ended")
	s.notifier.Publish(Event{Type: event, RestaurantID: session.RestaurantID, SessionID: session.ID, Data: session})
	return session, nil
}

func (s *SessionService) recomputeTotal(ctx context.Context, tx Store, sessionID uint) error {
	orders, err := tx.ListSessionOrders(ctx, sessionID)
	if err != nil {
		return err
	}
	return tx.SetSessionTotal(ctx, sessionID, SessionTotal(orders))
}

// SessionTotal sums price x quantity over non-cancelled items of
// non-cancelled orders, rounded to cents.
func SessionTotal(orders []models.Order) float64 {
	total := lo.SumBy(orders, func(o models.Order) float64 {
		return o.Subtotal()
	})
	return math.Round(total*100) / 100
}

// GetSession returns the session with its participants.
func (s *SessionService) GetSession(ctx context.Context, by Attribution, sessionID uint) (*models.TableSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	if err := canView(ctx, s.store, s.authz, session, by); err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, wrapStore(err, "failed to list participants")
	}
	session.Participants = participants
	return session, nil
}

func (s *SessionService) ListActiveSessions(ctx context.Context, staffID, restaurantID uint) ([]models.TableSession, error) {
	if err := s.authz.RequireMember(ctx, restaurantID, staffID); err != nil {
		return nil, err
	}
	sessions, err := s.store.ListActiveSessions(ctx, restaurantID)
	if err != nil {
		return nil, wrapStore(err, "failed to list sessions")
	}
	return sessions, nil
}

func tableOccupied(table *models.Table) error {
	return &Error{
		Kind:    KindTableUnavailable,
		Message: fmt.Sprintf("table %d already has an active session", table.TableNumber),
	}
}
