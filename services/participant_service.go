package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
)

const maxDisplayNameLength = 100

// ParticipantService is the roster of devices attached to table sessions.
type ParticipantService struct {
	store    Store
	authz    *Authorizer
	notifier Notifier
	log      *logrus.Logger
}

func NewParticipantService(store Store, authz *Authorizer, notifier Notifier, log *logrus.Logger) *ParticipantService {
	return &ParticipantService{store: store, authz: authz, notifier: notifier, log: log}
}

// AddParticipant attaches deviceID to an active session, reactivating an
// existing row instead of inserting a second one. Staff may add any device
// and may bring back a removed one; a device may only add itself and cannot
// undo a removal. The bool result reports whether a row already existed.
func (s *ParticipantService) AddParticipant(ctx context.Context, by Attribution, sessionID uint, deviceID, name string) (*models.Participant, bool, error) {
	if err := by.validate(); err != nil {
		return nil, false, err
	}
	if err := validateDeviceID(deviceID); err != nil {
		return nil, false, err
	}
	name, err := cleanDisplayName(name)
	if err != nil {
		return nil, false, err
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, lookup(err, "session", sessionID)
	}
	if by.IsStaff() {
		if err := s.authz.Require(ctx, session.RestaurantID, by.StaffID(), PermManageSessions); err != nil {
			return nil, false, err
		}
	} else if by.DeviceID() != deviceID {
		return nil, false, Forbidden("a device can only add itself to a session")
	}
	if !session.IsActive() {
		return nil, false, &Error{Kind: KindSessionNotActive, Message: "session is " + string(session.Status)}
	}

	participant, existed, err := s.register(ctx, s.store, session.ID, deviceID, name, by.IsStaff())
	if err != nil {
		return nil, false, err
	}
	s.notifier.Publish(Event{
		Type:         EventParticipantJoined,
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		Data:         participant,
	})
	return participant, existed, nil
}

// register inserts or reactivates a participant row using store, which may
// be bound to a transaction.
func (s *ParticipantService) register(ctx context.Context, store Store, sessionID uint, deviceID, name string, allowRemoved bool) (*models.Participant, bool, error) {
	now := time.Now()
	existing, err := store.GetParticipant(ctx, sessionID, deviceID)
	switch {
	case errors.Is(err, ErrNotFound):
		participant := &models.Participant{
			SessionID:   sessionID,
			DeviceID:    deviceID,
			DisplayName: name,
			Status:      models.ParticipantStatusActive,
			JoinedAt:    now,
		}
		err = store.CreateParticipant(ctx, participant)
		if err == nil {
			return participant, false, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, false, wrapStore(err, "failed to add participant")
		}
		// the same device joined concurrently; continue with its row
		existing, err = store.GetParticipant(ctx, sessionID, deviceID)
		if err != nil {
			return nil, false, lookup(err, "participant", deviceID)
		}
	case err != nil:
		return nil, false, wrapStore(err, "failed to load participant")
	}

	if existing.Status == models.ParticipantStatusRemoved && !allowRemoved {
		return nil, true, Forbidden("device was removed from this session by staff")
	}
	changed := false
	if existing.Status != models.ParticipantStatusActive {
		existing.Status = models.ParticipantStatusActive
		existing.JoinedAt = now
		changed = true
	}
	if name != "" && name != existing.DisplayName {
		existing.DisplayName = name
		changed = true
	}
	if changed {
		if err := store.UpdateParticipant(ctx, existing); err != nil {
			return nil, true, wrapStore(err, "failed to reactivate participant")
		}
	}
	return existing, true, nil
}

// LeaveSession marks the device as left. Leaving twice, or after a removal,
// changes nothing.
func (s *ParticipantService) LeaveSession(ctx context.Context, sessionID uint, deviceID string) (*models.Participant, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	participant, err := s.store.GetParticipant(ctx, sessionID, deviceID)
	if err != nil {
		return nil, lookup(err, "participant", deviceID)
	}
	if participant.Status != models.ParticipantStatusActive {
		return participant, nil
	}

	participant.Status = models.ParticipantStatusLeft
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return nil, wrapStore(err, "failed to leave session")
	}
	s.notifier.Publish(Event{
		Type:         EventParticipantLeft,
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		Data:         participant,
	})
	return participant, nil
}

// RemoveParticipant is the staff-only counterpart of LeaveSession.
func (s *ParticipantService) RemoveParticipant(ctx context.Context, staffID, sessionID uint, deviceID string) (*models.Participant, error) {
	if staffID == 0 {
		return nil, Forbidden("removing a participant requires a staff user")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, "session", sessionID)
	}
	if err := s.authz.Require(ctx, session.RestaurantID, staffID, PermManageSessions); err != nil {
		return nil, err
	}
	participant, err := s.store.GetParticipant(ctx, sessionID, deviceID)
	if err != nil {
		return nil, lookup(err, "participant", deviceID)
	}
	if participant.Status == models.ParticipantStatusRemoved {
		return participant, nil
	}

	participant.Status = models.ParticipantStatusRemoved
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return nil, wrapStore(err, "failed to remove participant")
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"device_id":  deviceID,
		"user_id":    staffID,
	}).Info("participant removed")
	s.notifier.Publish(Event{
		Type:         EventParticipantLeft,
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		Data:         participant,
	})
	return participant, nil
}

// IsActiveParticipant is the device check behind self-service ordering.
func (s *ParticipantService) IsActiveParticipant(ctx context.Context, sessionID uint, deviceID string) (bool, error) {
	return isActiveParticipant(ctx, s.store, sessionID, deviceID)
}

func isActiveParticipant(ctx context.Context, store Store, sessionID uint, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}
	participant, err := store.GetParticipant(ctx, sessionID, deviceID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStore(err, "failed to load participant")
	}
	return participant.Status == models.ParticipantStatusActive, nil
}

func (s *ParticipantService) ListParticipants(ctx context.Context, by Attribution, sessionID uint) ([]models.Participant, error) {
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
	return participants, nil
}

// canView lets staff members of the tenant and active participant devices
// read a session and its orders.
func canView(ctx context.Context, store Store, authz *Authorizer, session *models.TableSession, by Attribution) error {
	if err := by.validate(); err != nil {
		return err
	}
	if by.IsStaff() {
		return authz.RequireMember(ctx, session.RestaurantID, by.StaffID())
	}
	ok, err := isActiveParticipant(ctx, store, session.ID, by.DeviceID())
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("device is not a participant of session %d", session.ID)
	}
	return nil
}

func cleanDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) > maxDisplayNameLength {
		return "", Validation("display name exceeds %d characters", maxDisplayNameLength)
	}
	return name, nil
}
