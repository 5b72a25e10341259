package services

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport response.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindTableUnavailable   Kind = "table_unavailable"
	KindInvalidTransition  Kind = "invalid_transition"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindResourceExhausted  Kind = "resource_exhausted"
	KindValidation         Kind = "validation_error"
	KindSessionNotActive   Kind = "session_not_active"
	KindAlreadyJoined      Kind = "already_joined"
	KindCompensationFailed Kind = "compensation_failed"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "record not found"}
	ErrTableUnavailable   = &Error{Kind: KindTableUnavailable, Message: "table unavailable"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrResourceExhausted  = &Error{Kind: KindResourceExhausted, Message: "resource exhausted"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation error"}
	ErrSessionNotActive   = &Error{Kind: KindSessionNotActive, Message: "session not active"}
	ErrAlreadyJoined      = &Error{Kind: KindAlreadyJoined, Message: "already joined"}
	ErrCompensationFailed = &Error{Kind: KindCompensationFailed, Message: "compensation failed"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
)

// ErrDuplicate is returned by a Store when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func InvalidTransition(format string, args ...interface{}) error {
	return newError(KindInvalidTransition, format, args...)
}

// Internal wraps an unexpected store failure.
func Internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	if errors.Is(err, ErrDuplicate) {
		return KindConflict
	}
	return KindInternal
}

// lookup converts a store miss into a not-found error naming the entity and
// wraps anything else as internal.
func lookup(err error, entity string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return NotFound("%s %v not found", entity, id)
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return Internal("failed to load "+entity, err)
}

// wrapStore passes typed errors through and wraps raw store failures.
func wrapStore(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, ErrDuplicate) {
		return &Error{Kind: KindConflict, Message: message, Err: err}
	}
	return Internal(message, err)
}
