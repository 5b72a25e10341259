package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Step is one leading action of a multi-step write and the action undoing it.
// Undo may be nil for a step that leaves nothing behind.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// CompensationError is returned when a step failed and at least one undo
// could not be applied. It keeps the kind of the original failure and also
// matches ErrCompensationFailed.
type CompensationError struct {
	Cause  error
	Failed map[string]error
}

func (e *CompensationError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name, err := range e.Failed {
		names = append(names, fmt.Sprintf("%s: %v", name, err))
	}
	return fmt.Sprintf("%v (compensation failed: %s)", e.Cause, strings.Join(names, "; "))
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}

func (e *CompensationError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindCompensationFailed
}

// Saga runs steps in order. When a step fails, the steps that already
// succeeded are undone in reverse order before the error is returned.
type Saga struct {
	log         *logrus.Logger
	undoRetries int
	retryDelay  time.Duration
}

func NewSaga(log *logrus.Logger) *Saga {
	return &Saga{log: log, undoRetries: 3, retryDelay: 50 * time.Millisecond}
}

func (s *Saga) Run(ctx context.Context, steps ...Step) error {
	for i, step := range steps {
		err := step.Do(ctx)
		if err == nil {
			continue
		}
		s.log.WithError(err).WithField("step", step.Name).Warn("saga step failed, compensating")
		// a cancelled request still has to clean up after itself
		undoCtx := context.WithoutCancel(ctx)
		failed := map[string]error{}
		for j := i - 1; j >= 0; j-- {
			if steps[j].Undo == nil {
				continue
			}
			if undoErr := s.undo(undoCtx, steps[j]); undoErr != nil {
				failed[steps[j].Name] = undoErr
			}
		}
		if len(failed) > 0 {
			return &CompensationError{Cause: err, Failed: failed}
		}
		return err
	}
	return nil
}

func (s *Saga) undo(ctx context.Context, step Step) error {
	var err error
	for attempt := 1; attempt <= s.undoRetries; attempt++ {
		if err = step.Undo(ctx); err == nil {
			return nil
		}
		if attempt < s.undoRetries {
			time.Sleep(s.retryDelay * time.Duration(attempt))
		}
	}
	s.log.WithFields(logrus.Fields{
		"event":    "compensation_failed",
		"step":     step.Name,
		"attempts": s.undoRetries,
	}).WithError(err).Error("could not undo saga step")
	return err
}
