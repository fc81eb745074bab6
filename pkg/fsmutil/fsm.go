// Package fsmutil holds the small helpers shared by the looplab/fsm machines
// that drive payment sessions and flow pages.
package fsmutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
)

// WrapEvent adapts an error-returning callback to fsm.Callback. A returned
// error is stored on the event and surfaces from fsm.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsRealError reports whether err from fsm.Event should be treated as a failure.
// Self transitions and cancelled events are not.
func IsRealError(err error) bool {
	if err == nil {
		return false
	}

	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError

	if errors.As(err, &noTransition) || errors.As(err, &canceled) {
		return false
	}

	return true
}

// Fire triggers event on machine and maps rejected transitions to STATE_CONFLICT.
// Errors raised by callbacks are returned unchanged.
func Fire(ctx context.Context, machine *fsm.FSM, subject, event string, args ...any) error {
	from := machine.Current()
	err := machine.Event(ctx, event, args...)
	if !IsRealError(err) {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}

	var invalid fsm.InvalidEventError
	var unknown fsm.UnknownEventError
	var inTransition fsm.InTransitionError
	switch {
	case errors.As(err, &invalid), errors.As(err, &unknown):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, fmt.Sprintf("%s cannot %s from %s", subject, event, from)).
			WithDetails(map[string]any{"state": from, "event": event})
	case errors.As(err, &inTransition):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("%s is already changing state", subject))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("%s transition failed", subject))
	}
}
