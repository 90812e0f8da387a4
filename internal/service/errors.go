package service

import (
	"errors"
	"fmt"

	"campusrun/internal/database"
)

// Kind classifies lifecycle failures for callers and transports.
type Kind string

const (
	KindForbidden            Kind = "forbidden"
	KindInvalidState         Kind = "invalid_state"
	KindRunnerBusy           Kind = "runner_busy"
	KindDuplicateApplication Kind = "duplicate_application"
	KindNotApplicant         Kind = "not_applicant"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation_error"
)

// Error is a typed lifecycle failure with a message safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any Error of the same kind when the target carries no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrRunnerBusy           = &Error{Kind: KindRunnerBusy}
	ErrDuplicateApplication = &Error{Kind: KindDuplicateApplication}
	ErrNotApplicant         = &Error{Kind: KindNotApplicant}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrValidation           = &Error{Kind: KindValidation}
)

const runnerBusyMessage = "runner is already assigned to another active mission"

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a lifecycle error or "" for internal failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// translate maps store errors onto lifecycle kinds. Unknown errors pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "mission not found", Err: err}
	case errors.Is(err, database.ErrStatusConflict):
		return &Error{Kind: KindInvalidState, Message: err.Error(), Err: err}
	case errors.Is(err, database.ErrRunnerBusy):
		return &Error{Kind: KindRunnerBusy, Message: runnerBusyMessage, Err: err}
	case errors.Is(err, database.ErrDuplicateApplication):
		return &Error{Kind: KindDuplicateApplication, Message: "you have already applied to this mission", Err: err}
	case errors.Is(err, database.ErrNotApplicant):
		return &Error{Kind: KindNotApplicant, Message: "this runner has not applied to the mission", Err: err}
	default:
		return err
	}
}
