// Package fault defines the error kinds returned by the goal and achievement
// services. Transport layers map a Kind to a status code.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Validation   Kind = "validation"    // bad input: empty content, wrong visibility
	NotFound     Kind = "not_found"     // task or user absent
	Unauthorized Kind = "unauthorized"  // actor lacks owner/collaborator role
	InvalidState Kind = "invalid_state" // duplicate invite, no pending entry
	Conflict     Kind = "conflict"      // concurrent membership change won the race
	Internal     Kind = "internal"
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is reports whether target is the sentinel for e's kind. A sentinel is an
// *Error with an empty message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation   = &Error{Kind: Validation}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrUnauthorized = &Error{Kind: Unauthorized}
	ErrInvalidState = &Error{Kind: InvalidState}
	ErrConflict     = &Error{Kind: Conflict}
)

func newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error   { return newf(Validation, format, args...) }
func NotFoundf(format string, args ...any) error     { return newf(NotFound, format, args...) }
func Unauthorizedf(format string, args ...any) error { return newf(Unauthorized, format, args...) }
func InvalidStatef(format string, args ...any) error { return newf(InvalidState, format, args...) }
func Conflictf(format string, args ...any) error     { return newf(Conflict, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}
