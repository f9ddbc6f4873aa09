package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can map it onto their own transport.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindPersistence  Kind = "persistence"
	KindNotification Kind = "notification"
)

// Error is a structured error carrying a kind, a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with kind and message.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation, NotFound and Conflict are shorthands used throughout the engine.
func Validation(format string, args ...any) *Error { return Newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return Newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return Newf(KindConflict, format, args...) }
func Forbidden(format string, args ...any) *Error  { return Newf(KindForbidden, format, args...) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind (through unwrapping).
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
