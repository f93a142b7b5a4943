package message

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports and UIs can react to them.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotAuthorized ErrorKind = "not_authorized"
	KindNotFound      ErrorKind = "not_found"
	KindTransient     ErrorKind = "transient"
	KindUnknown       ErrorKind = "unknown"
)

// Sentinel errors matching each kind through errors.Is.
var (
	ErrValidation    = errors.New("invalid input")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("temporarily unavailable")
	ErrUnknown       = errors.New("unknown error")
)

// Error is a classified failure of an operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel in addition to the wrapped chain.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k ErrorKind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotAuthorized:
		return ErrNotAuthorized
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrTransient
	}
	return ErrUnknown
}

// E wraps err with a kind and operation name.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a validation error from a message.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

// NotAuthorized builds an authorization error.
func NotAuthorized(op, format string, args ...any) error {
	return &Error{Kind: KindNotAuthorized, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies any error. Context expiry counts as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	}
	return KindUnknown
}
