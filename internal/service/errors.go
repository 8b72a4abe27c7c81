package service

import (
	"errors"
	"fmt"
	"math"

	"talkquest/internal/repository"
)

// Error kinds. Callers test for them with errors.Is.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInternal               = errors.New("internal error")
)

// maxStoredInt is the largest count or XP value the INT columns hold on
// every supported database
const maxStoredInt = math.MaxInt32

// Error describes a failed operation
type Error struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind as well as the wrapped error
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func invalidArgument(op, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notFound(op, what string) error {
	return &Error{Op: op, Kind: ErrNotFound, Message: what + " not found"}
}

func forbidden(op, message string) error {
	return &Error{Op: op, Kind: ErrForbidden, Message: message}
}

// wrap turns a storage error into a service error. Repository not-found
// errors keep their kind, anything else is internal.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Op: op, Kind: ErrNotFound, Err: err}
	}
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}
