package services

import (
	"errors"
	"fmt"

	"github.com/wfunc/hideseek/persistence"
)

// Kind classifies an operation failure. Transports map kinds onto status codes.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindPrecondition  Kind = "precondition"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindStorage       Kind = "storage"
)

// Error is the structured result every operation failure is turned into.
type Error struct {
	Kind    Kind
	Message string
	// WinnerID is set when the failure is "game already completed".
	WinnerID *string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, treating anything unstructured as a storage failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func storageErr(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op + " failed", Err: err}
}

func completedErr(winnerID *string) *Error {
	e := preconditionf("game already completed")
	e.WinnerID = winnerID
	return e
}

// lookupErr turns a store error from fetching what into a NotFound or Storage error.
func lookupErr(what string, err error) *Error {
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return notFoundf("%s not found", what)
	}
	return storageErr("load "+what, err)
}
