package errors

import (
	"errors"
	"fmt"
)

var (
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrInvalidSessionState  = errors.New("invalid session state")
	ErrUnrecognizedCommand  = errors.New("unrecognized command")
	ErrInvalidSelection     = errors.New("invalid selection")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionClosed        = errors.New("session closed")
	ErrEmptyList            = errors.New("requirement list is empty")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal error")
	ErrTimeout              = errors.New("operation timed out")
)

// Outcome codes reported to callers of the session API.
const (
	CodeOK               = "ok"
	CodeInvalidState     = "invalid_state"
	CodeClarification    = "clarification"
	CodeInvalidSelection = "invalid_selection"
	CodeNotFound         = "not_found"
	CodeClosed           = "closed"
	CodeEmptyList        = "empty_list"
	CodeInvalidInput     = "invalid_input"
	CodeRetrievalFailure = "retrieval_failure"
	CodeInternal         = "internal"
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Code maps err to the outcome code the surrounding system translates into a
// user-facing message.
func Code(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidSessionState):
		return CodeInvalidState
	case errors.Is(err, ErrUnrecognizedCommand):
		return CodeClarification
	case errors.Is(err, ErrInvalidSelection):
		return CodeInvalidSelection
	case errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSessionClosed):
		return CodeClosed
	case errors.Is(err, ErrEmptyList):
		return CodeEmptyList
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrRetrievalUnavailable):
		return CodeRetrievalFailure
	default:
		return CodeInternal
	}
}
