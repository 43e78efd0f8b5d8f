package service

import (
	"errors"
)

// Error kinds of a turn. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrTurnInFlight      = errors.New("a turn is already in flight")
	ErrQuotaExceeded     = errors.New("gem quota exceeded")
	ErrLedgerUnavailable = errors.New("gem ledger unavailable")
	ErrModelInvocation   = errors.New("model invocation failed")
	ErrPersistence       = errors.New("failed to save the turn")
	ErrNotFound          = errors.New("not found")
)

// TurnError carries the kind of a failure and the user facing message.
type TurnError struct {
	Kind    error
	Message string
	Err     error
}

func (e *TurnError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TurnError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether resubmitting the same turn may succeed.
func (e *TurnError) Retryable() bool {
	return e.Kind == ErrModelInvocation || e.Kind == ErrPersistence ||
		e.Kind == ErrLedgerUnavailable || e.Kind == ErrTurnInFlight
}

func newTurnError(kind error, message string, err error) *TurnError {
	return &TurnError{Kind: kind, Message: message, Err: err}
}

func validationError(message string) *TurnError {
	return newTurnError(ErrValidation, message, nil)
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Message
	}
	return "Something went wrong, please try again"
}
