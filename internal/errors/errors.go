package errors

import (
	"errors"
	"fmt"
)

// Domain error type for the balance ledger
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrRecipientNotFound  = errors.New("recipient account not found")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrInvalidAccountID   = errors.New("invalid account ID")
	ErrForbidden          = errors.New("operation not permitted for role")
	ErrUnauthenticated    = errors.New("no authenticated account")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTransferFailed     = errors.New("transfer failed")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// TransactionError reports a failure inside the transfer unit of work after
// every mutation of that unit has been rolled back. It matches ErrTransferFailed.
type TransactionError struct {
	Operation string
	Cause     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error during '%s': %v", e.Operation, e.Cause)
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

func (e *TransactionError) Is(target error) bool {
	return target == ErrTransferFailed
}

func NewTransactionError(operation string, cause error) error {
	return &TransactionError{
		Operation: operation,
		Cause:     cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrRecipientNotFound)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsDuplicateUsername(err error) bool {
	return errors.Is(err, ErrDuplicateUsername)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidCredentials)
}

func IsTransferFailed(err error) bool {
	return errors.Is(err, ErrTransferFailed)
}

// IsDomainError reports whether err is one of the recoverable ledger errors
// that must pass through the transfer unit of work unwrapped.
func IsDomainError(err error) bool {
	switch {
	case IsNotFound(err), IsInsufficientFunds(err), IsValidationError(err),
		IsDuplicateUsername(err), IsForbidden(err), IsUnauthenticated(err):
		return true
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidRecipient), errors.Is(err, ErrInvalidAccountID):
		return true
	}
	return false
}
