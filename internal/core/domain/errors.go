package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrDecryptionFailure    = errors.New("failed to decrypt token field")
	ErrTransactionNotFound  = errors.New("transaction not found, refresh and retry")
	ErrSpendConstruction    = errors.New("failed to construct spend")
	ErrSigning              = errors.New("failed to sign spend")
	ErrNotificationDelivery = errors.New("failed to deliver notification")
	ErrInvalidTransition    = errors.New("invalid lifecycle transition")
	ErrUnknownPurpose       = errors.New("unknown purpose")
	ErrUnknownView          = errors.New("unknown view")
)

// OperationError is returned by lifecycle operations. It unwraps to both the
// taxonomy error and the underlying cause.
type OperationError struct {
	Op       string
	Outpoint Outpoint
	Kind     error
	Err      error
}

func NewOperationError(op string, outpoint Outpoint, kind, err error) *OperationError {
	return &OperationError{op, outpoint, kind, err}
}

func (e *OperationError) Error() string {
	target := ""
	if !e.Outpoint.IsEmpty() {
		target = " " + e.Outpoint.String()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s%s: %s", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s%s: %s: %s", e.Op, target, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
