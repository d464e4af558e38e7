package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when an id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount is returned for non-positive transfer or settlement amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidMonth is returned for months outside 1..12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("range end is before range start")
)

// NotEditableError is returned when a transaction cannot go through the
// edit/resolve path.
type NotEditableError struct {
	ID     string
	Type   TransactionType
	Reason string
}

func (e *NotEditableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transaction %s (%s) is not editable: %s", e.ID, e.Type, e.Reason)
	}
	return fmt.Sprintf("transaction %s (%s) is not editable", e.ID, e.Type)
}

// InvalidStakeError is returned when a bet carries a stake <= 0 or odds <= 1.0.
type InvalidStakeError struct {
	Field string
	Value string
}

func (e *InvalidStakeError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Value)
}

// StoreUnavailableError wraps any ledger store failure. Callers decide
// whether to retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("ledger store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsNotEditable reports whether err is a NotEditableError.
func IsNotEditable(err error) bool {
	var target *NotEditableError
	return errors.As(err, &target)
}

// IsInvalidStake reports whether err is an InvalidStakeError.
func IsInvalidStake(err error) bool {
	var target *InvalidStakeError
	return errors.As(err, &target)
}

// IsStoreUnavailable reports whether err is a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
