package account

import (
	"errors"
	"fmt"
)

// Standard errors every Store implementation returns. The command processor
// translates these into wire-protocol replies, so implementations must wrap
// (not replace) them.
var (
	// ErrNotFound is returned when the requested account does not exist.
	ErrNotFound = errors.New("account: not found")

	// ErrAlreadyExists is returned when creating an account whose id is taken.
	ErrAlreadyExists = errors.New("account: already exists")

	// ErrInvalidID is returned when an id violates the structural format rule.
	ErrInvalidID = errors.New("account: invalid id format")

	// ErrInsufficientFunds is returned when a debit would drive a balance negative.
	ErrInsufficientFunds = errors.New("account: insufficient funds")
)

// IsNotFound checks whether err indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WrapStoreError adds the failing store operation to an error.
func WrapStoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store %s: %w", op, err)
}
