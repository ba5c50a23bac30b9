// Package money provides fixed-point amount parsing and formatting for the
// wire protocol. Balances and transaction amounts are decimal values with two
// displayed decimal places; floating point is never used for arithmetic.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a token cannot be parsed as a decimal number.
var ErrInvalidAmount = errors.New("money: invalid amount")

// ErrNonPositiveAmount is returned when an operation amount is zero or negative.
var ErrNonPositiveAmount = errors.New("money: amount must be positive")

// Parse converts a wire-protocol token into a decimal amount.
// It accepts anything shopspring/decimal accepts ("10", "10.5", "-3.25").
func Parse(token string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePositive parses a token and requires the result to be strictly positive,
// as every credit, debit and transfer amount must be.
func ParsePositive(token string) (decimal.Decimal, error) {
	d, err := Parse(token)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

// Format renders an amount with exactly two decimal places, the format every
// reply line uses.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
