// Package core provides the Passbook domain types and the client-side
// validation rules applied before anything is sent to the backend.
//
// This file contains amount parsing and validation. Amounts are kept as
// decimals so the upper bound check is exact at the cent.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("Please enter a valid amount")
	ErrAmountTooLarge = errors.New("Amount cannot exceed $99,999.99")
)

// MaxAmount is the largest amount accepted for an expense or a top-up.
var MaxAmount = decimal.RequireFromString("99999.99")

// ParseAmount converts user input to a validated decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects empty input, signs, exponents and anything that is not a plain
// decimal number.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34, nil
//	ParseAmount("12,34")     -> 12.34, nil
//	ParseAmount("99999.99")  -> 99999.99, nil
//	ParseAmount("100000.00") -> 0, ErrAmountTooLarge
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks 0 < d <= MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	if d.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}
