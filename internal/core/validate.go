package core

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MinPINLength = 4
	MaxPINLength = 6

	// MaxDescriptionLength mirrors the backend's limit so the error shows up
	// before the round trip.
	MaxDescriptionLength = 100
)

var (
	ErrEmptyDescription   = errors.New("Please enter a description")
	ErrDescriptionTooLong = errors.New("Description cannot exceed 100 characters")
	ErrInvalidPIN         = errors.New("PIN must be 4-6 digits")
	ErrInvalidNewPIN      = errors.New("New PIN must be 4-6 digits")
	ErrPINMismatch        = errors.New("New PINs do not match")
	ErrNoMonthSelected    = errors.New("No month selected")
)

// ValidateDescription trims s and checks it is non-empty and within the
// backend's length limit.
func ValidateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyDescription
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return "", ErrDescriptionTooLong
	}
	return s, nil
}

// ValidatePIN checks that pin is 4 to 6 ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return ErrInvalidPIN
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

// ValidatePINChange checks the new PIN format first, then that the
// confirmation matches.
func ValidatePINChange(newPIN, confirmPIN string) error {
	if err := ValidatePIN(newPIN); err != nil {
		return ErrInvalidNewPIN
	}
	if newPIN != confirmPIN {
		return ErrPINMismatch
	}
	return nil
}
