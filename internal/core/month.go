package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMonth = errors.New("Please select a valid month")

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

// NewMonthKey returns the key for the given year and month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// MonthKeyOf returns the key of the month t falls in, in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return NewMonthKey(t.Year(), t.Month())
}

// CurrentMonthKey returns the key for the current local month.
func CurrentMonthKey() MonthKey {
	return MonthKeyOf(time.Now())
}

// ParseMonthKey parses a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 {
		return "", ErrInvalidMonth
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", ErrInvalidMonth
	}
	return MonthKeyOf(t), nil
}

// Time returns the first instant of the month in UTC. Invalid keys return
// the zero time.
func (k MonthKey) Time() time.Time {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Name returns the display name, e.g. "March 2025". Invalid keys are
// returned unchanged.
func (k MonthKey) Name() string {
	t := k.Time()
	if t.IsZero() {
		return string(k)
	}
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}

// Valid reports whether the key parses as "YYYY-MM".
func (k MonthKey) Valid() bool {
	_, err := ParseMonthKey(string(k))
	return err == nil
}

func (k MonthKey) String() string {
	return string(k)
}
