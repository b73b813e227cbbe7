package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDescription(t *testing.T) {
	got, err := ValidateDescription("  Lunch  ")
	require.NoError(t, err)
	assert.Equal(t, "Lunch", got)

	_, err = ValidateDescription("   ")
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = ValidateDescription(strings.Repeat("x", MaxDescriptionLength))
	assert.NoError(t, err)

	_, err = ValidateDescription(strings.Repeat("x", MaxDescriptionLength+1))
	assert.ErrorIs(t, err, ErrDescriptionTooLong)
}

func TestValidatePIN(t *testing.T) {
	for _, pin := range []string{"1234", "12345", "123456", "0000"} {
		assert.NoError(t, ValidatePIN(pin), pin)
	}
	for _, pin := range []string{"", "123", "1234567", "12a4", "１２３４", " 1234"} {
		assert.ErrorIs(t, ValidatePIN(pin), ErrInvalidPIN, pin)
	}
}

func TestValidatePINChange(t *testing.T) {
	assert.NoError(t, ValidatePINChange("4321", "4321"))
	assert.ErrorIs(t, ValidatePINChange("12", "12"), ErrInvalidNewPIN)
	assert.ErrorIs(t, ValidatePINChange("4321", "4320"), ErrPINMismatch)
}

func TestParseMonthKey(t *testing.T) {
	k, err := ParseMonthKey("2025-03")
	require.NoError(t, err)
	assert.Equal(t, MonthKey("2025-03"), k)
	assert.Equal(t, "March 2025", k.Name())

	for _, bad := range []string{"", "2025-3", "2025-13", "25-03-01", "March 25"} {
		_, err := ParseMonthKey(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
	}
}

func TestMonthKeyOf(t *testing.T) {
	ts := time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, MonthKey("2026-01"), MonthKeyOf(ts))
	assert.True(t, MonthKey("2026-01").Valid())
	assert.False(t, MonthKey("nope").Valid())
	assert.Equal(t, "nope", MonthKey("nope").Name())
}

func TestFormatCurrency(t *testing.T) {
	cases := map[string]string{
		"0":        "$0.00",
		"5":        "$5.00",
		"1234.56":  "$1,234.56",
		"99999.99": "$99,999.99",
		"-5":       "-$5.00",
		"12.345":   "$12.35",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCurrency(decimal.RequireFromString(in)), in)
	}
}

func TestMonthlySaved(t *testing.T) {
	var empty *MonthData
	assert.True(t, empty.MonthlySaved().IsZero())
	assert.True(t, (&MonthData{}).TotalExpenses().IsZero())

	d := &MonthData{Summary: &MonthSummary{
		AllowanceAdded: decimal.RequireFromString("100"),
		TotalExpenses:  decimal.RequireFromString("37.5"),
	}}
	assert.Equal(t, "62.5", d.MonthlySaved().String())
}
