package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		err error
	}{
		{"1", "1", nil},
		{"1.0", "1", nil},
		{"1.23", "1.23", nil},
		{"1,23", "1.23", nil},
		{"0.01", "0.01", nil},
		{" 2.50 ", "2.5", nil},
		{"99999.99", "99999.99", nil},
		{"100000.00", "", ErrAmountTooLarge},
		{"99999.991", "", ErrAmountTooLarge},
		{"0", "", ErrInvalidAmount},
		{"0.00", "", ErrInvalidAmount},
		{"-1", "", ErrInvalidAmount},
		{"+1", "", ErrInvalidAmount},
		{"1e3", "", ErrInvalidAmount},
		{"abc", "", ErrInvalidAmount},
		{"1.2.3", "", ErrInvalidAmount},
		{".", "", ErrInvalidAmount},
		{"", "", ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "got %s", got)
		})
	}
}

func TestValidateAmountBoundary(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("99999.99")))
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("100000")), ErrAmountTooLarge)
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrInvalidAmount)
	assert.Equal(t, "Amount cannot exceed $99,999.99", ErrAmountTooLarge.Error())
}
