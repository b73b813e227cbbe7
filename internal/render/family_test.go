package render

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"passbook/internal/family"
)

func TestChildren(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Children(nil)
	assert.Equal(t, family.MsgNoChildren+"\n", buf.String())

	buf.Reset()
	term.Children([]family.Child{{
		UserID:          "child-1",
		DisplayName:     "Ada",
		Age:             9,
		WeeklyAllowance: decimal.RequireFromString("7.5"),
		Balance:         decimal.RequireFromString("1200"),
	}})
	out := buf.String()
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "$7.50/week")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "child-1")
}

func TestFamilyExpenses(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.FamilyExpenses(nil)
	assert.Equal(t, family.MsgNoExpenses+"\n", buf.String())

	buf.Reset()
	term.FamilyExpenses([]family.Expense{{
		Description: "Comics",
		Category:    "entertainment",
		Amount:      decimal.RequireFromString("4"),
		Date:        "not-a-date",
	}})
	out := buf.String()
	assert.Contains(t, out, "Unknown")
	assert.Contains(t, out, "not-a-date")
	assert.Contains(t, out, "$4.00")
}
