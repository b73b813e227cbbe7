package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"passbook/internal/core"
)

func TestPinDots(t *testing.T) {
	assert.Equal(t, "○○○○○○", PinDots(0))
	assert.Equal(t, "●●●●○○", PinDots(4))
	assert.Equal(t, "●●●●●●", PinDots(9))
	assert.Equal(t, "○○○○○○", PinDots(-1))
}

func TestDashboard(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.Dashboard(&core.MonthData{
		Month: "2025-03",
		Summary: &core.MonthSummary{
			AllowanceAdded: decimal.RequireFromString("1500"),
			TotalExpenses:  decimal.RequireFromString("265.44"),
		},
		TotalBalance: decimal.RequireFromString("4321.10"),
	})
	out := buf.String()
	assert.Contains(t, out, "March 2025")
	assert.Contains(t, out, "$1,234.56")
	assert.Contains(t, out, "$4,321.10")
	assert.Contains(t, out, "$265.44 spent")
}

func TestEmptyStates(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.EmptyState()
	assert.Contains(t, buf.String(), EmptyTitle)
	assert.Contains(t, buf.String(), "$0.00 spent")
	assert.Contains(t, buf.String(), EmptyEntries)

	buf.Reset()
	term.Expenses(nil, false)
	assert.Equal(t, EmptyExpenses+"\n", buf.String())

	buf.Reset()
	term.Months(nil, "", false)
	assert.Equal(t, EmptyHistory+"\n", buf.String())
}

func TestExpensesAndMonths(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Expenses([]core.Expense{{
		ID:          "EXP#1#a",
		Amount:      decimal.RequireFromString("12.5"),
		Description: "Lunch",
		CreatedAt:   time.Now(),
	}}, true)
	assert.Contains(t, buf.String(), "Lunch")
	assert.Contains(t, buf.String(), "-$12.50")
	assert.Contains(t, buf.String(), LoadMore)

	buf.Reset()
	term.Months([]core.MonthListItem{
		{Month: "2025-03", MonthlySaved: decimal.NewFromInt(20)},
		{Month: "2025-02", MonthlySaved: decimal.NewFromInt(-5)},
	}, "2025-02", false)
	out := buf.String()
	assert.Contains(t, out, "* February 2025")
	assert.Contains(t, out, "  March 2025")
	assert.Contains(t, out, "-$5.00")
	assert.NotContains(t, out, LoadMore)
}

func TestScreenAndErrors(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.ShowScreen(ScreenAuth)
	term.ShowScreen(ScreenAuth)
	assert.Equal(t, ScreenAuth, term.Screen())
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("log in")))

	term.FormError("Please enter a valid amount")
	assert.Equal(t, "Please enter a valid amount", term.LastError())
	term.HideError()
	assert.Empty(t, term.LastError())

	buf.Reset()
	term.Toast("Expense added!", ToastSuccess)
	assert.Equal(t, "✓ Expense added!\n", buf.String())
}
