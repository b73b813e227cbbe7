package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// MonthSummary is the backend's aggregate for one calendar month.
	MonthSummary struct {
		Month           MonthKey        `json:"month"`
		StartingBalance decimal.Decimal `json:"starting_balance"`
		AllowanceAdded  decimal.Decimal `json:"allowance_added"`
		TotalExpenses   decimal.Decimal `json:"total_expenses"`
		EndingBalance   decimal.Decimal `json:"ending_balance"`
		CreatedAt       time.Time       `json:"created_at"`
		UpdatedAt       time.Time       `json:"updated_at"`
	}

	Expense struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// MonthData is one page of a month: its summary, a slice of expenses and
	// the cursor for the next page (empty when exhausted).
	MonthData struct {
		Month        MonthKey        `json:"month"`
		Summary      *MonthSummary   `json:"summary"`
		Expenses     []Expense       `json:"expenses"`
		TotalBalance decimal.Decimal `json:"total_balance"`
		NextCursor   string          `json:"next_cursor,omitempty"`
	}

	MonthListItem struct {
		Month        MonthKey        `json:"month"`
		MonthlySaved decimal.Decimal `json:"monthly_saved"`
	}

	// MonthsPage is one page of the month history, newest first.
	MonthsPage struct {
		Months     []MonthListItem `json:"months"`
		NextCursor string          `json:"next_cursor,omitempty"`
	}
)

// MonthlySaved returns allowance added minus total expenses, or zero when the
// month has no summary yet.
func (d *MonthData) MonthlySaved() decimal.Decimal {
	if d == nil || d.Summary == nil {
		return decimal.Zero
	}
	return d.Summary.AllowanceAdded.Sub(d.Summary.TotalExpenses)
}

// TotalExpenses returns the month's spent amount, zero without a summary.
func (d *MonthData) TotalExpenses() decimal.Decimal {
	if d == nil || d.Summary == nil {
		return decimal.Zero
	}
	return d.Summary.TotalExpenses
}
