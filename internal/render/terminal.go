// Package render writes application state as plain text. It plays the part
// of the UI layer: screens, toasts, inline form errors, the PIN dots and
// the dashboard, expense and month lists.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"passbook/internal/core"
)

type Screen string

const (
	ScreenSetup Screen = "setup"
	ScreenAuth  Screen = "auth"
	ScreenMain  Screen = "main"
)

type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

const (
	EmptyTitle    = "No Data Yet"
	EmptyEntries  = "No entries yet. Open the menu to create a new month."
	EmptyExpenses = "No expenses yet this month"
	EmptyHistory  = "No history yet"
	LoadMore      = "Load More"
)

// Terminal renders to an io.Writer. It remembers the visible screen and the
// last inline error so callers and tests can inspect them.
type Terminal struct {
	mu        sync.Mutex
	out       io.Writer
	screen    Screen
	formError string
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// ShowScreen switches the visible screen.
func (t *Terminal) ShowScreen(s Screen) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.screen == s {
		return
	}
	t.screen = s
	switch s {
	case ScreenSetup:
		t.printf("== Set up Passbook ==\n")
	case ScreenAuth:
		t.printf("== Passbook: log in ==\n")
	}
}

func (t *Terminal) Screen() Screen {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen
}

func (t *Terminal) Toast(msg string, kind ToastKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case ToastSuccess:
		t.printf("✓ %s\n", msg)
	case ToastError:
		t.printf("✗ %s\n", msg)
	default:
		t.printf("%s\n", msg)
	}
}

// FormError shows an inline validation or request error.
func (t *Terminal) FormError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.formError = msg
	t.printf("Error: %s\n", msg)
}

func (t *Terminal) HideError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.formError = ""
}

func (t *Terminal) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.formError
}

// PinDots returns the six-slot PIN indicator.
func PinDots(filled int) string {
	filled = max(0, min(filled, 6))
	return strings.Repeat("●", filled) + strings.Repeat("○", 6-filled)
}

func (t *Terminal) PinDisplay(filled int, prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printf("%s  %s\n", prompt, PinDots(filled))
}

// PinError flashes the dots; the next PinDisplay clears it.
func (t *Terminal) PinError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printf("%s\n", strings.Repeat("✗", 6))
}

// Dashboard prints the selected month's header figures.
func (t *Terminal) Dashboard(data *core.MonthData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printf("%s\n", data.Month.Name())
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Saved this month\t%s\n", core.FormatCurrency(data.MonthlySaved()))
	fmt.Fprintf(w, "  Total balance\t%s\n", core.FormatCurrency(data.TotalBalance))
	fmt.Fprintf(w, "  Expenses\t%s spent\n", core.FormatCurrency(data.TotalExpenses()))
	_ = w.Flush()
}

func (t *Terminal) EmptyState() {
	t.mu.Lock()
	defer t.mu.Unlock()
	zero := core.FormatCurrency(decimal.Zero)
	t.printf("%s\n", EmptyTitle)
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Saved this month\t%s\n", zero)
	fmt.Fprintf(w, "  Total balance\t%s\n", zero)
	fmt.Fprintf(w, "  Expenses\t%s spent\n", zero)
	_ = w.Flush()
	t.printf("%s\n", EmptyEntries)
}

// Expenses lists the loaded expenses. hasMore adds the load-more hint.
func (t *Terminal) Expenses(expenses []core.Expense, hasMore bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(expenses) == 0 {
		t.printf("%s\n", EmptyExpenses)
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	for _, e := range expenses {
		fmt.Fprintf(w, "  %s\t%s\t-%s\t%s\n", core.FormatDate(e.CreatedAt), e.Description, core.FormatCurrency(e.Amount), e.ID)
	}
	_ = w.Flush()
	if hasMore {
		t.printf("  [%s]\n", LoadMore)
	}
}

// Months lists the month history and marks the current month.
func (t *Terminal) Months(months []core.MonthListItem, current core.MonthKey, hasMore bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(months) == 0 {
		t.printf("%s\n", EmptyHistory)
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	for _, m := range months {
		marker := " "
		if m.Month == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t\n", marker, m.Month.Name(), m.Month, core.FormatCurrency(m.MonthlySaved))
	}
	_ = w.Flush()
	if hasMore {
		t.printf("  [%s...]\n", LoadMore)
	}
}

func (t *Terminal) Balance(total decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printf("Total balance: %s\n", core.FormatCurrency(total))
}
