// Package export copies the month history and every month's expenses into
// a spreadsheet: one sheet of month summaries, one of expenses.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"passbook/internal/core"
	"passbook/internal/log"
)

const (
	MonthsSheet   = "Months"
	ExpensesSheet = "Expenses"

	DefaultConcurrency = 4
)

var (
	monthsHeader   = []any{"Month", "Name", "Starting balance", "Allowance added", "Total expenses", "Ending balance", "Saved"}
	expensesHeader = []any{"Month", "Date", "Description", "Amount", "ID"}
)

// Source reads from the backend; api.Client implements it.
type Source interface {
	AllMonths(ctx context.Context) ([]core.MonthListItem, error)
	AllExpenses(ctx context.Context, month core.MonthKey) (core.MonthData, error)
}

// Writer replaces the content of a sheet with rows.
type Writer interface {
	WriteRows(ctx context.Context, sheet string, rows [][]any) error
}

type Result struct {
	Months   int
	Expenses int
}

type Exporter struct {
	source      Source
	writer      Writer
	logger      *slog.Logger
	concurrency int
}

func New(source Source, writer Writer, logger *slog.Logger, concurrency int) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Exporter{
		source:      source,
		writer:      writer,
		logger:      logger.With(log.FieldComponent, log.ComponentExport),
		concurrency: concurrency,
	}
}

// Run loads every month, fetches month details concurrently and writes both
// sheets. Months keep the backend's order (newest first).
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	months, err := e.source.AllMonths(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load months: %w", err)
	}

	details := make([]core.MonthData, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	var mu sync.Mutex
	loaded := 0
	for i, m := range months {
		g.Go(func() error {
			data, err := e.source.AllExpenses(gctx, m.Month)
			if err != nil {
				return fmt.Errorf("load %s: %w", m.Month, err)
			}
			details[i] = data

			mu.Lock()
			loaded++
			e.logger.DebugContext(gctx, "Month loaded",
				log.FieldMonth, m.Month, "expenses", len(data.Expenses), "progress", loaded)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	monthRows, expenseRows := buildRows(months, details)
	if err := e.writer.WriteRows(ctx, MonthsSheet, monthRows); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", MonthsSheet, err)
	}
	if err := e.writer.WriteRows(ctx, ExpensesSheet, expenseRows); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", ExpensesSheet, err)
	}

	res := Result{Months: len(months), Expenses: len(expenseRows) - 1}
	e.logger.InfoContext(ctx, "Export completed", "months", res.Months, "expenses", res.Expenses)
	return res, nil
}

func buildRows(months []core.MonthListItem, details []core.MonthData) (monthRows, expenseRows [][]any) {
	monthRows = [][]any{monthsHeader}
	expenseRows = [][]any{expensesHeader}

	for i, m := range months {
		d := details[i]
		row := []any{string(m.Month), m.Month.Name(), "", "", "", "", money(m.MonthlySaved)}
		if s := d.Summary; s != nil {
			row[2] = money(s.StartingBalance)
			row[3] = money(s.AllowanceAdded)
			row[4] = money(s.TotalExpenses)
			row[5] = money(s.EndingBalance)
		}
		monthRows = append(monthRows, row)

		for _, ex := range d.Expenses {
			expenseRows = append(expenseRows, []any{
				string(m.Month),
				ex.CreatedAt.Format(time.DateTime),
				ex.Description,
				money(ex.Amount),
				ex.ID,
			})
		}
	}
	return monthRows, expenseRows
}

// money is written as text; USER_ENTERED input turns it into a number.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
