package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"passbook/internal/core"
	"passbook/internal/export"
	"passbook/internal/export/google"
	"passbook/internal/log"
	"passbook/internal/render"
)

// leadingArg splits off a positional argument given before the flags.
func leadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func runBalance(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireSession(); err != nil {
		return err
	}
	return e.app.ShowBalance(ctx)
}

func runMonths(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("months", flag.ContinueOnError)
	all := fs.Bool("all", false, "follow the cursor to the last page")
	pages := fs.Int("pages", 1, "number of pages to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireSession(); err != nil {
		return err
	}

	if *all {
		return e.app.LoadAllMonths(ctx)
	}
	if err := e.app.LoadMonthsList(ctx); err != nil {
		return err
	}
	for i := 1; i < *pages && e.app.State().MonthsCursor != ""; i++ {
		if err := e.app.LoadMoreMonths(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runMonth(ctx context.Context, e *env, args []string) error {
	month, args := leadingArg(args)
	fs := flag.NewFlagSet("month", flag.ContinueOnError)
	all := fs.Bool("all", false, "load every expense of the month")
	pages := fs.Int("pages", 1, "number of expense pages to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if month == "" {
		month = fs.Arg(0)
	}
	if err := e.requireSession(); err != nil {
		return err
	}

	if month == "" {
		if err := e.app.LoadInitialData(ctx); err != nil {
			return err
		}
		if e.app.State().CurrentMonth == "" {
			return nil
		}
	} else if err := e.app.SelectMonth(ctx, month); err != nil {
		return err
	}

	if *all {
		return e.app.LoadAllExpenses(ctx)
	}
	for i := 1; i < *pages && e.app.State().ExpensesCursor != ""; i++ {
		if err := e.app.LoadMoreExpenses(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runMonthCreate(ctx context.Context, e *env, args []string) error {
	month, args := leadingArg(args)
	fs := flag.NewFlagSet("month-create", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireSession(); err != nil {
		return err
	}
	month, err := e.valueOr(month, "Month (YYYY-MM): ")
	if err != nil {
		return err
	}
	return e.app.CreateMonth(ctx, month)
}

func runExpense(ctx context.Context, e *env, args []string) error {
	sub, args := leadingArg(args)
	switch sub {
	case "add":
		return runExpenseAdd(ctx, e, args)
	case "edit":
		return runExpenseEdit(ctx, e, args)
	case "delete":
		return runExpenseDelete(ctx, e, args)
	case "":
		return errors.New("usage: passbook expense add|edit|delete [flags]")
	}
	return fmt.Errorf("unknown expense command %q", sub)
}

func runExpenseAdd(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("expense add", flag.ContinueOnError)
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	desc := fs.String("desc", "", "description")
	queue := fs.Bool("queue", false, "store locally and let passbook-sync deliver it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := e.valueOr(*amount, "Amount: ")
	if err != nil {
		return err
	}
	d, err := e.valueOr(*desc, "Description: ")
	if err != nil {
		return err
	}

	if *queue {
		id, err := e.backend.Outbox.QueueExpense(ctx, a, d)
		if err != nil {
			e.term.FormError(err.Error())
			return err
		}
		e.logger.Debug("Expense queued", log.FieldOutboxID, id)
		e.term.Toast("Expense queued for sync", render.ToastInfo)
		return nil
	}

	if err := e.requireSession(); err != nil {
		return err
	}
	return e.app.AddExpense(ctx, a, d)
}

func (e *env) useMonth(month string) error {
	if month == "" {
		month = core.CurrentMonthKey().String()
	}
	return e.app.SetCurrentMonth(month)
}

func runExpenseEdit(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("expense edit", flag.ContinueOnError)
	month := fs.String("month", "", "month of the expense (default: this month)")
	id := fs.String("id", "", "expense id")
	amount := fs.String("amount", "", "new amount")
	desc := fs.String("desc", "", "new description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if err := e.requireSession(); err != nil {
		return err
	}
	if err := e.useMonth(*month); err != nil {
		return err
	}

	a, err := e.valueOr(*amount, "Amount: ")
	if err != nil {
		return err
	}
	d, err := e.valueOr(*desc, "Description: ")
	if err != nil {
		return err
	}
	return e.app.EditExpense(ctx, *id, a, d)
}

func runExpenseDelete(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("expense delete", flag.ContinueOnError)
	month := fs.String("month", "", "month of the expense (default: this month)")
	id := fs.String("id", "", "expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if err := e.requireSession(); err != nil {
		return err
	}
	if err := e.useMonth(*month); err != nil {
		return err
	}
	return e.app.DeleteExpense(ctx, *id)
}

func runFunds(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("funds", flag.ContinueOnError)
	month := fs.String("month", "", "month to top up (default: this month)")
	amount := fs.String("amount", "", "amount to add")
	queue := fs.Bool("queue", false, "store locally and let passbook-sync deliver it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key := core.CurrentMonthKey()
	if *month != "" {
		var err error
		if key, err = core.ParseMonthKey(*month); err != nil {
			e.term.FormError(err.Error())
			return err
		}
	}
	a, err := e.valueOr(*amount, "Amount: ")
	if err != nil {
		return err
	}

	if *queue {
		id, err := e.backend.Outbox.QueueFunds(ctx, key, a)
		if err != nil {
			e.term.FormError(err.Error())
			return err
		}
		e.logger.Debug("Funds queued", log.FieldOutboxID, id, log.FieldMonth, key)
		e.term.Toast("Funds queued for sync", render.ToastInfo)
		return nil
	}

	if err := e.requireSession(); err != nil {
		return err
	}
	if err := e.app.SetCurrentMonth(key.String()); err != nil {
		return err
	}
	return e.app.AddFunds(ctx, a)
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "build the rows without writing to Google Sheets")
	concurrency := fs.Int("concurrency", export.DefaultConcurrency, "months fetched in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireSession(); err != nil {
		return err
	}

	logger := e.logger.With(log.FieldComponent, log.ComponentExport)
	var writer export.Writer
	if *dryRun {
		writer = export.NewMemoryWriter()
	} else {
		if err := e.cfg.ValidateExport(); err != nil {
			return err
		}
		creds, err := e.cfg.GoogleCredentials()
		if err != nil {
			return err
		}
		w, err := google.New(ctx, e.cfg.GoogleSpreadsheetID, creds, logger.Slog())
		if err != nil {
			return err
		}
		writer = w
	}

	result, err := export.New(e.backend.API, writer, logger.Slog(), *concurrency).Run(ctx)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Exported %d months and %d expenses", result.Months, result.Expenses)
	if *dryRun {
		msg += " (dry run)"
	}
	e.term.Toast(msg, render.ToastSuccess)
	return nil
}
