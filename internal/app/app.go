// Package app is the main controller: it holds the client-side state (the
// selected month, the loaded expense and month pages and their cursors),
// validates user input, calls the backend and asks the view to redraw.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"passbook/internal/api"
	"passbook/internal/core"
	"passbook/internal/render"
)

// User-facing messages.
const (
	MsgConnectFailed    = "Failed to connect to server"
	MsgSessionExpired   = "Session expired. Please log in again."
	MsgExpenseAdded     = "Expense added!"
	MsgExpenseUpdated   = "Expense updated!"
	MsgExpenseDeleted   = "Expense deleted"
	MsgDeleteFailed     = "Failed to delete expense"
	MsgMonthCreated     = "Month created!"
	MsgFundsAdded       = "Funds added!"
	MsgPINChanged       = "PIN changed successfully!"
	MsgHistoryFailed    = "Failed to load history"
	MsgMoreExpensesFail = "Failed to load more expenses"
	MsgMoreMonthsFail   = "Failed to load more months"
	MsgMonthLoadFailed  = "Failed to load month data"
)

// Backend is the subset of the API client used by the controller.
type Backend interface {
	CheckSetup(ctx context.Context) (bool, error)
	HasSession() bool
	GetBalance(ctx context.Context) (api.Balance, error)
	GetMonths(ctx context.Context, cursor string) (core.MonthsPage, error)
	GetMonth(ctx context.Context, month core.MonthKey, cursor string) (core.MonthData, error)
	AllMonths(ctx context.Context) ([]core.MonthListItem, error)
	AllExpenses(ctx context.Context, month core.MonthKey) (core.MonthData, error)
	AddExpense(ctx context.Context, amount decimal.Decimal, description string) (api.ExpenseResult, error)
	UpdateExpense(ctx context.Context, month core.MonthKey, id string, amount decimal.Decimal, description string) (api.ExpenseResult, error)
	DeleteExpense(ctx context.Context, month core.MonthKey, id string) error
	CreateMonth(ctx context.Context, month core.MonthKey) (api.MonthResult, error)
	AddFunds(ctx context.Context, month core.MonthKey, amount decimal.Decimal) (api.MonthResult, error)
	ChangePIN(ctx context.Context, currentPIN, newPIN string) (api.SuccessResponse, error)
}

// View is implemented by render.Terminal.
type View interface {
	ShowScreen(s render.Screen)
	Toast(msg string, kind render.ToastKind)
	FormError(msg string)
	HideError()
	Dashboard(data *core.MonthData)
	EmptyState()
	Expenses(expenses []core.Expense, hasMore bool)
	Months(months []core.MonthListItem, current core.MonthKey, hasMore bool)
	Balance(total decimal.Decimal)
}

// State is everything the client remembers between actions. It is replaced
// wholesale on reload; nothing here is persisted.
type State struct {
	Screen           render.Screen
	CurrentMonth     core.MonthKey
	MonthData        *core.MonthData
	Expenses         []core.Expense
	ExpensesCursor   string
	Months           []core.MonthListItem
	MonthsCursor     string
	EditingExpenseID string
}

type App struct {
	backend Backend
	view    View
	logger  *slog.Logger
	state   State
}

func New(backend Backend, view View, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{backend: backend, view: view, logger: logger}
}

// State returns a copy of the current state.
func (a *App) State() State {
	return a.state
}

func (a *App) showScreen(s render.Screen) {
	a.state.Screen = s
	a.view.ShowScreen(s)
}

// Init picks the first screen: setup when no PIN exists, main when a stored
// session still works, login otherwise.
func (a *App) Init(ctx context.Context) error {
	isSetup, err := a.backend.CheckSetup(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to initialize", "error", err)
		a.view.Toast(MsgConnectFailed, render.ToastError)
		a.showScreen(render.ScreenAuth)
		return fmt.Errorf("check setup: %w", err)
	}

	switch {
	case !isSetup:
		a.showScreen(render.ScreenSetup)
	case a.backend.HasSession():
		if err := a.LoadInitialData(ctx); err != nil {
			a.logger.DebugContext(ctx, "Stored session unusable", "error", err)
			a.showScreen(render.ScreenAuth)
			return nil
		}
		a.showScreen(render.ScreenMain)
	default:
		a.showScreen(render.ScreenAuth)
	}
	return nil
}

// OnAuthSuccess moves to the main screen and loads the latest month.
func (a *App) OnAuthSuccess(ctx context.Context) error {
	a.showScreen(render.ScreenMain)
	return a.LoadInitialData(ctx)
}

// HandleSessionExpired is registered with the API client; it runs after a
// 401 has already cleared the session.
func (a *App) HandleSessionExpired() {
	a.view.Toast(MsgSessionExpired, render.ToastError)
	a.showScreen(render.ScreenAuth)
}

// LoadInitialData loads the first page of months and selects the newest.
func (a *App) LoadInitialData(ctx context.Context) error {
	page, err := a.backend.GetMonths(ctx, "")
	if err != nil {
		return err
	}
	a.state.Months = page.Months
	a.state.MonthsCursor = page.NextCursor

	if len(page.Months) > 0 {
		a.state.CurrentMonth = page.Months[0].Month
		if err := a.LoadCurrentMonth(ctx); err != nil {
			return err
		}
	} else {
		a.state.CurrentMonth = ""
		a.state.MonthData = nil
		a.state.Expenses = nil
		a.state.ExpensesCursor = ""
		a.view.EmptyState()
	}

	a.view.Months(a.state.Months, a.state.CurrentMonth, a.state.MonthsCursor != "")
	return nil
}

// LoadCurrentMonth reloads the first page of the selected month.
func (a *App) LoadCurrentMonth(ctx context.Context) error {
	if a.state.CurrentMonth == "" {
		return core.ErrNoMonthSelected
	}
	data, err := a.backend.GetMonth(ctx, a.state.CurrentMonth, "")
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to load month data", "month", a.state.CurrentMonth, "error", err)
		return err
	}
	a.setMonth(data)
	return nil
}

func (a *App) setMonth(data core.MonthData) {
	a.state.MonthData = &data
	a.state.Expenses = data.Expenses
	a.state.ExpensesCursor = data.NextCursor
	a.view.Dashboard(a.state.MonthData)
	a.view.Expenses(a.state.Expenses, a.state.ExpensesCursor != "")
}

// LoadMonthsList refreshes the first page of the month history.
func (a *App) LoadMonthsList(ctx context.Context) error {
	page, err := a.backend.GetMonths(ctx, "")
	if err != nil {
		a.view.Toast(MsgHistoryFailed, render.ToastError)
		return err
	}
	a.state.Months = page.Months
	a.state.MonthsCursor = page.NextCursor
	a.view.Months(a.state.Months, a.state.CurrentMonth, a.state.MonthsCursor != "")
	return nil
}

// LoadAllMonths follows the month cursor to the end.
func (a *App) LoadAllMonths(ctx context.Context) error {
	months, err := a.backend.AllMonths(ctx)
	if err != nil {
		a.view.Toast(MsgHistoryFailed, render.ToastError)
		return err
	}
	a.state.Months = months
	a.state.MonthsCursor = ""
	a.view.Months(a.state.Months, a.state.CurrentMonth, false)
	return nil
}

// LoadMoreExpenses appends the next page of the selected month. It is a
// no-op when the list is exhausted.
func (a *App) LoadMoreExpenses(ctx context.Context) error {
	if a.state.ExpensesCursor == "" {
		return nil
	}
	data, err := a.backend.GetMonth(ctx, a.state.CurrentMonth, a.state.ExpensesCursor)
	if err != nil {
		a.view.Toast(MsgMoreExpensesFail, render.ToastError)
		return err
	}
	a.state.Expenses = append(a.state.Expenses, data.Expenses...)
	a.state.ExpensesCursor = data.NextCursor
	a.view.Expenses(a.state.Expenses, a.state.ExpensesCursor != "")
	return nil
}

// LoadAllExpenses replaces the selected month with every page of it.
func (a *App) LoadAllExpenses(ctx context.Context) error {
	if a.state.CurrentMonth == "" {
		return core.ErrNoMonthSelected
	}
	data, err := a.backend.AllExpenses(ctx, a.state.CurrentMonth)
	if err != nil {
		a.view.Toast(MsgMonthLoadFailed, render.ToastError)
		return err
	}
	a.setMonth(data)
	return nil
}

// LoadMoreMonths appends the next page of the month history.
func (a *App) LoadMoreMonths(ctx context.Context) error {
	if a.state.MonthsCursor == "" {
		return nil
	}
	page, err := a.backend.GetMonths(ctx, a.state.MonthsCursor)
	if err != nil {
		a.view.Toast(MsgMoreMonthsFail, render.ToastError)
		return err
	}
	a.state.Months = append(a.state.Months, page.Months...)
	a.state.MonthsCursor = page.NextCursor
	a.view.Months(a.state.Months, a.state.CurrentMonth, a.state.MonthsCursor != "")
	return nil
}

// SetCurrentMonth makes month current without loading it.
func (a *App) SetCurrentMonth(month string) error {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return a.validationError(err)
	}
	a.state.CurrentMonth = key
	return nil
}

// SelectMonth makes month current and loads its first page.
func (a *App) SelectMonth(ctx context.Context, month string) error {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		a.view.FormError(err.Error())
		return err
	}
	a.state.CurrentMonth = key
	data, err := a.backend.GetMonth(ctx, key, "")
	if err != nil {
		a.view.Toast(MsgMonthLoadFailed, render.ToastError)
		return err
	}
	a.setMonth(data)
	return nil
}

// ShowBalance prints the overall balance.
func (a *App) ShowBalance(ctx context.Context) error {
	bal, err := a.backend.GetBalance(ctx)
	if err != nil {
		a.formError(err)
		return err
	}
	a.view.Balance(bal.TotalBalance)
	return nil
}

// formError shows err inline unless it is a session expiry, which the
// expiry listener already reported.
func (a *App) formError(err error) {
	if errors.Is(err, api.ErrSessionExpired) {
		return
	}
	a.view.FormError(err.Error())
}

func (a *App) validationError(err error) error {
	a.view.FormError(err.Error())
	return err
}
