package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passbook/internal/api"
	"passbook/internal/core"
	"passbook/internal/render"
)

type call struct {
	name   string
	month  core.MonthKey
	id     string
	amount string
	desc   string
}

type fakeBackend struct {
	isSetup    bool
	setupErr   error
	hasSession bool
	monthPages map[string]core.MonthsPage
	months     map[core.MonthKey]map[string]core.MonthData
	monthsErr  error
	monthErr   error
	writeErr   error
	calls      []call
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		isSetup:    true,
		monthPages: map[string]core.MonthsPage{},
		months:     map[core.MonthKey]map[string]core.MonthData{},
	}
}

func (f *fakeBackend) CheckSetup(context.Context) (bool, error) { return f.isSetup, f.setupErr }
func (f *fakeBackend) HasSession() bool                         { return f.hasSession }

func (f *fakeBackend) GetBalance(context.Context) (api.Balance, error) {
	return api.Balance{TotalBalance: decimal.NewFromInt(42)}, nil
}

func (f *fakeBackend) GetMonths(_ context.Context, cursor string) (core.MonthsPage, error) {
	f.calls = append(f.calls, call{name: "GetMonths", id: cursor})
	if f.monthsErr != nil {
		return core.MonthsPage{}, f.monthsErr
	}
	return f.monthPages[cursor], nil
}

func (f *fakeBackend) GetMonth(_ context.Context, month core.MonthKey, cursor string) (core.MonthData, error) {
	f.calls = append(f.calls, call{name: "GetMonth", month: month, id: cursor})
	if f.monthErr != nil {
		return core.MonthData{}, f.monthErr
	}
	return f.months[month][cursor], nil
}

func (f *fakeBackend) AllMonths(ctx context.Context) ([]core.MonthListItem, error) {
	var all []core.MonthListItem
	cursor := ""
	for {
		page, err := f.GetMonths(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Months...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (f *fakeBackend) AllExpenses(ctx context.Context, month core.MonthKey) (core.MonthData, error) {
	first, err := f.GetMonth(ctx, month, "")
	if err != nil {
		return core.MonthData{}, err
	}
	out := first
	for cursor := first.NextCursor; cursor != ""; {
		page, err := f.GetMonth(ctx, month, cursor)
		if err != nil {
			return core.MonthData{}, err
		}
		out.Expenses = append(out.Expenses, page.Expenses...)
		cursor = page.NextCursor
	}
	out.NextCursor = ""
	return out, nil
}

func (f *fakeBackend) AddExpense(_ context.Context, amount decimal.Decimal, description string) (api.ExpenseResult, error) {
	f.calls = append(f.calls, call{name: "AddExpense", amount: amount.String(), desc: description})
	return api.ExpenseResult{Success: f.writeErr == nil}, f.writeErr
}

func (f *fakeBackend) UpdateExpense(_ context.Context, month core.MonthKey, id string, amount decimal.Decimal, description string) (api.ExpenseResult, error) {
	f.calls = append(f.calls, call{name: "UpdateExpense", month: month, id: id, amount: amount.String(), desc: description})
	return api.ExpenseResult{Success: f.writeErr == nil}, f.writeErr
}

func (f *fakeBackend) DeleteExpense(_ context.Context, month core.MonthKey, id string) error {
	f.calls = append(f.calls, call{name: "DeleteExpense", month: month, id: id})
	return f.writeErr
}

func (f *fakeBackend) CreateMonth(_ context.Context, month core.MonthKey) (api.MonthResult, error) {
	f.calls = append(f.calls, call{name: "CreateMonth", month: month})
	return api.MonthResult{Success: f.writeErr == nil}, f.writeErr
}

func (f *fakeBackend) AddFunds(_ context.Context, month core.MonthKey, amount decimal.Decimal) (api.MonthResult, error) {
	f.calls = append(f.calls, call{name: "AddFunds", month: month, amount: amount.String()})
	return api.MonthResult{Success: f.writeErr == nil}, f.writeErr
}

func (f *fakeBackend) ChangePIN(_ context.Context, currentPIN, newPIN string) (api.SuccessResponse, error) {
	f.calls = append(f.calls, call{name: "ChangePIN", id: currentPIN, desc: newPIN})
	return api.SuccessResponse{Success: f.writeErr == nil}, f.writeErr
}

func (f *fakeBackend) called(name string) []call {
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type fakeView struct {
	screens    []render.Screen
	toasts     []string
	formError  string
	dashboard  *core.MonthData
	empty      int
	expenses   []core.Expense
	moreExp    bool
	months     []core.MonthListItem
	current    core.MonthKey
	moreMonths bool
	balance    decimal.Decimal
}

func (v *fakeView) ShowScreen(s render.Screen)           { v.screens = append(v.screens, s) }
func (v *fakeView) Toast(msg string, _ render.ToastKind) { v.toasts = append(v.toasts, msg) }
func (v *fakeView) FormError(msg string)                 { v.formError = msg }
func (v *fakeView) HideError()                           { v.formError = "" }
func (v *fakeView) Dashboard(d *core.MonthData)          { v.dashboard = d }
func (v *fakeView) EmptyState()                          { v.empty++ }
func (v *fakeView) Expenses(e []core.Expense, more bool) { v.expenses, v.moreExp = e, more }
func (v *fakeView) Balance(total decimal.Decimal)        { v.balance = total }
func (v *fakeView) Months(m []core.MonthListItem, cur core.MonthKey, more bool) {
	v.months, v.current, v.moreMonths = m, cur, more
}

func expense(id string) core.Expense {
	return core.Expense{ID: id, Amount: decimal.NewFromInt(1), Description: id}
}

// seeded returns a backend with two months of history; March has two pages.
func seeded() *fakeBackend {
	b := newFakeBackend()
	b.hasSession = true
	b.monthPages[""] = core.MonthsPage{
		Months:     []core.MonthListItem{{Month: "2025-03"}, {Month: "2025-02"}},
		NextCursor: "m2",
	}
	b.monthPages["m2"] = core.MonthsPage{Months: []core.MonthListItem{{Month: "2025-01"}}}
	b.months["2025-03"] = map[string]core.MonthData{
		"":   {Month: "2025-03", Expenses: []core.Expense{expense("a"), expense("b")}, NextCursor: "e2"},
		"e2": {Month: "2025-03", Expenses: []core.Expense{expense("c")}},
	}
	b.months["2025-02"] = map[string]core.MonthData{
		"": {Month: "2025-02", Expenses: []core.Expense{expense("z")}},
	}
	return b
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("not set up", func(t *testing.T) {
		b := newFakeBackend()
		b.isSetup = false
		a := New(b, &fakeView{}, nil)
		require.NoError(t, a.Init(ctx))
		assert.Equal(t, render.ScreenSetup, a.State().Screen)
	})

	t.Run("stored session", func(t *testing.T) {
		a := New(seeded(), &fakeView{}, nil)
		require.NoError(t, a.Init(ctx))
		assert.Equal(t, render.ScreenMain, a.State().Screen)
		assert.Equal(t, core.MonthKey("2025-03"), a.State().CurrentMonth)
	})

	t.Run("stored session rejected", func(t *testing.T) {
		b := seeded()
		b.monthsErr = api.ErrSessionExpired
		a := New(b, &fakeView{}, nil)
		require.NoError(t, a.Init(ctx))
		assert.Equal(t, render.ScreenAuth, a.State().Screen)
	})

	t.Run("no session", func(t *testing.T) {
		a := New(newFakeBackend(), &fakeView{}, nil)
		require.NoError(t, a.Init(ctx))
		assert.Equal(t, render.ScreenAuth, a.State().Screen)
	})

	t.Run("server unreachable", func(t *testing.T) {
		b := newFakeBackend()
		b.setupErr = errors.New("dial tcp: connection refused")
		v := &fakeView{}
		a := New(b, v, nil)
		assert.Error(t, a.Init(ctx))
		assert.Equal(t, []string{MsgConnectFailed}, v.toasts)
		assert.Equal(t, render.ScreenAuth, a.State().Screen)
	})
}

func TestLoadInitialDataEmpty(t *testing.T) {
	v := &fakeView{}
	a := New(newFakeBackend(), v, nil)
	require.NoError(t, a.LoadInitialData(context.Background()))
	assert.Equal(t, 1, v.empty)
	assert.Empty(t, a.State().CurrentMonth)
	assert.Nil(t, a.State().MonthData)
}

func TestPaginationAppends(t *testing.T) {
	ctx := context.Background()
	v := &fakeView{}
	a := New(seeded(), v, nil)
	require.NoError(t, a.LoadInitialData(ctx))

	st := a.State()
	assert.Len(t, st.Expenses, 2)
	assert.Equal(t, "e2", st.ExpensesCursor)
	assert.True(t, v.moreExp)
	assert.True(t, v.moreMonths)

	require.NoError(t, a.LoadMoreExpenses(ctx))
	st = a.State()
	assert.Equal(t, []string{"a", "b", "c"}, ids(st.Expenses))
	assert.Empty(t, st.ExpensesCursor)
	assert.False(t, v.moreExp)

	// exhausted: no further request
	before := len(a.backend.(*fakeBackend).calls)
	require.NoError(t, a.LoadMoreExpenses(ctx))
	assert.Len(t, a.backend.(*fakeBackend).calls, before)

	require.NoError(t, a.LoadMoreMonths(ctx))
	assert.Len(t, a.State().Months, 3)
	assert.Empty(t, a.State().MonthsCursor)
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	v := &fakeView{}
	a := New(seeded(), v, nil)
	require.NoError(t, a.LoadInitialData(ctx))

	require.NoError(t, a.LoadAllExpenses(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, ids(a.State().Expenses))
	require.NoError(t, a.LoadAllMonths(ctx))
	assert.Len(t, v.months, 3)
	assert.False(t, v.moreMonths)
}

func TestSelectMonth(t *testing.T) {
	ctx := context.Background()
	v := &fakeView{}
	b := seeded()
	a := New(b, v, nil)

	require.NoError(t, a.SelectMonth(ctx, "2025-02"))
	assert.Equal(t, core.MonthKey("2025-02"), a.State().CurrentMonth)
	assert.Equal(t, []string{"z"}, ids(v.expenses))

	assert.ErrorIs(t, a.SelectMonth(ctx, "2025-2"), core.ErrInvalidMonth)

	b.monthErr = errors.New("boom")
	assert.Error(t, a.SelectMonth(ctx, "2025-03"))
	assert.Contains(t, v.toasts, MsgMonthLoadFailed)
}

func TestAddExpenseValidation(t *testing.T) {
	tests := []struct {
		amount, desc string
		want         error
	}{
		{"abc", "Lunch", core.ErrInvalidAmount},
		{"0", "Lunch", core.ErrInvalidAmount},
		{"-3", "Lunch", core.ErrInvalidAmount},
		{"100000.00", "Lunch", core.ErrAmountTooLarge},
		{"12.50", "   ", core.ErrEmptyDescription},
	}
	for _, tt := range tests {
		b := seeded()
		v := &fakeView{}
		a := New(b, v, nil)
		err := a.AddExpense(context.Background(), tt.amount, tt.desc)
		assert.ErrorIs(t, err, tt.want, tt.amount)
		assert.Equal(t, tt.want.Error(), v.formError)
		assert.Empty(t, b.called("AddExpense"))
	}
}

func TestAddExpense(t *testing.T) {
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)

	require.NoError(t, a.AddExpense(context.Background(), "99999.99", "  Rent  "))
	got := b.called("AddExpense")
	require.Len(t, got, 1)
	assert.Equal(t, "99999.99", got[0].amount)
	assert.Equal(t, "Rent", got[0].desc)
	assert.Equal(t, []string{MsgExpenseAdded}, v.toasts)
	assert.Equal(t, core.MonthKey("2025-03"), a.State().CurrentMonth)
}

func TestAddExpenseServerError(t *testing.T) {
	b := seeded()
	b.writeErr = &api.Error{Status: 400, Message: "Description too long"}
	v := &fakeView{}
	a := New(b, v, nil)

	assert.Error(t, a.AddExpense(context.Background(), "5", "Coffee"))
	assert.Equal(t, "Description too long", v.formError)
	assert.Empty(t, v.toasts)
}

func TestSessionExpiredNotShownInline(t *testing.T) {
	b := seeded()
	b.writeErr = api.ErrSessionExpired
	v := &fakeView{}
	a := New(b, v, nil)
	a.HandleSessionExpired()

	assert.ErrorIs(t, a.AddExpense(context.Background(), "5", "Coffee"), api.ErrSessionExpired)
	assert.Empty(t, v.formError)
	assert.Equal(t, []string{MsgSessionExpired}, v.toasts)
	assert.Equal(t, render.ScreenAuth, a.State().Screen)
}

func TestEditAndDelete(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)
	require.NoError(t, a.LoadInitialData(ctx))

	require.NoError(t, a.EditExpense(ctx, "EXP#1#a", "7", "Tea"))
	got := b.called("UpdateExpense")
	require.Len(t, got, 1)
	assert.Equal(t, call{name: "UpdateExpense", month: "2025-03", id: "EXP#1#a", amount: "7", desc: "Tea"}, got[0])
	assert.Empty(t, a.State().EditingExpenseID)

	require.NoError(t, a.DeleteExpense(ctx, "EXP#1#a"))
	assert.Len(t, b.called("DeleteExpense"), 1)
	assert.Equal(t, []string{MsgExpenseUpdated, MsgExpenseDeleted}, v.toasts)

	b.writeErr = errors.New("boom")
	assert.Error(t, a.DeleteExpense(ctx, "x"))
	assert.Contains(t, v.toasts, MsgDeleteFailed)
}

func TestSetCurrentMonthWithoutLoading(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)

	require.NoError(t, a.SetCurrentMonth("2025-01"))
	assert.Equal(t, core.MonthKey("2025-01"), a.State().CurrentMonth)
	assert.Empty(t, b.called("GetMonth"))

	require.NoError(t, a.DeleteExpense(ctx, "EXP#1#a"))
	got := b.called("DeleteExpense")
	require.Len(t, got, 1)
	assert.Equal(t, core.MonthKey("2025-01"), got[0].month)

	assert.ErrorIs(t, a.SetCurrentMonth("2025-13"), core.ErrInvalidMonth)
	assert.Equal(t, core.ErrInvalidMonth.Error(), v.formError)
	assert.Equal(t, core.MonthKey("2025-01"), a.State().CurrentMonth)
}

func TestEditKeepsIDOnFailure(t *testing.T) {
	b := seeded()
	a := New(b, &fakeView{}, nil)
	require.NoError(t, a.LoadInitialData(context.Background()))

	assert.Error(t, a.EditExpense(context.Background(), "id-1", "", "Tea"))
	assert.Equal(t, "id-1", a.State().EditingExpenseID)
	a.CancelEdit()
	assert.Empty(t, a.State().EditingExpenseID)
}

func TestCreateMonth(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)

	assert.ErrorIs(t, a.CreateMonth(ctx, "2025-4"), core.ErrInvalidMonth)
	assert.ErrorIs(t, a.CreateMonth(ctx, "2025-13"), core.ErrInvalidMonth)
	assert.Empty(t, b.called("CreateMonth"))

	require.NoError(t, a.CreateMonth(ctx, "2025-04"))
	assert.Equal(t, []call{{name: "CreateMonth", month: "2025-04"}}, b.called("CreateMonth"))
	assert.Contains(t, v.toasts, MsgMonthCreated)
}

func TestAddFunds(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)

	assert.ErrorIs(t, a.AddFunds(ctx, "50"), core.ErrNoMonthSelected)
	assert.Equal(t, "No month selected", v.formError)

	require.NoError(t, a.LoadInitialData(ctx))
	require.NoError(t, a.AddFunds(ctx, "50"))
	assert.Equal(t, []call{{name: "AddFunds", month: "2025-03", amount: "50"}}, b.called("AddFunds"))
	assert.Contains(t, v.toasts, MsgFundsAdded)
}

func TestAmountRulesShared(t *testing.T) {
	ctx := context.Background()
	actions := map[string]func(a *App, amount string) error{
		"add":   func(a *App, amount string) error { return a.AddExpense(ctx, amount, "Lunch") },
		"edit":  func(a *App, amount string) error { return a.EditExpense(ctx, "EXP#1#a", amount, "Lunch") },
		"funds": func(a *App, amount string) error { return a.AddFunds(ctx, amount) },
	}
	for name, act := range actions {
		t.Run(name, func(t *testing.T) {
			b := seeded()
			v := &fakeView{}
			a := New(b, v, nil)
			require.NoError(t, a.LoadInitialData(ctx))
			before := len(b.calls)

			assert.ErrorIs(t, act(a, "0"), core.ErrInvalidAmount)
			assert.ErrorIs(t, act(a, "0,00"), core.ErrInvalidAmount)
			assert.ErrorIs(t, act(a, "100000"), core.ErrAmountTooLarge)
			assert.Equal(t, core.ErrAmountTooLarge.Error(), v.formError)
			assert.Len(t, b.calls, before)
		})
	}
}

func TestChangePIN(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	v := &fakeView{}
	a := New(b, v, nil)

	assert.ErrorIs(t, a.ChangePIN(ctx, "1234", "12", "12"), core.ErrInvalidNewPIN)
	assert.Equal(t, "New PIN must be 4-6 digits", v.formError)
	assert.ErrorIs(t, a.ChangePIN(ctx, "1234", "5678", "5679"), core.ErrPINMismatch)
	assert.Equal(t, "New PINs do not match", v.formError)
	assert.Empty(t, b.called("ChangePIN"))

	require.NoError(t, a.ChangePIN(ctx, "1234", "5678", "5678"))
	assert.Equal(t, []string{MsgPINChanged}, v.toasts)
}

func TestShowBalance(t *testing.T) {
	v := &fakeView{}
	a := New(seeded(), v, nil)
	require.NoError(t, a.ShowBalance(context.Background()))
	assert.True(t, v.balance.Equal(decimal.NewFromInt(42)))
}

func ids(expenses []core.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}
