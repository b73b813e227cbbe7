package app

import (
	"context"

	"passbook/internal/core"
	"passbook/internal/render"
)

// AddExpense records an expense in the current calendar month and reloads,
// since the backend may have created the month on the way.
func (a *App) AddExpense(ctx context.Context, amountInput, descriptionInput string) error {
	a.view.HideError()

	amount, err := core.ParseAmount(amountInput)
	if err != nil {
		return a.validationError(err)
	}
	description, err := core.ValidateDescription(descriptionInput)
	if err != nil {
		return a.validationError(err)
	}

	if _, err := a.backend.AddExpense(ctx, amount, description); err != nil {
		a.formError(err)
		return err
	}
	a.view.Toast(MsgExpenseAdded, render.ToastSuccess)
	return a.LoadInitialData(ctx)
}

// EditExpense replaces the amount and description of an expense in the
// selected month.
func (a *App) EditExpense(ctx context.Context, id, amountInput, descriptionInput string) error {
	a.view.HideError()
	a.state.EditingExpenseID = id

	amount, err := core.ParseAmount(amountInput)
	if err != nil {
		return a.validationError(err)
	}
	description, err := core.ValidateDescription(descriptionInput)
	if err != nil {
		return a.validationError(err)
	}
	if a.state.CurrentMonth == "" {
		return a.validationError(core.ErrNoMonthSelected)
	}

	if _, err := a.backend.UpdateExpense(ctx, a.state.CurrentMonth, id, amount, description); err != nil {
		a.formError(err)
		return err
	}
	a.state.EditingExpenseID = ""
	a.view.Toast(MsgExpenseUpdated, render.ToastSuccess)
	return a.LoadCurrentMonth(ctx)
}

// CancelEdit forgets the expense being edited.
func (a *App) CancelEdit() {
	a.state.EditingExpenseID = ""
	a.view.HideError()
}

func (a *App) DeleteExpense(ctx context.Context, id string) error {
	if a.state.CurrentMonth == "" {
		return a.validationError(core.ErrNoMonthSelected)
	}
	if err := a.backend.DeleteExpense(ctx, a.state.CurrentMonth, id); err != nil {
		a.view.Toast(MsgDeleteFailed, render.ToastError)
		return err
	}
	a.view.Toast(MsgExpenseDeleted, render.ToastSuccess)
	return a.LoadCurrentMonth(ctx)
}

// CreateMonth opens a new month record and reloads from the newest month.
func (a *App) CreateMonth(ctx context.Context, monthInput string) error {
	a.view.HideError()

	month, err := core.ParseMonthKey(monthInput)
	if err != nil {
		return a.validationError(err)
	}
	if _, err := a.backend.CreateMonth(ctx, month); err != nil {
		a.formError(err)
		return err
	}
	a.view.Toast(MsgMonthCreated, render.ToastSuccess)
	return a.LoadInitialData(ctx)
}

// AddFunds tops up the selected month's allowance.
func (a *App) AddFunds(ctx context.Context, amountInput string) error {
	a.view.HideError()

	amount, err := core.ParseAmount(amountInput)
	if err != nil {
		return a.validationError(err)
	}
	if a.state.CurrentMonth == "" {
		return a.validationError(core.ErrNoMonthSelected)
	}

	if _, err := a.backend.AddFunds(ctx, a.state.CurrentMonth, amount); err != nil {
		a.formError(err)
		return err
	}
	a.view.Toast(MsgFundsAdded, render.ToastSuccess)
	if err := a.LoadCurrentMonth(ctx); err != nil {
		return err
	}
	return a.LoadMonthsList(ctx)
}

// ChangePIN validates the new PIN locally before asking the backend.
func (a *App) ChangePIN(ctx context.Context, currentPIN, newPIN, confirmPIN string) error {
	a.view.HideError()

	if err := core.ValidatePINChange(newPIN, confirmPIN); err != nil {
		return a.validationError(err)
	}
	if _, err := a.backend.ChangePIN(ctx, currentPIN, newPIN); err != nil {
		a.formError(err)
		return err
	}
	a.view.Toast(MsgPINChanged, render.ToastSuccess)
	return nil
}
