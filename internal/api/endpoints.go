package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"passbook/internal/core"
)

type (
	SetupStatus struct {
		IsSetup bool `json:"is_setup"`
	}

	// VerifyResult is the backend's answer to a PIN check. A failed check
	// arrives with status 401 and still carries this body.
	VerifyResult struct {
		Success           bool   `json:"success"`
		Token             string `json:"token,omitempty"`
		Error             string `json:"error,omitempty"`
		AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
		LockedUntil       int64  `json:"locked_until,omitempty"`
	}

	Balance struct {
		TotalBalance decimal.Decimal `json:"total_balance"`
	}

	ExpenseResult struct {
		Success      bool            `json:"success"`
		Expense      *core.Expense   `json:"expense,omitempty"`
		MonthBalance decimal.Decimal `json:"month_balance"`
		TotalBalance decimal.Decimal `json:"total_balance"`
	}

	// MonthResult answers month creation and fund top-ups.
	MonthResult struct {
		Success      bool               `json:"success"`
		Summary      *core.MonthSummary `json:"summary"`
		TotalBalance decimal.Decimal    `json:"total_balance"`
	}

	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
)

// Locked reports whether the answer carries a lockout deadline.
func (r VerifyResult) Locked() bool {
	return r.LockedUntil > 0
}

// LockedUntilTime converts the unix-seconds lockout deadline.
func (r VerifyResult) LockedUntilTime() time.Time {
	return time.Unix(r.LockedUntil, 0)
}

type (
	pinRequest struct {
		Pin string `json:"pin"`
	}
	changePINRequest struct {
		CurrentPin string `json:"current_pin"`
		NewPin     string `json:"new_pin"`
	}
	expenseRequest struct {
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
	}
	monthRequest struct {
		Month core.MonthKey `json:"month"`
	}
	fundsRequest struct {
		Amount float64 `json:"amount"`
	}
)

// CheckSetup reports whether a PIN has been configured on the backend.
func (c *Client) CheckSetup(ctx context.Context) (bool, error) {
	var out SetupStatus
	if err := c.Do(ctx, http.MethodGet, "/api/auth/status", nil, &out); err != nil {
		return false, err
	}
	return out.IsSetup, nil
}

func (c *Client) SetupPIN(ctx context.Context, pin string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/setup", pinRequest{Pin: pin}, &out)
	return out, err
}

// VerifyPIN checks pin and stores the issued token on success. A rejected
// PIN is not an error: the result carries the reason, remaining attempts or
// lockout deadline, and the current session is left untouched.
func (c *Client) VerifyPIN(ctx context.Context, pin string) (VerifyResult, error) {
	status, data, err := c.send(ctx, http.MethodPost, "/api/auth/verify", pinRequest{Pin: pin})
	if err != nil {
		return VerifyResult{}, err
	}

	var out VerifyResult
	switch {
	case status == http.StatusUnauthorized:
		if err := json.Unmarshal(data, &out); err != nil {
			return VerifyResult{}, DecodeError(status, data)
		}
		out.Success = false
		return out, nil
	case status < 200 || status > 299:
		return VerifyResult{}, DecodeError(status, data)
	}

	if err := decode(data, &out); err != nil {
		return VerifyResult{}, err
	}
	if out.Success && out.Token != "" {
		if err := c.SetSession(ctx, out.Token); err != nil {
			return out, err
		}
		c.invalidate()
	}
	return out, nil
}

func (c *Client) ChangePIN(ctx context.Context, currentPIN, newPIN string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/change", changePINRequest{CurrentPin: currentPIN, NewPin: newPIN}, &out)
	return out, err
}

// Logout ends the session on the server. The local session is cleared even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearSession(ctx)
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	var out Balance
	err := c.Do(ctx, http.MethodGet, "/api/balance", nil, &out)
	return out, err
}

// GetMonth fetches one page of a month's expenses. An empty cursor asks for
// the first page.
func (c *Client) GetMonth(ctx context.Context, month core.MonthKey, cursor string) (core.MonthData, error) {
	if !month.Valid() {
		return core.MonthData{}, core.ErrInvalidMonth
	}
	var out core.MonthData
	err := c.get(ctx, c.pageQuery("/api/month/"+month.String(), cursor), &out)
	return out, err
}

// GetMonths fetches one page of the month history, newest first.
func (c *Client) GetMonths(ctx context.Context, cursor string) (core.MonthsPage, error) {
	var out core.MonthsPage
	err := c.get(ctx, c.pageQuery("/api/months", cursor), &out)
	return out, err
}

// AddExpense records an expense in the current month; the backend creates
// the month if needed.
func (c *Client) AddExpense(ctx context.Context, amount decimal.Decimal, description string) (ExpenseResult, error) {
	var out ExpenseResult
	err := c.mutate(ctx, http.MethodPost, "/api/expense", expenseRequest{
		Amount:      amount.InexactFloat64(),
		Description: description,
	}, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, month core.MonthKey, id string, amount decimal.Decimal, description string) (ExpenseResult, error) {
	var out ExpenseResult
	err := c.mutate(ctx, http.MethodPut, expensePath(month, id), expenseRequest{
		Amount:      amount.InexactFloat64(),
		Description: description,
	}, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, month core.MonthKey, id string) error {
	return c.mutate(ctx, http.MethodDelete, expensePath(month, id), nil, nil)
}

func (c *Client) CreateMonth(ctx context.Context, month core.MonthKey) (MonthResult, error) {
	if !month.Valid() {
		return MonthResult{}, core.ErrInvalidMonth
	}
	var out MonthResult
	err := c.mutate(ctx, http.MethodPost, "/api/month", monthRequest{Month: month}, &out)
	return out, err
}

func (c *Client) AddFunds(ctx context.Context, month core.MonthKey, amount decimal.Decimal) (MonthResult, error) {
	if !month.Valid() {
		return MonthResult{}, core.ErrInvalidMonth
	}
	var out MonthResult
	err := c.mutate(ctx, http.MethodPost, fmt.Sprintf("/api/month/%s/funds", month), fundsRequest{
		Amount: amount.InexactFloat64(),
	}, &out)
	return out, err
}

// Expense ids contain '#', so they are path-escaped.
func expensePath(month core.MonthKey, id string) string {
	return fmt.Sprintf("/api/expense/%s/%s", month, url.PathEscape(id))
}

func (c *Client) pageQuery(path, cursor string) string {
	q := path + "?limit=" + strconv.Itoa(c.pageSize)
	if cursor != "" {
		q += "&cursor=" + url.QueryEscape(cursor)
	}
	return q
}
