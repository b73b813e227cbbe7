package api

import (
	"context"
	"fmt"

	"passbook/internal/core"
)

// collect follows next-cursor links from an empty cursor until a page comes
// back without one. A cursor seen twice means the backend is looping.
func collect[T any](ctx context.Context, fetch func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	var (
		all    []T
		cursor string
		seen   = make(map[string]struct{})
	)
	for {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		if _, dup := seen[next]; dup {
			return all, fmt.Errorf("pagination loop: cursor %q repeated", next)
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

// AllMonths returns the whole month history, newest first.
func (c *Client) AllMonths(ctx context.Context) ([]core.MonthListItem, error) {
	return collect(ctx, func(ctx context.Context, cursor string) ([]core.MonthListItem, string, error) {
		page, err := c.GetMonths(ctx, cursor)
		return page.Months, page.NextCursor, err
	})
}

// AllExpenses returns every expense of month together with the month data of
// the first page (summary and balance).
func (c *Client) AllExpenses(ctx context.Context, month core.MonthKey) (core.MonthData, error) {
	var first *core.MonthData
	expenses, err := collect(ctx, func(ctx context.Context, cursor string) ([]core.Expense, string, error) {
		data, err := c.GetMonth(ctx, month, cursor)
		if err == nil && first == nil {
			first = &data
		}
		return data.Expenses, data.NextCursor, err
	})
	if err != nil {
		return core.MonthData{}, err
	}
	out := *first
	out.Expenses = expenses
	out.NextCursor = ""
	return out, nil
}
