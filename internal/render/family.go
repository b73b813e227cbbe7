package render

import (
	"fmt"
	"text/tabwriter"
	"time"

	"passbook/internal/core"
	"passbook/internal/family"
)

// Children prints the family's children with allowance and balance.
func (t *Terminal) Children(children []family.Child) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(children) == 0 {
		t.printf("%s\n", family.MsgNoChildren)
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name\tAge\tAllowance\tBalance\tID\n")
	for _, c := range children {
		fmt.Fprintf(w, "%s\t%d\t%s/week\t%s\t%s\n",
			c.DisplayName, c.Age,
			core.FormatCurrency(c.WeeklyAllowance), core.FormatCurrency(c.Balance), c.UserID)
	}
	_ = w.Flush()
}

// FamilyExpenses prints expenses logged against children.
func (t *Terminal) FamilyExpenses(expenses []family.Expense) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(expenses) == 0 {
		t.printf("%s\n", family.MsgNoExpenses)
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Date\tChild\tDescription\tCategory\tAmount\n")
	for _, e := range expenses {
		child := e.ChildName
		if child == "" {
			child = "Unknown"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			expenseDate(e.Date), child, e.Description, e.Category, core.FormatCurrency(e.Amount))
	}
	_ = w.Flush()
}

func expenseDate(s string) string {
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return d.Local().Format("Jan 2, 2006")
}
