package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"passbook/internal/api"
	"passbook/internal/app"
	"passbook/internal/family"
	"passbook/internal/log"
	"passbook/internal/render"
)

const familyUsage = "usage: passbook family login|logout|create|children|add-child|expenses|add-expense|add-funds [flags]"

func runFamily(ctx context.Context, e *env, args []string) error {
	sub, args := leadingArg(args)
	if sub == "" {
		return errors.New(familyUsage)
	}
	if e.backend.Family == nil {
		return errors.New("PASSBOOK_FAMILY_API_URL is not set")
	}

	fa := family.NewApp(e.backend.Family, e.logger.With(log.FieldComponent, log.ComponentFamily).Slog())
	if err := fa.Init(ctx); err != nil {
		return err
	}

	var err error
	switch sub {
	case "login":
		err = familyLogin(ctx, e, fa, args)
	case "logout":
		err = fa.Logout(ctx)
		if err == nil {
			e.term.Toast("Logged out", render.ToastInfo)
		}
	case "create":
		err = familyCreate(ctx, e, fa, args)
	case "children":
		err = familyChildren(ctx, e, fa)
	case "add-child":
		err = familyAddChild(ctx, e, fa, args)
	case "expenses":
		err = familyExpenses(ctx, e, fa)
	case "add-expense":
		err = familyAddExpense(ctx, e, fa, args)
	case "add-funds":
		err = familyAddFunds(ctx, e, fa, args)
	default:
		return fmt.Errorf("unknown family command %q\n%s", sub, familyUsage)
	}

	if errors.Is(err, api.ErrSessionExpired) {
		e.term.Toast(app.MsgSessionExpired, render.ToastError)
	}
	return err
}

func familyLogin(ctx context.Context, e *env, fa *family.App, args []string) error {
	fs := flag.NewFlagSet("family login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := e.valueOr(*email, "Email: ")
	if err != nil {
		return err
	}
	password, err := e.prompt("Password: ")
	if err != nil {
		return err
	}
	if err := fa.Login(ctx, addr, password); err != nil {
		return err
	}

	e.term.Toast(family.MsgLoginSuccess, render.ToastSuccess)
	if fa.NeedsFamily() {
		e.term.Toast("Create your family with `passbook family create`", render.ToastInfo)
	}
	return nil
}

func familyCreate(ctx context.Context, e *env, fa *family.App, args []string) error {
	fs := flag.NewFlagSet("family create", flag.ContinueOnError)
	name := fs.String("name", "", "family name")
	code := fs.String("currency", "USD", "currency: "+strings.Join(family.Currencies, ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := fa.Navigate(family.PageFamily); err != nil {
		return err
	}

	n, err := e.valueOr(*name, "Family name: ")
	if err != nil {
		return err
	}
	if err := fa.CreateFamily(ctx, n, *code); err != nil {
		return err
	}
	e.term.Toast(family.MsgFamilyCreated, render.ToastSuccess)
	return nil
}

func familyChildren(ctx context.Context, e *env, fa *family.App) error {
	if err := fa.Navigate(family.PageChildren); err != nil {
		return err
	}
	if err := fa.LoadChildren(ctx); err != nil {
		return err
	}
	e.term.Children(fa.State().Children)
	return nil
}

func familyAddChild(ctx context.Context, e *env, fa *family.App, args []string) error {
	fs := flag.NewFlagSet("family add-child", flag.ContinueOnError)
	name := fs.String("name", "", "child's name")
	age := fs.Int("age", 0, fmt.Sprintf("age (%d-%d)", family.MinChildAge, family.MaxChildAge))
	allowance := fs.String("allowance", "0", "weekly allowance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := fa.Navigate(family.PageChildren); err != nil {
		return err
	}

	n, err := e.valueOr(*name, "Name: ")
	if err != nil {
		return err
	}
	years := *age
	if years == 0 {
		raw, err := e.prompt("Age: ")
		if err != nil {
			return err
		}
		if years, err = strconv.Atoi(raw); err != nil {
			return family.ErrInvalidAge
		}
	}
	weekly, err := decimal.NewFromString(strings.TrimSpace(*allowance))
	if err != nil {
		return fmt.Errorf("invalid allowance %q", *allowance)
	}

	if err := fa.AddChild(ctx, n, years, weekly); err != nil {
		return err
	}
	e.term.Toast(family.MsgChildAdded, render.ToastSuccess)
	e.term.Children(fa.State().Children)
	return nil
}

func familyExpenses(ctx context.Context, e *env, fa *family.App) error {
	if err := fa.Navigate(family.PageExpenses); err != nil {
		return err
	}
	if err := fa.LoadExpenses(ctx); err != nil {
		return err
	}
	e.term.FamilyExpenses(fa.State().Expenses)
	return nil
}

func familyAddExpense(ctx context.Context, e *env, fa *family.App, args []string) error {
	fs := flag.NewFlagSet("family add-expense", flag.ContinueOnError)
	child := fs.String("child", "", "child id")
	desc := fs.String("desc", "", "description")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", "other", "category: "+strings.Join(family.Categories, ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := fa.Navigate(family.PageExpenses); err != nil {
		return err
	}

	d, err := e.valueOr(*desc, "Description: ")
	if err != nil {
		return err
	}
	a, err := e.valueOr(*amount, "Amount: ")
	if err != nil {
		return err
	}
	if err := fa.AddExpense(ctx, *child, d, a, *category); err != nil {
		return err
	}
	e.term.Toast(family.MsgExpenseAdded, render.ToastSuccess)
	e.term.FamilyExpenses(fa.State().Expenses)
	return nil
}

func familyAddFunds(ctx context.Context, e *env, fa *family.App, args []string) error {
	fs := flag.NewFlagSet("family add-funds", flag.ContinueOnError)
	child := fs.String("child", "", "child id")
	amount := fs.String("amount", "", "amount")
	notes := fs.String("notes", "", "optional notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := fa.Navigate(family.PageFunds); err != nil {
		return err
	}

	a, err := e.valueOr(*amount, "Amount: ")
	if err != nil {
		return err
	}
	if err := fa.AddFunds(ctx, *child, a, *notes); err != nil {
		return err
	}
	e.term.Toast(family.MsgFundsAdded, render.ToastSuccess)
	e.term.Children(fa.State().Children)
	return nil
}
