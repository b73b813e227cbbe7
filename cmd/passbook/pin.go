package main

import (
	"context"
	"errors"
	"flag"

	"passbook/internal/auth"
	"passbook/internal/core"
	"passbook/internal/keypad"
	"passbook/internal/render"
)

func runStatus(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.app.Init(ctx); err != nil {
		return err
	}
	switch e.app.State().Screen {
	case render.ScreenSetup:
		e.term.Toast("No PIN yet. Run `passbook setup`.", render.ToastInfo)
	case render.ScreenAuth:
		e.term.Toast("Logged out. Run `passbook login`.", render.ToastInfo)
	}
	return nil
}

func runSetup(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	isSetup, err := e.backend.API.CheckSetup(ctx)
	if err != nil {
		return err
	}
	if isSetup {
		return errors.New("a PIN is already set up, use `passbook change-pin`")
	}

	ctl := e.newAuth()
	pad := ctl.SetupPad()
	e.term.ShowScreen(render.ScreenSetup)

	e.term.PinDisplay(pad.Display())
	pin, err := e.prompt("PIN: ")
	if err != nil {
		return err
	}
	if err := enterPIN(ctx, ctl.PressSetup, pin); err != nil {
		return err
	}
	if pad.Step() != keypad.StepConfirmPIN {
		return core.ErrInvalidPIN
	}

	confirm, err := e.prompt("Confirm PIN: ")
	if err != nil {
		return err
	}
	if err := enterPIN(ctx, ctl.PressSetup, confirm); err != nil {
		return err
	}
	if !e.backend.API.HasSession() {
		return core.ErrInvalidPIN
	}
	return nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	autoSubmit := fs.Bool("auto", false, "submit as soon as six digits are entered")
	if err := fs.Parse(args); err != nil {
		return err
	}

	isSetup, err := e.backend.API.CheckSetup(ctx)
	if err != nil {
		return err
	}
	if !isSetup {
		return errors.New("no PIN set up yet, run `passbook setup`")
	}

	var opts []auth.Option
	if *autoSubmit {
		opts = append(opts, auth.WithAutoSubmit())
	}
	ctl := e.newAuth(opts...)
	e.term.ShowScreen(render.ScreenAuth)
	e.term.PinDisplay(ctl.LoginPad().Display())

	pin, err := e.prompt("PIN: ")
	if err != nil {
		return err
	}
	if err := enterPIN(ctx, ctl.PressLogin, pin); err != nil {
		return err
	}
	if !e.backend.API.HasSession() {
		return core.ErrInvalidPIN
	}
	return nil
}

func runLogout(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	e.newAuth().Logout(ctx)
	e.term.Toast("Logged out", render.ToastInfo)
	return nil
}

func runChangePIN(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("change-pin", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireSession(); err != nil {
		return err
	}

	current, err := e.prompt("Current PIN: ")
	if err != nil {
		return err
	}
	next, err := e.prompt("New PIN: ")
	if err != nil {
		return err
	}
	confirm, err := e.prompt("Confirm new PIN: ")
	if err != nil {
		return err
	}
	return e.app.ChangePIN(ctx, current, next, confirm)
}
