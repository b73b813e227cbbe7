package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"passbook/internal/keypad"
)

var errNotLoggedIn = errors.New("not logged in, run `passbook login` first")

// prompt prints label and reads one line. EOF with no input is an error.
func (e *env) prompt(label string) (string, error) {
	fmt.Fprint(e.out, label)
	line, err := e.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%s: no input", strings.TrimSpace(strings.TrimSuffix(label, ": ")))
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// valueOr returns v, or prompts for it when the flag was left empty.
func (e *env) valueOr(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return e.prompt(label)
}

func (e *env) requireSession() error {
	if !e.backend.API.HasSession() {
		return errNotLoggedIn
	}
	return nil
}

// enterPIN feeds pin to a keypad digit by digit and then presses submit.
// A pad configured to auto-submit may fire before the submit key; the
// extra press is then a no-op.
func enterPIN(ctx context.Context, press func(context.Context, keypad.Key) error, pin string) error {
	for _, r := range pin {
		k, err := keypad.ParseKey(string(r))
		if err != nil {
			return fmt.Errorf("PIN must contain digits only: %w", err)
		}
		if err := press(ctx, k); err != nil {
			return err
		}
	}
	return press(ctx, keypad.KeySubmit)
}
