// Package auth drives PIN setup and login on top of the keypad state
// machine: it sends finished PINs to the backend and turns the answers into
// screen changes, prompts and error messages.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"passbook/internal/api"
	"passbook/internal/keypad"
	"passbook/internal/render"
)

const (
	MsgSetupMismatch = "PINs do not match. Try again."
	MsgInvalidPIN    = "Invalid PIN"
	MsgPINCreated    = "PIN created successfully!"
	promptLoggingIn  = "Logging in..."
)

var ErrMismatch = errors.New(MsgSetupMismatch)

// RejectedError is returned when the backend refused a PIN. Message is the
// text shown to the user.
type RejectedError struct {
	Message string
	Result  api.VerifyResult
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Backend is the part of the API client the controller needs.
type Backend interface {
	SetupPIN(ctx context.Context, pin string) (api.SuccessResponse, error)
	VerifyPIN(ctx context.Context, pin string) (api.VerifyResult, error)
	Logout(ctx context.Context) error
}

// View is what the controller draws on.
type View interface {
	ShowScreen(s render.Screen)
	Toast(msg string, kind render.ToastKind)
	FormError(msg string)
	HideError()
	PinDisplay(filled int, prompt string)
	PinError()
}

type Controller struct {
	backend Backend
	view    View
	logger  *slog.Logger
	setup   *keypad.Pad
	login   *keypad.Pad

	onSuccess func(ctx context.Context) error
	location  *time.Location
}

type Option func(*Controller)

// WithAutoSubmit submits the login PIN as soon as six digits are typed.
func WithAutoSubmit() Option {
	return func(c *Controller) {
		c.login = keypad.New(keypad.ModeLogin, keypad.WithAutoSubmit())
	}
}

// WithLocation sets the zone used to show lockout deadlines.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.location = loc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func New(backend Backend, view View, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		view:     view,
		logger:   slog.Default(),
		setup:    keypad.New(keypad.ModeSetup),
		login:    keypad.New(keypad.ModeLogin),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnAuthSuccess registers the callback run after a successful login.
func (c *Controller) OnAuthSuccess(fn func(ctx context.Context) error) {
	c.onSuccess = fn
}

func (c *Controller) SetupPad() *keypad.Pad { return c.setup }
func (c *Controller) LoginPad() *keypad.Pad { return c.login }

// PressSetup feeds one key to the setup pad and submits when it is ready.
func (c *Controller) PressSetup(ctx context.Context, k keypad.Key) error {
	c.view.HideError()
	ev, err := c.setup.Press(k)
	if err != nil {
		return err
	}
	c.view.PinDisplay(c.setup.Display())
	if ev == keypad.EventSetup {
		return c.SubmitSetup(ctx)
	}
	return nil
}

// PressLogin feeds one key to the login pad and submits when it is ready.
func (c *Controller) PressLogin(ctx context.Context, k keypad.Key) error {
	c.view.HideError()
	ev, err := c.login.Press(k)
	if err != nil {
		return err
	}
	c.view.PinDisplay(c.login.Display())
	if ev == keypad.EventVerify {
		return c.SubmitAuth(ctx)
	}
	return nil
}

// SubmitSetup creates the PIN held by the setup pad and logs in with it.
func (c *Controller) SubmitSetup(ctx context.Context) error {
	if c.setup.Loading() {
		return nil
	}
	c.view.HideError()

	if !c.setup.Matches() {
		c.failSetup(MsgSetupMismatch)
		return ErrMismatch
	}

	pin := c.setup.PIN()
	c.setup.SetLoading(true)
	_, err := c.backend.SetupPIN(ctx, pin)
	c.setup.SetLoading(false)
	if err != nil {
		c.failSetup(err.Error())
		return fmt.Errorf("setup pin: %w", err)
	}

	c.view.Toast(MsgPINCreated, render.ToastSuccess)
	c.setup.Reset()

	c.view.ShowScreen(render.ScreenAuth)
	c.view.PinDisplay(0, promptLoggingIn)
	c.login.SetLoading(true)
	result, err := c.backend.VerifyPIN(ctx, pin)
	c.login.SetLoading(false)
	if err != nil {
		c.view.FormError(err.Error())
		return fmt.Errorf("login after setup: %w", err)
	}
	if !result.Success {
		msg := c.rejection(result)
		c.view.PinError()
		c.view.PinDisplay(c.login.Display())
		c.view.FormError(msg)
		c.logger.WarnContext(ctx, "PIN rejected after setup", "locked", result.Locked())
		return &RejectedError{Message: msg, Result: result}
	}
	return c.succeed(ctx)
}

func (c *Controller) failSetup(msg string) {
	c.view.FormError(msg)
	c.view.PinError()
	c.setup.Reset()
	c.view.PinDisplay(c.setup.Display())
}

// SubmitAuth verifies the PIN held by the login pad.
func (c *Controller) SubmitAuth(ctx context.Context) error {
	if c.login.Loading() {
		return nil
	}
	c.view.HideError()

	c.login.SetLoading(true)
	result, err := c.backend.VerifyPIN(ctx, c.login.PIN())
	c.login.SetLoading(false)

	if err != nil {
		c.view.PinError()
		c.login.Reset()
		c.view.FormError(err.Error())
		return fmt.Errorf("verify pin: %w", err)
	}

	if !result.Success {
		c.view.PinError()
		c.login.Reset()
		msg := c.rejection(result)
		c.view.FormError(msg)
		c.logger.WarnContext(ctx, "PIN rejected", "locked", result.Locked())
		return &RejectedError{Message: msg, Result: result}
	}

	c.login.Reset()
	c.view.PinDisplay(c.login.Display())
	return c.succeed(ctx)
}

// rejection picks the message for a refused PIN: lockout first, then the
// remaining attempts, then whatever the server said.
func (c *Controller) rejection(r api.VerifyResult) string {
	switch {
	case r.Locked():
		return fmt.Sprintf("Account locked until %s", r.LockedUntilTime().In(c.location).Format("3:04:05 PM"))
	case r.AttemptsRemaining != nil:
		return fmt.Sprintf("Invalid PIN. %d attempts remaining.", *r.AttemptsRemaining)
	case r.Error != "":
		return r.Error
	default:
		return MsgInvalidPIN
	}
}

func (c *Controller) succeed(ctx context.Context) error {
	if c.onSuccess == nil {
		return nil
	}
	return c.onSuccess(ctx)
}

// Logout ends the session. Server errors are ignored; the local session is
// always dropped.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.backend.Logout(ctx); err != nil {
		c.logger.DebugContext(ctx, "Logout request failed", "error", err)
	}
	c.login.Reset()
	c.view.PinDisplay(c.login.Display())
	c.view.ShowScreen(render.ScreenAuth)
}

// Reset clears both pads and any pending loading state.
func (c *Controller) Reset() {
	c.setup.Reset()
	c.setup.SetLoading(false)
	c.login.Reset()
	c.login.SetLoading(false)
}
