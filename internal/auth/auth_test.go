package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passbook/internal/api"
	"passbook/internal/keypad"
	"passbook/internal/render"
)

type fakeBackend struct {
	setupErr   error
	verify     func(pin string) (api.VerifyResult, error)
	logoutErr  error
	setupPINs  []string
	verifyPINs []string
	logouts    int
}

func (f *fakeBackend) SetupPIN(_ context.Context, pin string) (api.SuccessResponse, error) {
	f.setupPINs = append(f.setupPINs, pin)
	return api.SuccessResponse{Success: f.setupErr == nil}, f.setupErr
}

func (f *fakeBackend) VerifyPIN(_ context.Context, pin string) (api.VerifyResult, error) {
	f.verifyPINs = append(f.verifyPINs, pin)
	if f.verify == nil {
		return api.VerifyResult{Success: true, Token: "t"}, nil
	}
	return f.verify(pin)
}

func (f *fakeBackend) Logout(context.Context) error {
	f.logouts++
	return f.logoutErr
}

type fakeView struct {
	screen    render.Screen
	toasts    []string
	formError string
	prompt    string
	filled    int
	pinErrors int
}

func (v *fakeView) ShowScreen(s render.Screen)           { v.screen = s }
func (v *fakeView) Toast(msg string, _ render.ToastKind) { v.toasts = append(v.toasts, msg) }
func (v *fakeView) FormError(msg string)                 { v.formError = msg }
func (v *fakeView) HideError()                           { v.formError = "" }
func (v *fakeView) PinDisplay(filled int, prompt string) { v.filled, v.prompt = filled, prompt }
func (v *fakeView) PinError()                            { v.pinErrors++ }

func typeKeys(t *testing.T, press func(context.Context, keypad.Key) error, keys ...keypad.Key) error {
	t.Helper()
	var err error
	for _, k := range keys {
		err = press(context.Background(), k)
	}
	return err
}

func TestSetupMismatch(t *testing.T) {
	b := &fakeBackend{}
	v := &fakeView{}
	c := New(b, v)

	err := typeKeys(t, c.PressSetup, "1", "2", "3", "4", keypad.KeySubmit, "4", "3", "2", "1", keypad.KeySubmit)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, MsgSetupMismatch, v.formError)
	assert.Equal(t, 1, v.pinErrors)
	assert.Empty(t, b.setupPINs)
	assert.Equal(t, keypad.StepEnterPIN, c.SetupPad().Step())
	assert.Equal(t, keypad.PromptCreate, v.prompt)
}

func TestSetupThenAutoLogin(t *testing.T) {
	b := &fakeBackend{}
	v := &fakeView{}
	c := New(b, v)
	succeeded := false
	c.OnAuthSuccess(func(context.Context) error { succeeded = true; return nil })

	err := typeKeys(t, c.PressSetup, "1", "2", "3", "4", keypad.KeySubmit, "1", "2", "3", "4", keypad.KeySubmit)
	require.NoError(t, err)
	assert.Equal(t, []string{"1234"}, b.setupPINs)
	assert.Equal(t, []string{"1234"}, b.verifyPINs)
	assert.Equal(t, []string{MsgPINCreated}, v.toasts)
	assert.Equal(t, render.ScreenAuth, v.screen)
	assert.True(t, succeeded)
	assert.Empty(t, c.SetupPad().PIN())
}

func TestSetupAutoLoginRejected(t *testing.T) {
	remaining := 2
	b := &fakeBackend{verify: func(string) (api.VerifyResult, error) {
		return api.VerifyResult{Success: false, AttemptsRemaining: &remaining}, nil
	}}
	v := &fakeView{}
	c := New(b, v)
	succeeded := false
	c.OnAuthSuccess(func(context.Context) error { succeeded = true; return nil })

	err := typeKeys(t, c.PressSetup, "1", "2", "3", "4", keypad.KeySubmit, "1", "2", "3", "4", keypad.KeySubmit)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Invalid PIN. 2 attempts remaining.", rejected.Message)
	assert.Equal(t, rejected.Message, v.formError)
	assert.Equal(t, 1, v.pinErrors)
	assert.Equal(t, render.ScreenAuth, v.screen)
	assert.False(t, succeeded)
}

func TestSetupServerError(t *testing.T) {
	b := &fakeBackend{setupErr: &api.Error{Status: 409, Message: "PIN already set up"}}
	v := &fakeView{}
	c := New(b, v)

	err := typeKeys(t, c.PressSetup, "1", "2", "3", "4", keypad.KeySubmit, "1", "2", "3", "4", keypad.KeySubmit)
	require.Error(t, err)
	assert.Equal(t, "PIN already set up", v.formError)
	assert.Empty(t, b.verifyPINs)
	assert.Empty(t, c.SetupPad().PIN())
}

func TestSubmitAuthMessages(t *testing.T) {
	three := 3
	lockedAt := time.Date(2025, 3, 5, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		result api.VerifyResult
		err    error
		want   string
	}{
		{
			name:   "locked",
			result: api.VerifyResult{Error: "Account locked.", LockedUntil: lockedAt.Unix(), AttemptsRemaining: &three},
			want:   "Account locked until 3:04:05 PM",
		},
		{
			name:   "attempts remaining",
			result: api.VerifyResult{Error: "Invalid PIN", AttemptsRemaining: &three},
			want:   "Invalid PIN. 3 attempts remaining.",
		},
		{
			name:   "server message",
			result: api.VerifyResult{Error: "Too many attempts"},
			want:   "Too many attempts",
		},
		{
			name: "no details",
			want: MsgInvalidPIN,
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{verify: func(string) (api.VerifyResult, error) { return tt.result, tt.err }}
			v := &fakeView{}
			c := New(b, v, WithLocation(time.UTC))

			err := typeKeys(t, c.PressLogin, "9", "9", "9", "9", keypad.KeySubmit)
			require.Error(t, err)
			assert.Equal(t, tt.want, v.formError)
			assert.Equal(t, 1, v.pinErrors)
			assert.Empty(t, c.LoginPad().PIN())

			var rejected *RejectedError
			assert.Equal(t, tt.err == nil, errors.As(err, &rejected))
		})
	}
}

func TestSubmitAuthSuccess(t *testing.T) {
	b := &fakeBackend{}
	v := &fakeView{}
	c := New(b, v, WithAutoSubmit())
	calls := 0
	c.OnAuthSuccess(func(context.Context) error { calls++; return nil })

	// six digits submit on their own
	require.NoError(t, typeKeys(t, c.PressLogin, "1", "2", "3", "4", "5", "6"))
	assert.Equal(t, []string{"123456"}, b.verifyPINs)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, v.filled)
	assert.Empty(t, c.LoginPad().PIN())
}

func TestLogoutIgnoresErrors(t *testing.T) {
	b := &fakeBackend{logoutErr: errors.New("offline")}
	v := &fakeView{screen: render.ScreenMain}
	c := New(b, v)
	_ = typeKeys(t, c.PressLogin, "1", "2")

	c.Logout(context.Background())
	assert.Equal(t, 1, b.logouts)
	assert.Equal(t, render.ScreenAuth, v.screen)
	assert.Empty(t, c.LoginPad().PIN())
}
