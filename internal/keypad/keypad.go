// Package keypad is the PIN entry state machine shared by first-time setup
// and login. It only buffers digits and decides when a submission is ready;
// talking to the backend is the auth controller's job.
package keypad

import (
	"errors"
	"fmt"
)

const (
	MinDigits = 4
	MaxDigits = 6

	PromptCreate  = "Create your PIN (4-6 digits)"
	PromptConfirm = "Confirm your PIN"
	PromptEnter   = "Enter your PIN"
	PromptBusy    = "Verifying"
)

var ErrUnknownKey = errors.New("unknown key")

type Mode int

const (
	ModeSetup Mode = iota
	ModeLogin
)

func (m Mode) String() string {
	if m == ModeSetup {
		return "setup"
	}
	return "login"
}

type Step int

const (
	StepEnterPIN Step = iota
	StepConfirmPIN
)

type Key string

const (
	KeyBack   Key = "back"
	KeyClear  Key = "clear"
	KeySubmit Key = "submit"
)

// Event tells the caller what a key press produced.
type Event int

const (
	EventNone Event = iota
	// EventSetup: both setup buffers hold at least MinDigits; compare and send.
	EventSetup
	// EventVerify: the login buffer is ready to be verified.
	EventVerify
)

type Option func(*Pad)

// WithAutoSubmit makes a login pad submit as soon as MaxDigits are entered.
func WithAutoSubmit() Option {
	return func(p *Pad) { p.autoSubmit = true }
}

type Pad struct {
	mode       Mode
	step       Step
	pin        string
	confirm    string
	loading    bool
	autoSubmit bool
}

func New(mode Mode, opts ...Option) *Pad {
	p := &Pad{mode: mode}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseKey accepts a single digit or one of the named keys.
func ParseKey(s string) (Key, error) {
	switch k := Key(s); {
	case k == KeyBack, k == KeyClear, k == KeySubmit:
		return k, nil
	case isDigit(s):
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// Press applies one key. Input is ignored while loading.
func (p *Pad) Press(k Key) (Event, error) {
	if p.loading {
		return EventNone, nil
	}

	switch {
	case k == KeyClear:
		p.Reset()
		return EventNone, nil
	case k == KeyBack:
		p.back()
		return EventNone, nil
	case k == KeySubmit:
		return p.submit(), nil
	case isDigit(string(k)):
		return p.digit(string(k)), nil
	}
	return EventNone, fmt.Errorf("%w: %q", ErrUnknownKey, string(k))
}

// Type presses every rune of s as a digit key, stopping at the first event.
func (p *Pad) Type(s string) (Event, error) {
	for _, r := range s {
		ev, err := p.Press(Key(string(r)))
		if err != nil || ev != EventNone {
			return ev, err
		}
	}
	return EventNone, nil
}

func (p *Pad) digit(d string) Event {
	buf := p.active()
	if len(*buf) >= MaxDigits {
		return EventNone
	}
	*buf += d
	if p.autoSubmit && p.mode == ModeLogin && len(*buf) == MaxDigits {
		return p.submit()
	}
	return EventNone
}

func (p *Pad) back() {
	if p.step == StepConfirmPIN && p.confirm == "" {
		// Back out of confirmation; the first PIN is kept.
		p.step = StepEnterPIN
		return
	}
	buf := p.active()
	if n := len(*buf); n > 0 {
		*buf = (*buf)[:n-1]
	}
}

func (p *Pad) submit() Event {
	switch {
	case p.mode == ModeLogin && len(p.pin) >= MinDigits:
		return EventVerify
	case p.mode == ModeSetup && p.step == StepEnterPIN && len(p.pin) >= MinDigits:
		p.step = StepConfirmPIN
		p.confirm = ""
	case p.mode == ModeSetup && p.step == StepConfirmPIN && len(p.confirm) >= MinDigits:
		return EventSetup
	}
	return EventNone
}

func (p *Pad) active() *string {
	if p.step == StepConfirmPIN {
		return &p.confirm
	}
	return &p.pin
}

// Reset empties both buffers and returns to the first step.
func (p *Pad) Reset() {
	p.pin = ""
	p.confirm = ""
	p.step = StepEnterPIN
}

// Matches reports whether the setup PIN and its confirmation agree.
func (p *Pad) Matches() bool {
	return p.pin == p.confirm
}

func (p *Pad) SetLoading(loading bool) { p.loading = loading }
func (p *Pad) Loading() bool           { return p.loading }
func (p *Pad) Mode() Mode              { return p.mode }
func (p *Pad) Step() Step              { return p.step }
func (p *Pad) PIN() string             { return p.pin }
func (p *Pad) Confirmation() string    { return p.confirm }

// Display returns how many dots to fill and the prompt above them.
func (p *Pad) Display() (int, string) {
	filled := len(*p.active())
	switch {
	case p.loading:
		return filled, PromptBusy
	case p.mode == ModeLogin:
		return filled, PromptEnter
	case p.step == StepConfirmPIN:
		return filled, PromptConfirm
	default:
		return filled, PromptCreate
	}
}
