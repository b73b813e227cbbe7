package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"passbook/internal/core"
)

type Page string

const (
	PageLogin     Page = "login"
	PageDashboard Page = "dashboard"
	PageFamily    Page = "family"
	PageChildren  Page = "children"
	PageExpenses  Page = "expenses"
	PageFunds     Page = "funds"
	PageAnalytics Page = "analytics"
)

var pages = []Page{PageLogin, PageDashboard, PageFamily, PageChildren, PageExpenses, PageFunds, PageAnalytics}

const (
	MinChildAge = 1
	MaxChildAge = 25
)

var (
	Categories = []string{"food", "entertainment", "education", "clothing", "other"}
	Currencies = []string{"USD", "EUR", "GBP", "INR"}
)

const (
	MsgLoginSuccess  = "Login successful!"
	MsgFamilyCreated = "Family created successfully!"
	MsgChildAdded    = "Child added successfully!"
	MsgExpenseAdded  = "Expense added successfully!"
	MsgFundsAdded    = "Funds added successfully!"
	MsgNoChildren    = "No children added yet."
	MsgNoExpenses    = "No expenses logged yet."
)

var (
	ErrCredentialsRequired = errors.New("Email and password are required")
	ErrNotLoggedIn         = errors.New("Not logged in")
	ErrUnknownPage         = errors.New("unknown page")
	ErrFamilyNameRequired  = errors.New("Please enter a family name")
	ErrInvalidCurrency     = errors.New("Please select a supported currency")
	ErrChildNameRequired   = errors.New("Please enter the child's name")
	ErrInvalidAge          = fmt.Errorf("Age must be between %d and %d", MinChildAge, MaxChildAge)
	ErrInvalidAllowance    = errors.New("Weekly allowance cannot be negative")
	ErrChildRequired       = errors.New("Please select a child")
	ErrInvalidCategory     = errors.New("Please select a valid category")
)

// State is the controller's view of the session and the loaded lists.
type State struct {
	Page     Page
	User     *User
	Token    string
	Family   *Family
	Children []Child
	Expenses []Expense
	Loading  bool
}

// App drives the family pages on top of Client.
type App struct {
	client *Client
	logger *slog.Logger
	state  State
}

func NewApp(client *Client, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{client: client, logger: logger, state: State{Page: PageLogin}}
	client.OnSessionExpired(func() {
		a.state = State{Page: PageLogin}
	})
	return a
}

// State returns a snapshot of the controller state.
func (a *App) State() State {
	s := a.state
	s.Children = slices.Clone(a.state.Children)
	s.Expenses = slices.Clone(a.state.Expenses)
	return s
}

// Init restores a saved session; with a token the dashboard is shown.
func (a *App) Init(ctx context.Context) error {
	if err := a.client.Restore(ctx); err != nil {
		return err
	}
	a.syncSession()
	if a.state.Token != "" {
		a.state.Page = PageDashboard
	} else {
		a.state.Page = PageLogin
	}
	return nil
}

func (a *App) syncSession() {
	a.state.Token = a.client.Token()
	a.state.User = a.client.User()
}

func (a *App) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrCredentialsRequired
	}

	a.state.Loading = true
	defer func() { a.state.Loading = false }()

	if _, err := a.client.Login(ctx, email, password); err != nil {
		a.logger.WarnContext(ctx, "Family login failed", "error", err)
		return err
	}
	a.syncSession()
	a.state.Page = PageDashboard
	return nil
}

// Logout drops the token and user and returns to the login page.
func (a *App) Logout(ctx context.Context) error {
	err := a.client.Clear(ctx)
	a.state = State{Page: PageLogin}
	return err
}

func (a *App) Navigate(page Page) error {
	if !slices.Contains(pages, page) {
		return fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}
	if page != PageLogin && a.state.Token == "" {
		a.state.Page = PageLogin
		return ErrNotLoggedIn
	}
	a.state.Page = page
	return nil
}

// NeedsFamily reports whether the logged-in user has yet to create a family.
func (a *App) NeedsFamily() bool {
	return a.state.User != nil && !a.state.User.HasFamily()
}

func ValidateCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil || !slices.Contains(Currencies, unit.String()) {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}

func (a *App) CreateFamily(ctx context.Context, name, currencyCode string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrFamilyNameRequired
	}
	code, err := ValidateCurrency(currencyCode)
	if err != nil {
		return err
	}

	f := Family{FamilyName: name, Currency: code}
	if err := a.client.CreateFamily(ctx, f); err != nil {
		return err
	}
	if err := a.client.MarkFamilyCreated(ctx); err != nil {
		a.logger.WarnContext(ctx, "Failed to persist family flag", "error", err)
	}
	a.syncSession()
	a.state.Family = &f
	return nil
}

func ValidateChild(name string, age int, allowance decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return ErrChildNameRequired
	}
	if age < MinChildAge || age > MaxChildAge {
		return ErrInvalidAge
	}
	if allowance.IsNegative() {
		return ErrInvalidAllowance
	}
	return nil
}

// AddChild registers a child and reloads the children list.
func (a *App) AddChild(ctx context.Context, name string, age int, allowance decimal.Decimal) error {
	if err := ValidateChild(name, age, allowance); err != nil {
		return err
	}
	if err := a.client.AddChild(ctx, strings.TrimSpace(name), age, allowance); err != nil {
		return err
	}
	return a.LoadChildren(ctx)
}

func (a *App) LoadChildren(ctx context.Context) error {
	a.state.Loading = true
	defer func() { a.state.Loading = false }()

	children, err := a.client.ListChildren(ctx)
	if err != nil {
		return fmt.Errorf("Failed to load children: %w", err)
	}
	a.state.Children = children
	return nil
}

// ValidateExpense checks the expense form and returns the parsed amount and
// trimmed description.
func ValidateExpense(childID, description, amount, category string) (decimal.Decimal, string, error) {
	if strings.TrimSpace(childID) == "" {
		return decimal.Zero, "", ErrChildRequired
	}
	desc, err := core.ValidateDescription(description)
	if err != nil {
		return decimal.Zero, "", err
	}
	amt, err := core.ParseAmount(amount)
	if err != nil {
		return decimal.Zero, "", err
	}
	if !slices.Contains(Categories, category) {
		return decimal.Zero, "", ErrInvalidCategory
	}
	return amt, desc, nil
}

// AddExpense logs an expense against a child and reloads the expense list.
func (a *App) AddExpense(ctx context.Context, childID, description, amount, category string) error {
	amt, desc, err := ValidateExpense(childID, description, amount, category)
	if err != nil {
		return err
	}
	if err := a.client.AddExpense(ctx, childID, desc, amt, category); err != nil {
		return err
	}
	return a.LoadExpenses(ctx)
}

func (a *App) LoadExpenses(ctx context.Context) error {
	a.state.Loading = true
	defer func() { a.state.Loading = false }()

	expenses, err := a.client.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("Failed to load expenses: %w", err)
	}
	a.state.Expenses = expenses
	return nil
}

// AddFunds credits a child's balance and refreshes the children list.
func (a *App) AddFunds(ctx context.Context, childID, amount, notes string) error {
	if strings.TrimSpace(childID) == "" {
		return ErrChildRequired
	}
	amt, err := core.ParseAmount(amount)
	if err != nil {
		return err
	}
	if err := a.client.AddFunds(ctx, childID, amt, strings.TrimSpace(notes)); err != nil {
		return err
	}
	return a.LoadChildren(ctx)
}
