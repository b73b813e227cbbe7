// Package family is the client and controller for the bearer-token family
// allowance backend: parents log in with email and password, create a
// family, register children and record their expenses and funds.
package family

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"passbook/internal/api"
	"passbook/internal/session"
)

// UnassignedFamily is the familyId of a user that has not created a family.
const UnassignedFamily = "UNASSIGNED"

type (
	User struct {
		UserID      string `json:"userId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		FamilyID    string `json:"familyId"`
	}

	Family struct {
		FamilyName string `json:"familyName"`
		Currency   string `json:"currency"`
	}

	Child struct {
		UserID          string          `json:"userId"`
		DisplayName     string          `json:"displayName"`
		Age             int             `json:"age"`
		WeeklyAllowance decimal.Decimal `json:"weeklyAllowance"`
		Balance         decimal.Decimal `json:"balance"`
	}

	Expense struct {
		ChildID     string          `json:"childId"`
		ChildName   string          `json:"childName,omitempty"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        string          `json:"date,omitempty"`
		Status      string          `json:"status,omitempty"`
	}

	Funds struct {
		ChildID string          `json:"childId"`
		Amount  decimal.Decimal `json:"amount"`
		Notes   string          `json:"notes,omitempty"`
	}

	LoginResponse struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
)

// HasFamily reports whether the user already belongs to a family.
func (u *User) HasFamily() bool {
	return u != nil && u.FamilyID != "" && u.FamilyID != UnassignedFamily
}

type (
	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	childRequest struct {
		DisplayName     string  `json:"displayName"`
		Age             int     `json:"age"`
		WeeklyAllowance float64 `json:"weeklyAllowance"`
	}
	expenseRequest struct {
		ChildID     string  `json:"childId"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
	}
	fundsRequest struct {
		ChildID string  `json:"childId"`
		Amount  float64 `json:"amount"`
		Notes   string  `json:"notes"`
	}
)

// Client talks to the family backend with an Authorization bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      session.Store
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	token     string
	user      *User
	listeners []func()
}

func NewClient(baseURL string, httpClient *http.Client, store session.Store, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if store == nil {
		store = session.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Restore loads the saved token and user. Missing state is not an error.
func (c *Client) Restore(ctx context.Context) error {
	s, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var user *User
	if len(s.User) > 0 {
		user = &User{}
		if err := json.Unmarshal(s.User, user); err != nil {
			return fmt.Errorf("decode stored user: %w", err)
		}
	}
	c.mu.Lock()
	c.token, c.user = s.Token, user
	c.mu.Unlock()
	return nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns a copy of the logged-in user, or nil.
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) save(ctx context.Context, token string, user *User) error {
	c.mu.Lock()
	c.token, c.user = token, user
	c.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return c.store.Save(ctx, session.Session{Token: token, User: raw, UpdatedAt: c.now()})
}

// Clear forgets the token and user in memory and in the store.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.token, c.user = "", nil
	c.mu.Unlock()
	return c.store.Clear(ctx)
}

// OnSessionExpired registers fn to run after an expired or rejected token
// has cleared the session.
func (c *Client) OnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) expire(ctx context.Context) {
	_ = c.Clear(ctx)

	c.mu.RLock()
	listeners := append([]func(){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Tokens that are not JWTs, or carry no exp, never expire client-side.
func (c *Client) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !c.now().Before(exp.Time)
}

// Do sends one request; a 2xx body is decoded into out.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	token := c.Token()
	if token != "" && c.tokenExpired(token) {
		c.logger.InfoContext(ctx, "Bearer token expired, clearing session")
		c.expire(ctx)
		return api.ErrSessionExpired
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		c.expire(ctx)
		return api.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return api.DecodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and keeps both token and user.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return LoginResponse{}, err
	}
	if err := c.save(ctx, out.Token, &out.User); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) CreateFamily(ctx context.Context, f Family) error {
	return c.Do(ctx, http.MethodPost, "/families", f, nil)
}

// MarkFamilyCreated records locally that the user now has a family.
func (c *Client) MarkFamilyCreated(ctx context.Context) error {
	user := c.User()
	if user == nil {
		return nil
	}
	user.FamilyID = "created"
	return c.save(ctx, c.Token(), user)
}

func (c *Client) ListChildren(ctx context.Context) ([]Child, error) {
	var out struct {
		Children []Child `json:"children"`
	}
	err := c.Do(ctx, http.MethodGet, "/children", nil, &out)
	return out.Children, err
}

func (c *Client) AddChild(ctx context.Context, displayName string, age int, weeklyAllowance decimal.Decimal) error {
	return c.Do(ctx, http.MethodPost, "/children", childRequest{
		DisplayName:     displayName,
		Age:             age,
		WeeklyAllowance: weeklyAllowance.InexactFloat64(),
	}, nil)
}

func (c *Client) ListExpenses(ctx context.Context) ([]Expense, error) {
	var out struct {
		Expenses []Expense `json:"expenses"`
	}
	err := c.Do(ctx, http.MethodGet, "/expenses", nil, &out)
	return out.Expenses, err
}

func (c *Client) AddExpense(ctx context.Context, childID, description string, amount decimal.Decimal, category string) error {
	return c.Do(ctx, http.MethodPost, "/expenses", expenseRequest{
		ChildID:     childID,
		Description: description,
		Amount:      amount.InexactFloat64(),
		Category:    category,
	}, nil)
}

func (c *Client) AddFunds(ctx context.Context, childID string, amount decimal.Decimal, notes string) error {
	return c.Do(ctx, http.MethodPost, "/funds", fundsRequest{
		ChildID: childID,
		Amount:  amount.InexactFloat64(),
		Notes:   notes,
	}, nil)
}
