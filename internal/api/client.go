// Package api is the client for the PIN-session Passbook backend. It owns the
// session token, attaches it to every request and turns non-2xx answers into
// errors. A 401 drops the session and notifies the registered listeners.
package api

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

	"github.com/google/uuid"

	"passbook/internal/cache"
	"passbook/internal/metrics"
	"passbook/internal/session"
)

const (
	DefaultPageSize  = 50
	defaultTimeout   = 15 * time.Second
	defaultCacheSize = 64

	headerSessionToken = "X-Session-Token"
	headerRequestID    = "X-Request-ID"
)

// ErrSessionExpired is returned for any 401 except a failed PIN verification.
var ErrSessionExpired = errors.New("Session expired")

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// DecodeError builds an *Error from a response body of the form
// {"error": "..."}; anything else yields "Request failed".
func DecodeError(status int, body []byte) *Error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := "Request failed"
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		msg = payload.Error
	}
	return &Error{Status: status, Message: msg}
}

// Config holds API client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	PageSize   int
	// CacheTTL enables caching of month reads; zero disables it.
	CacheTTL  time.Duration
	CacheSize int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Client talks to the Passbook backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	store      session.Store
	cache      cache.Cache[[]byte]
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu        sync.RWMutex
	token     string
	listeners []func()
}

// New creates a client. store may be nil, in which case the session lives
// only in memory.
func New(cfg Config, store session.Store) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if store == nil {
		store = session.NewMemory()
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		pageSize:   cfg.PageSize,
		store:      store,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = defaultCacheSize
		}
		c.cache = cache.NewLRUCache[[]byte](size, cfg.CacheTTL)
	}
	return c
}

// CacheCleaner exposes the response cache for periodic cleanup, or nil when
// caching is disabled.
func (c *Client) CacheCleaner() cache.Cleaner {
	if cl, ok := c.cache.(cache.Cleaner); ok {
		return cl
	}
	return nil
}

// Restore loads a previously saved session token from the store.
// A missing session is not an error.
func (c *Client) Restore(ctx context.Context) error {
	s, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	c.mu.Lock()
	c.token = s.Token
	c.mu.Unlock()
	return nil
}

// HasSession reports whether a token is held. It does not ask the server.
func (c *Client) HasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// SetSession keeps token in memory and persists it.
func (c *Client) SetSession(ctx context.Context, token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	if err := c.store.Save(ctx, session.Session{Token: token, UpdatedAt: time.Now()}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession forgets the token in memory and in the store.
func (c *Client) ClearSession(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.invalidate()
	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "Failed to clear stored session", "error", err)
	}
}

// OnSessionExpired registers fn to run after a 401 has cleared the session.
func (c *Client) OnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// PageSize is the limit sent with paginated reads.
func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) expire(ctx context.Context) {
	c.ClearSession(ctx)
	c.metrics.SessionExpired()

	c.mu.RLock()
	listeners := append([]func(){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *Client) invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Do sends one request and decodes a 2xx body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	status, data, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if err := c.check(ctx, status, data); err != nil {
		return err
	}
	return decode(data, out)
}

func (c *Client) check(ctx context.Context, status int, data []byte) error {
	if status == http.StatusUnauthorized {
		c.expire(ctx)
		return ErrSessionExpired
	}
	if status < 200 || status > 299 {
		return DecodeError(status, data)
	}
	return nil
}

// get is Do for cacheable reads.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if c.cache != nil {
		if data, ok := c.cache.Get(endpoint); ok {
			return decode(data, out)
		}
	}

	status, data, err := c.send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := c.check(ctx, status, data); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(endpoint, data)
	}
	return decode(data, out)
}

// mutate is Do for writes; every write makes cached reads stale.
func (c *Client) mutate(ctx context.Context, method, endpoint string, body, out any) error {
	defer c.invalidate()
	return c.Do(ctx, method, endpoint, body, out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if token := c.sessionToken(); token != "" {
		req.Header.Set(headerSessionToken, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metricPath := metricEndpoint(endpoint)
	if err != nil {
		c.metrics.ObserveRequest(method, metricPath, 0, time.Since(start))
		c.logger.DebugContext(ctx, "API request failed",
			"method", method, "path", metricPath, "request_id", requestID, "error", err)
		return 0, nil, fmt.Errorf("%s %s: %w", method, metricPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(method, metricPath, resp.StatusCode, elapsed)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.DebugContext(ctx, "API request",
		"method", method,
		"path", metricPath,
		"status_code", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestID)
	return resp.StatusCode, data, nil
}

func decode(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// metricEndpoint strips the query and the variable path segments so the
// endpoint label stays low-cardinality.
func metricEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	if len(parts) < 4 || parts[1] != "api" || (parts[2] != "month" && parts[2] != "expense") {
		return endpoint
	}
	parts[3] = ":month"
	if len(parts) == 5 && parts[4] != "funds" {
		parts[4] = ":id"
	}
	return strings.Join(parts, "/")
}
