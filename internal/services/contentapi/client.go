package contentapi

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

	"repack/internal/config"
	"repack/internal/logging"
	"repack/internal/services"
)

// The backend fingerprints clients, so requests carry a mobile browser
// user agent and a stable per-install device id.
const mobileUserAgent = "Mozilla/5.0 (Linux; U; Android 4.0.3; ko-kr; LG-L160L Build/IML74K) AppleWebkit/534.30 (KHTML, like Gecko) Version/4.0 Mobile Safari/534.30"

const (
	defaultRetryDelay  = 5 * time.Second
	connectTestTimeout = 10 * time.Second
	maxResponseBytes   = 4 << 20
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetryDelay overrides the base delay of the linear retry backoff.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// Client is the publishing backend client.
type Client struct {
	loginURL    string
	uploadURL   string
	articleURL  string
	categoryURL string
	account     string
	password    string
	deviceID    string
	categoryID  int
	batchSize   int
	maxRetries  int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	mu    sync.Mutex
	token string
}

// New constructs a client from the api config section. Credentials are
// required whenever the configuration will actually reach the backend
// (upload or publish enabled without skip_login).
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	api := cfg.API
	if !api.SkipLogin && (api.EnableUpload || api.EnablePublish) {
		if strings.TrimSpace(api.Account) == "" || strings.TrimSpace(api.Password) == "" {
			return nil, fmt.Errorf("%w: content api credentials missing; set api.account/api.password or REPACK_API_ACCOUNT/REPACK_API_PASSWORD", services.ErrConfiguration)
		}
	}

	deviceID := api.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	client := &Client{
		loginURL:    api.LoginURL,
		uploadURL:   api.UploadURL,
		articleURL:  api.ArticleURL,
		categoryURL: api.CategoryURL,
		account:     api.Account,
		password:    api.Password,
		deviceID:    deviceID,
		categoryID:  api.CategoryID,
		batchSize:   api.BatchSize,
		maxRetries:  api.MaxRetries,
		retryDelay:  defaultRetryDelay,
		httpClient:  &http.Client{Timeout: time.Duration(api.RequestTimeout) * time.Second},
		logger:      logging.NewComponentLogger(logger, "contentapi"),
		token:       api.Token,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// HasToken reports whether a bearer token is cached.
func (c *Client) HasToken() bool {
	return c.currentToken() != ""
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) clearToken() {
	c.setToken("")
}

// EnsureLogin reuses a cached token when present and logs in otherwise.
// A stale cached token is not detected here; the first 401/403 on a real
// call triggers the refresh.
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.HasToken() {
		c.logger.Debug("reusing cached token")
		return nil
	}
	return c.Login(ctx)
}

// Login authenticates and caches the bearer token, retrying with linear
// backoff up to the configured attempt budget.
func (c *Client) Login(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if err := c.sleepBetween(ctx, attempt-1); err != nil {
				return err
			}
		}
		token, err := c.requestLogin(ctx)
		if err == nil {
			c.setToken(token)
			c.logger.Info("login succeeded")
			return nil
		}
		lastErr = err
		c.logger.Warn("login attempt failed",
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
	return fmt.Errorf("login failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) requestLogin(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"account":  c.account,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("encode login payload: %w", err)
	}

	status, payload, err := c.do(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("unexpected HTTP status %d", status)
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		return "", err
	}
	if !env.accepted() {
		return "", fmt.Errorf("backend rejected login: %s", env.describe())
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if data.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return data.Token, nil
}

// refreshAuth reacts to a 401/403 by discarding the cached token and
// logging in again. A failed refresh is tagged ErrAuth so callers abort
// instead of burning their remaining retries on a dead session.
func (c *Client) refreshAuth(ctx context.Context, status int) error {
	c.logger.Warn("auth rejected, refreshing token", logging.Int("status", status))
	c.clearToken()
	if err := c.Login(ctx); err != nil {
		return fmt.Errorf("%w: re-login after HTTP %d: %w", services.ErrAuth, status, err)
	}
	return nil
}

// TestConnection probes the backend without credentials. A 404 still
// proves the host is reachable, so it counts as success.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTestTimeout)
	defer cancel()

	status, _, err := c.do(ctx, http.MethodGet, c.loginURL, nil, "")
	if err != nil {
		return fmt.Errorf("content api unreachable: %w", err)
	}
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("content api returned HTTP %d", status)
	}
}

// DeviceID returns the device identifier attached to every request.
func (c *Client) DeviceID() string {
	return c.deviceID
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Device-Id", c.deviceID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

// sleepBetween waits out the linear backoff after the given number of
// completed attempts, honoring context cancellation.
func (c *Client) sleepBetween(ctx context.Context, completed int) error {
	delay := time.Duration(completed) * c.retryDelay
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// envelope is the backend's common response wrapper.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

// accepted reports whether the body-level code signals success. An absent
// code is a failure; only 0, 200, and 201 are accepted.
func (e envelope) accepted() bool {
	if e.Code == nil {
		return false
	}
	switch *e.Code {
	case 0, 200, 201:
		return true
	default:
		return false
	}
}

func (e envelope) describe() string {
	code := "absent"
	if e.Code != nil {
		code = fmt.Sprintf("%d", *e.Code)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return fmt.Sprintf("code=%s message=%q", code, msg)
	}
	return "code=" + code
}
