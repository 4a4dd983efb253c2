// Package gateway is the HTTP client for the remote auth service.
//
// It speaks the service's three session endpoints (login, logout and
// check) and reports failures in two kinds: *TransportError when no usable
// answer came back, and structured responses with Success == false when
// the service answered and said no.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBodyBytes bounds how much of a response body is decoded.
const maxBodyBytes = 1 << 20

// Config contains configuration options for a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8787/api". Required.
	BaseURL string

	// Timeout bounds every request.
	// Default: 10 seconds.
	Timeout time.Duration

	// UserAgent is sent on every request.
	// Default: "switchboard/1".
	UserAgent string

	// HTTPClient overrides the underlying client. Its Timeout is left alone.
	HTTPClient *http.Client

	// Logger receives debug logs for each call. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		UserAgent: "switchboard/1",
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls the auth service over HTTP.
// It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	log       *slog.Logger
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway: base URL is required")
	}
	cfg.applyDefaults()

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		log:       cfg.Logger.With("component", "gateway"),
	}, nil
}

// Login exchanges credentials for a token.
//
// The service answers rejected credentials with a 401/404 and a JSON body,
// so the body is decoded whatever the status. A nil error with
// Success == false means the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, &TransportError{Op: "login", Err: err}
	}

	resp, err := c.do(ctx, "login", http.MethodPost, "/auth/login", body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out LoginResponse
	if err := decodeBody(resp, &out); err != nil {
		return nil, &TransportError{Op: "login", StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

// Logout asks the service to end the session for token.
// Any non-2xx answer is returned as a *StatusError.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var out CheckResponse
		_ = decodeBody(resp, &out)
		return &StatusError{Op: "logout", StatusCode: resp.StatusCode, Message: out.Message}
	}
	return nil
}

// CheckSession asks the service whether token is still honored.
// A rejected token comes back as Success == false with a nil error; only
// transport failures return an error.
func (c *Client) CheckSession(ctx context.Context, token string) (*CheckResponse, error) {
	resp, err := c.do(ctx, "check", http.MethodGet, "/auth/check", nil, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out CheckResponse
	decodeErr := decodeBody(resp, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Success = false
		out.Data = nil
		if out.Message == "" {
			out.Message = http.StatusText(resp.StatusCode)
		}
		return &out, nil
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: "check", StatusCode: resp.StatusCode, Err: decodeErr}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("auth request failed", "op", op, "request_id", requestID, "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}

	c.log.Debug("auth request",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
