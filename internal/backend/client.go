// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/driveagent/internal/logging"
)

// SessionHeader carries the session token on every request.
const SessionHeader = "x-session-id"

// maxErrorBody caps how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://localhost:5678)
	BaseURL string

	// Timeout for request/response calls (default: 30s). Streams are not
	// bound by it.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls; 0 disables throttling.
	RequestsPerSecond float64

	// UserAgent is sent on every request (default: "driveagent").
	UserAgent string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://localhost:5678",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		UserAgent:         "driveagent",
	}
}

// Tokens supplies and manages the session token. *session.Provider
// implements it.
type Tokens interface {
	Token() string
	Ensure() (string, error)
	Clear() error
}

// =============================================================================
// CLIENT
// =============================================================================

// Client performs authenticated calls against the agent backend. It is safe
// for concurrent use: listing requests may run while a sync stream is open.
type Client struct {
	config       *ClientConfig
	tokens       Tokens
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// NewClient creates a backend client. Zero config fields take defaults.
func NewClient(config *ClientConfig, tokens Tokens, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		config: &cfg,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		// No overall timeout: a sync may legitimately run for many minutes.
		streamClient: &http.Client{Transport: transport},
		logger:       logging.OrNop(logger).Named("backend"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Tokens returns the session token store used by the client.
func (c *Client) Tokens() Tokens {
	return c.tokens
}

// GetJSON performs an authenticated GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.call(ctx, call{method: http.MethodGet, path: path, query: query}, out)
}

// PostJSON performs an authenticated POST of body and decodes the JSON
// response into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.call(ctx, call{method: http.MethodPost, path: path, body: body}, out)
}

// OpenStream POSTs body and returns the response once headers arrive with a
// 2xx status. The caller owns resp.Body. A 401/403 yields AuthExpired and
// any other non-2xx yields RequestRejected; neither returns a body.
func (c *Client) OpenStream(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	req, err := c.newRequest(ctx, call{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.send(ctx, c.streamClient, req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

type call struct {
	method string
	path   string
	query  url.Values
	body   interface{}

	// anonymous requests go out without a token instead of failing locally.
	anonymous bool
}

func (c *Client) call(ctx context.Context, cl call, out interface{}) error {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, c.httpClient, req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewProtocolError(fmt.Sprintf("invalid JSON from %s", cl.path), err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" && !cl.anonymous {
		return nil, NewAuthExpired(0, "no session")
	}

	u := c.config.BaseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if token != "" {
		req.Header.Set(SessionHeader, token)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	op := req.Method + " " + req.URL.Path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportOrContext(ctx, op, err)
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.Error(err))
		return nil, transportOrContext(ctx, op, err)
	}
	c.logger.Debug("request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// checkResponse converts a non-2xx response into a ClientError, consuming
// and closing its body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer drainAndClose(resp.Body)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return classifyStatus(resp.StatusCode, errorDetail(data))
}

// errorDetail extracts the human-readable reason from an error body such as
// {"detail": "Not authenticated"}. Validation errors carry a list in detail;
// those are returned as compact JSON.
func errorDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(body) > 200 {
			body = body[:200]
		}
		return string(body)
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, payload.Detail); err == nil {
			return compact.String()
		}
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	r.Close()
}
