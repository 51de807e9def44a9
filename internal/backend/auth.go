// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// AUTH TYPES
// =============================================================================

// User is the signed-in account as reported by the backend.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// AuthStatus is the response of GET /api/auth/status.
type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	APIKeySet     bool  `json:"isApiKeySet"`
	User          *User `json:"user,omitempty"`
}

// ErrEmptyAPIKey is returned by SetAPIKey for a blank key.
var ErrEmptyAPIKey = errors.New("api key must not be empty")

// =============================================================================
// AUTH OPERATIONS
// =============================================================================

// Status reports whether the current session is authenticated. Without a
// local token the backend is still asked, and will answer unauthenticated.
func (c *Client) Status(ctx context.Context) (*AuthStatus, error) {
	var status AuthStatus
	err := c.call(ctx, call{method: http.MethodGet, path: "/api/auth/status", anonymous: true}, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// LoginURL returns the OAuth URL the user must open to authorize this
// session. A session token is created first if none exists, since the
// backend binds the authorization to it.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", NewAuthExpired(0, "no session store")
	}
	if _, err := c.tokens.Ensure(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.GetJSON(ctx, "/api/auth/login", nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", NewProtocolError("login response has no url", nil)
	}
	if u, err := url.Parse(resp.URL); err != nil || u.Scheme == "" {
		return "", NewProtocolError(fmt.Sprintf("login url %q is not absolute", resp.URL), err)
	}
	return resp.URL, nil
}

// Logout ends the session on the backend and always forgets the local
// token, even when the backend cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	var callErr error
	if c.tokens != nil && c.tokens.Token() != "" {
		callErr = c.GetJSON(ctx, "/api/auth/logout", nil, nil)
		if callErr != nil {
			c.logger.Warn("backend logout failed; clearing local session anyway", zap.Error(callErr))
		}
	}
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			return err
		}
	}
	return callErr
}

// SetAPIKey stores the assistant API key in the backend session.
func (c *Client) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyAPIKey
	}
	body := struct {
		APIKey string `json:"api_key"`
	}{APIKey: key}
	return c.PostJSON(ctx, "/api/auth/apikey", body, nil)
}
