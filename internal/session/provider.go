// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/driveagent/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidToken is returned when a token cannot be sent as a header value.
var ErrInvalidToken = errors.New("invalid session token")

// =============================================================================
// PROVIDER
// =============================================================================

// Provider owns the installation's session token. The token is created on
// first use, persisted across runs and cleared on sign-out. Readers always
// see either the previous or the next token, never a partial write.
type Provider struct {
	mu    sync.RWMutex
	path  string // empty: memory only
	token string
}

// NewProvider returns a provider persisting to path, loading any token
// already stored there.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		token := strings.TrimSpace(string(data))
		if token != "" {
			if err := validate(token); err != nil {
				return nil, fmt.Errorf("session file %s: %w", path, err)
			}
			p.token = token
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return p, nil
}

// NewMemoryProvider returns a provider that never touches disk.
func NewMemoryProvider(token string) *Provider {
	return &Provider{token: token}
}

// Token returns the current token, or "" when signed out.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Ensure returns the current token, creating and persisting a new one when
// none exists.
func (p *Provider) Ensure() (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Lost a race with another Ensure.
	if p.token != "" {
		return p.token, nil
	}
	token = uuid.New().String()
	if err := p.persistLocked(token); err != nil {
		return "", err
	}
	p.token = token
	return token, nil
}

// Set replaces the token.
func (p *Provider) Set(token string) error {
	token = strings.TrimSpace(token)
	if err := validate(token); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.persistLocked(token); err != nil {
		return err
	}
	p.token = token
	return nil
}

// Clear forgets the token and removes the session file.
func (p *Provider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = ""
	if p.path == "" {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Path returns the file backing the provider, or "" for memory providers.
func (p *Provider) Path() string {
	return p.path
}

func (p *Provider) persistLocked(token string) error {
	if p.path == "" {
		return nil
	}
	if err := util.AtomicWriteFile(p.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	return nil
}

// validate rejects tokens that would be mangled in an HTTP header.
func validate(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	for _, r := range token {
		if r <= ' ' || r == 0x7f || r > '~' {
			return fmt.Errorf("%w: contains %q", ErrInvalidToken, r)
		}
	}
	return nil
}
