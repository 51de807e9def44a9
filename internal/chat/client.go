// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/logging"
)

const chatPath = "/api/chat"

// ErrEmptyMessage is returned for a blank message; nothing is sent.
var ErrEmptyMessage = errors.New("message must not be empty")

// Poster performs an authenticated JSON POST. *backend.Client implements it.
type Poster interface {
	PostJSON(ctx context.Context, path string, body, out interface{}) error
}

// Client sends chat messages to the backend.
type Client struct {
	api    Poster
	logger *zap.Logger
}

// NewClient creates a chat client.
func NewClient(api Poster, logger *zap.Logger) *Client {
	return &Client{api: api, logger: logging.OrNop(logger).Named("chat")}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Send posts message and returns the assistant's markdown reply. A backend
// refusal such as "please sync a folder first" comes back as a
// RequestRejected error carrying the backend's text.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	start := time.Now()
	var resp chatResponse
	if err := c.api.PostJSON(ctx, chatPath, chatRequest{Message: message}, &resp); err != nil {
		c.logger.Debug("chat failed", zap.Error(err))
		return "", err
	}
	if resp.Response == nil {
		return "", backend.NewProtocolError("chat response has no response field", nil)
	}

	c.logger.Debug("chat reply",
		zap.Int("chars", len(*resp.Response)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return *resp.Response, nil
}
