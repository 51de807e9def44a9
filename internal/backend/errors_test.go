// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestClientError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel *ClientError
		check    func(error) bool
	}{
		{"transport", NewTransportError("GET /x", io.ErrUnexpectedEOF), ErrTransport, IsTransport},
		{"auth", NewAuthExpired(401, "Not authenticated"), ErrAuthExpired, IsAuthExpired},
		{"protocol", NewProtocolError("bad json", nil), ErrProtocol, IsProtocol},
		{"rejected", classifyStatus(500, "boom"), ErrRequestRejected, IsRequestRejected},
		{"no selection", ErrNoSelection, ErrNoSelection, IsNoSelection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("listing: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tc.sentinel)
			}
			if !tc.check(wrapped) {
				t.Errorf("predicate false for %v", wrapped)
			}
		})
	}
}

func TestClientError_DistinctTypes(t *testing.T) {
	if errors.Is(NewAuthExpired(403, ""), ErrTransport) {
		t.Error("auth error matched transport sentinel")
	}
	if IsAuthExpired(errors.New("plain")) {
		t.Error("plain error classified as auth")
	}
	if TypeOf(nil) != ErrTypeUnknown {
		t.Error("TypeOf(nil) should be unknown")
	}
}

func TestClientError_Unwrap(t *testing.T) {
	err := NewTransportError("POST /api/sync", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause not reachable through Unwrap")
	}
	if got := err.Error(); got != "POST /api/sync failed: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		detail string
		want   ErrorType
		msg    string
	}{
		{http.StatusUnauthorized, "", ErrTypeAuthExpired, ErrAuthExpired.Message},
		{http.StatusForbidden, "scope", ErrTypeAuthExpired, ErrAuthExpired.Message + " (scope)"},
		{http.StatusBadRequest, "Gemini API Key not set.", ErrTypeRequestRejected, "Gemini API Key not set."},
		{http.StatusInternalServerError, "", ErrTypeRequestRejected, "500 Internal Server Error"},
	}
	for _, tc := range tests {
		err := classifyStatus(tc.status, tc.detail)
		if err.Type != tc.want {
			t.Errorf("classifyStatus(%d).Type = %v, want %v", tc.status, err.Type, tc.want)
		}
		if err.Message != tc.msg {
			t.Errorf("classifyStatus(%d).Message = %q, want %q", tc.status, err.Message, tc.msg)
		}
		if err.StatusCode != tc.status {
			t.Errorf("StatusCode = %d, want %d", err.StatusCode, tc.status)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(NewTransportError("x", nil)) {
		t.Error("transport should be retryable")
	}
	for _, err := range []error{ErrAuthExpired, ErrProtocol, ErrRequestRejected, ErrNoSelection} {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}

func TestTransportOrContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := transportOrContext(ctx, "op", io.EOF); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx: got %v, want context.Canceled", err)
	}
	if err := transportOrContext(context.Background(), "op", io.EOF); !IsTransport(err) {
		t.Errorf("live ctx: got %v, want transport", err)
	}
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Not authenticated"}`, "Not authenticated"},
		{`{"detail":[{"loc":["body","items"],"msg":"field required"}]}`, `[{"loc":["body","items"],"msg":"field required"}]`},
		{`{"error":"State (Session ID) is missing"}`, "State (Session ID) is missing"},
		{`{"message":"Logged out"}`, "Logged out"},
		{`Internal Server Error`, "Internal Server Error"},
		{``, ""},
	}
	for _, tc := range tests {
		if got := errorDetail([]byte(tc.body)); got != tc.want {
			t.Errorf("errorDetail(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
