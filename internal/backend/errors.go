// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota

	// ErrTypeTransport is a network or connection failure. Retryable by the user.
	ErrTypeTransport

	// ErrTypeAuthExpired means the session is missing or was rejected.
	// The user must sign in again; never retried.
	ErrTypeAuthExpired

	// ErrTypeProtocol means the response did not have the expected shape.
	ErrTypeProtocol

	// ErrTypeRequestRejected is any other non-2xx response.
	ErrTypeRequestRejected

	// ErrTypeNoSelection is a local precondition failure: nothing to sync.
	ErrTypeNoSelection
)

// String returns the taxonomy name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "TransportError"
	case ErrTypeAuthExpired:
		return "AuthExpired"
	case ErrTypeProtocol:
		return "ProtocolError"
	case ErrTypeRequestRejected:
		return "RequestRejected"
	case ErrTypeNoSelection:
		return "NoSelection"
	default:
		return "Unknown"
	}
}

// ClientError represents an error talking to the backend.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int // 0 when no response was received
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ClientError of the same type, so that the
// sentinels below work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinel errors for easy checking.
var (
	ErrTransport       = &ClientError{Type: ErrTypeTransport, Message: "backend unreachable"}
	ErrAuthExpired     = &ClientError{Type: ErrTypeAuthExpired, Message: "session expired, please sign in again"}
	ErrProtocol        = &ClientError{Type: ErrTypeProtocol, Message: "unexpected response from backend"}
	ErrRequestRejected = &ClientError{Type: ErrTypeRequestRejected, Message: "request rejected by backend"}
	ErrNoSelection     = &ClientError{Type: ErrTypeNoSelection, Message: "no files or folders selected"}
)

// TypeOf returns the taxonomy type of err, or ErrTypeUnknown.
func TypeOf(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// IsTransport checks if an error is a network failure.
func IsTransport(err error) bool { return TypeOf(err) == ErrTypeTransport }

// IsAuthExpired checks if an error requires the user to sign in again.
func IsAuthExpired(err error) bool { return TypeOf(err) == ErrTypeAuthExpired }

// IsProtocol checks if an error is a malformed response.
func IsProtocol(err error) bool { return TypeOf(err) == ErrTypeProtocol }

// IsRequestRejected checks if the backend refused the request.
func IsRequestRejected(err error) bool { return TypeOf(err) == ErrTypeRequestRejected }

// IsNoSelection checks if a sync was attempted with nothing selected.
func IsNoSelection(err error) bool { return TypeOf(err) == ErrTypeNoSelection }

// Retryable reports whether the user may reasonably retry the same action.
// Only transport failures qualify; nothing is retried automatically.
func Retryable(err error) bool {
	return IsTransport(err)
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewTransportError wraps a network failure.
func NewTransportError(op string, cause error) *ClientError {
	return &ClientError{Type: ErrTypeTransport, Message: op + " failed", Cause: cause}
}

// NewProtocolError reports a response that violates the expected contract.
func NewProtocolError(message string, cause error) *ClientError {
	return &ClientError{Type: ErrTypeProtocol, Message: message, Cause: cause}
}

// NewAuthExpired reports a missing or rejected session.
func NewAuthExpired(status int, detail string) *ClientError {
	msg := ErrAuthExpired.Message
	if detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, detail)
	}
	return &ClientError{Type: ErrTypeAuthExpired, Message: msg, StatusCode: status}
}

// classifyStatus maps a non-2xx status and its detail text to the taxonomy.
func classifyStatus(status int, detail string) *ClientError {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return NewAuthExpired(status, detail)
	}
	msg := detail
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return &ClientError{Type: ErrTypeRequestRejected, Message: msg, StatusCode: status}
}

// transportOrContext keeps caller cancellation distinguishable from network
// failure: a cancelled ctx is returned as-is, everything else is wrapped.
func transportOrContext(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	return NewTransportError(op, err)
}
