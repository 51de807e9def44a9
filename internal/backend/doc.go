// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the Drive agent backend.
//
// Every request carries the session token in the x-session-id header.
// Failures are reported as *ClientError with one of these types:
//
//   - TransportError: the backend could not be reached
//   - AuthExpired: 401/403, or no local session at all
//   - ProtocolError: the response was not the expected JSON
//   - RequestRejected: any other non-2xx status, with the backend's detail
//   - NoSelection: a sync was started with nothing selected
//
// Nothing is retried automatically; Retryable tells the caller whether a
// user-initiated retry makes sense.
//
// # Usage
//
//	client := backend.NewClient(&backend.ClientConfig{BaseURL: url}, tokens, logger)
//	status, err := client.Status(ctx)
//	if backend.IsAuthExpired(err) {
//	    // send the user to login
//	}
package backend
