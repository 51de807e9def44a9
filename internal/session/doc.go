// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the installation's opaque session identity.
//
// One token exists per installation. It is generated (UUIDv4) the first
// time a request needs it, stored in <config dir>/session with 0600
// permissions, sent as the x-session-id header on every backend request
// and removed on logout. The Provider is passed explicitly to every client;
// there is no package-level state.
//
// # Usage
//
//	tokens, err := session.NewProvider(cfg.SessionFile())
//	id, err := tokens.Ensure()
//	...
//	tokens.Clear() // sign out
package session
