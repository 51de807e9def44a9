// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat talks to the assistant over the content indexed by the last
// sync.
//
// Client.Send is a single POST /api/chat round trip. Session wraps a Client
// and keeps the ordered transcript of the conversation, which can be saved
// to and resumed from a storage.TranscriptStore.
//
// The backend keeps its own history per session token and resets it after
// every successful sync; the local transcript is for display and export.
package chat
