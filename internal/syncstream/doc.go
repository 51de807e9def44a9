// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package syncstream drives one indexing job and reports its progress.
//
// A sync is a POST /api/sync whose response body is newline-delimited JSON:
// one event per line, each with a status of info, progress, success, error
// or complete. The Consumer frames the body, applies events in arrival
// order, and exposes a single Status value that is never observed half
// updated.
//
// # States
//
//	Idle -> Requesting -> Streaming -> Succeeded
//	                  \            \-> Failed
//	                   \-> Failed
//
// Succeeded and Failed are terminal for the attempt; Reset returns to Idle.
//
// # Noise
//
// Blank lines are skipped. Lines that do not parse as an event are logged
// and skipped; they never end the stream. Only transport failures, a
// rejected request, an error event, or a stream that ends early are fatal.
//
// # Cancellation
//
// Cancel (or cancelling the context passed to Start) closes the connection
// and stops observation. No further transitions or callbacks happen and
// Start returns context.Canceled.
package syncstream
