// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

// =============================================================================
// SYNC STATE
// =============================================================================

// State is the lifecycle position of a sync attempt.
type State string

const (
	// StateIdle is the initial state; nothing has been requested.
	StateIdle State = "Idle"

	// StateRequesting means the request is sent and headers are pending.
	StateRequesting State = "Requesting"

	// StateStreaming means a 2xx arrived and events are being read.
	StateStreaming State = "Streaming"

	// StateSucceeded means a complete or success event was received.
	StateSucceeded State = "Succeeded"

	// StateFailed means the attempt ended without success.
	StateFailed State = "Failed"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether the state ends the attempt.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Active reports whether an attempt is in flight.
func (s State) Active() bool {
	return s == StateRequesting || s == StateStreaming
}

// isValidTransition reports whether from -> to is an edge of the machine.
// Reset is handled separately and is not an edge.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRequesting
	case StateRequesting:
		return to == StateStreaming || to == StateFailed
	case StateStreaming:
		return to == StateSucceeded || to == StateFailed
	default:
		// Terminal states absorb everything.
		return false
	}
}
