// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// =============================================================================
// FOLDER MESSAGES
// =============================================================================

// entriesMsg carries a folder listing. Listings for a folder that is no
// longer current are dropped.
type entriesMsg struct {
	FolderID string
	Entries  []drive.Entry
	Err      error
}

// =============================================================================
// SYNC MESSAGES
// =============================================================================

// syncEventMsg is one applied stream event and the status after it.
type syncEventMsg struct {
	Event  syncstream.Event
	Status syncstream.Status
}

// syncDoneMsg ends an attempt. It is always the last message on the
// sync channel for that attempt.
type syncDoneMsg struct {
	Status syncstream.Status
	Err    error
}

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// chatReplyMsg is the outcome of one question.
type chatReplyMsg struct {
	Question string
	Answer   string
	Err      error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// themeMsg reports a ui.theme change from the config file.
type themeMsg struct {
	Mode string
}
