// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// listTimeout bounds one folder listing.
const listTimeout = 30 * time.Second

// syncBuffer is how many progress events may queue before new ones are
// coalesced into the latest status. The final status always arrives
// through syncDoneMsg.
const syncBuffer = 64

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// loadFolderCmd lists folderID.
func loadFolderCmd(lister Lister, folderID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
		defer cancel()

		entries, err := lister.ListChildren(ctx, folderID)
		return entriesMsg{FolderID: folderID, Entries: entries, Err: err}
	}
}

// startSyncCmd runs one attempt to completion and posts syncDoneMsg to
// events. It produces no message itself; waitForSync delivers everything.
func startSyncCmd(syncer Syncer, items []drive.Snapshot, events chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		err := syncer.Start(context.Background(), items)
		events <- syncDoneMsg{Status: syncer.Status(), Err: err}
		return nil
	}
}

// waitForSync receives the next sync message.
func waitForSync(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// syncObserver forwards consumer callbacks into the feed without blocking
// the stream.
func syncObserver(feed *syncFeed) syncstream.Observer {
	return syncstream.Observer{
		OnEvent: func(ev syncstream.Event, st syncstream.Status) {
			feed.Publish(syncEventMsg{Event: ev, Status: st})
		},
	}
}

// askCmd sends question through the session.
func askCmd(ctx context.Context, sess *chat.Session, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := sess.Ask(ctx, question)
		return chatReplyMsg{Question: question, Answer: answer, Err: err}
	}
}

// waitForTheme receives the next theme change. A nil channel yields no
// command.
func waitForTheme(changes <-chan string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		mode, ok := <-changes
		if !ok {
			return nil
		}
		return themeMsg{Mode: mode}
	}
}
