// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package browser is the interactive driveagent terminal UI.

The browse screen lists the current Drive folder under a breadcrumb bar.
Items are ticked with space and synced with s; progress streams into a
panel at the bottom while the list stays usable. Tab switches to the chat
screen, which asks questions about the last synced files.

# Key Types

  - Model: the Bubble Tea model for both screens
  - Options: the collaborators the model drives (lister, syncer, chat)
  - KeyMap: keyboard bindings shown in the help bar

# Usage

	m := browser.New(browser.Options{
		Drive:     driveClient,
		NewSyncer: func(obs syncstream.Observer) browser.Syncer { return newConsumer(obs) },
		Chat:      chatClient,
	})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()

Folder listings, syncs and chat requests run as tea.Cmds. Sync events are
funneled through a channel so the observer callbacks never touch the model
directly.
*/
package browser
