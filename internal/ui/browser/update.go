// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.screen == screenChat {
			return m.updateChatKeys(msg)
		}
		if m.filtering {
			return m.updateFilterKeys(msg)
		}
		return m.updateBrowseKeys(msg)

	case entriesMsg:
		return m.handleEntries(msg), nil

	case syncEventMsg:
		// Events can be dropped when the feed is full; show the newest
		// status the observer has seen, not the one this message carried.
		m.syncStatus = m.feed.Latest(msg.Status)
		return m, waitForSync(m.feed.events)

	case syncDoneMsg:
		return m.handleSyncDone(msg), nil

	case chatReplyMsg:
		return m.handleReply(msg), nil

	case themeMsg:
		m.theme.SetMode(msg.Mode)
		m.spinner.Style = m.theme.Spinner
		m.markdown = nil
		m.refreshChat()
		return m, waitForTheme(m.opts.ThemeChanges)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Cursor blink and other component messages.
	var cmd tea.Cmd
	switch {
	case m.screen == screenChat:
		m.chatInput, cmd = m.chatInput.Update(msg)
	case m.filtering:
		m.filter, cmd = m.filter.Update(msg)
	}
	return m, cmd
}

func (m Model) busy() bool {
	return m.loading || m.syncing || m.asking
}

// tick restarts the spinner if nothing else keeps it running.
func (m Model) tick(wasBusy bool) tea.Cmd {
	if wasBusy {
		return nil
	}
	return m.spinner.Tick
}

// =============================================================================
// BROWSE SCREEN
// =============================================================================

func (m Model) updateBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		m.moveCursor(-len(m.visible))
	case key.Matches(msg, m.keys.End):
		m.moveCursor(len(m.visible))

	case key.Matches(msg, m.keys.Open):
		e, ok := m.highlighted()
		if !ok {
			return m, nil
		}
		if !e.IsFolder() {
			m.toggle(e)
			return m, nil
		}
		if err := m.nav.Descend(e); err != nil {
			m.err = err
			return m, nil
		}
		return m.load()

	case key.Matches(msg, m.keys.Back):
		if !m.nav.Up() {
			return m, nil
		}
		return m.load()

	case key.Matches(msg, m.keys.Jump):
		i := int(msg.Runes[0] - '1')
		if i >= m.nav.Depth() {
			return m, nil
		}
		if err := m.nav.JumpTo(i); err != nil {
			m.err = err
			return m, nil
		}
		return m.load()

	case key.Matches(msg, m.keys.Refresh):
		return m.load()

	case key.Matches(msg, m.keys.Toggle):
		if e, ok := m.highlighted(); ok {
			m.toggle(e)
			m.moveCursor(1)
		}

	case key.Matches(msg, m.keys.All):
		sel := m.nav.Selection()
		for _, e := range m.visible {
			if !sel.Has(e.ID) {
				sel.Toggle(e)
			}
		}
		m.notice = fmt.Sprintf("%d selected", sel.Len())

	case key.Matches(msg, m.keys.Clear):
		m.nav.Selection().Clear()
		m.notice = ""

	case key.Matches(msg, m.keys.Sync):
		return m.startSync()

	case key.Matches(msg, m.keys.Cancel):
		if m.syncing {
			if m.syncer.Cancel() {
				m.notice = "Abandoning sync..."
			}
			return m, nil
		}
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.NewChat):
		return m.newConversation()

	case key.Matches(msg, m.keys.Chat):
		m.screen = screenChat
		m.refreshChat()
		return m, m.chatInput.Focus()
	}
	return m, nil
}

func (m Model) updateFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyCtrlC:
		return m.quit()
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// load clears the listing and fetches the current folder.
func (m Model) load() (tea.Model, tea.Cmd) {
	wasBusy := m.busy()
	m.loading = true
	m.entries = nil
	m.visible = nil
	m.cursor, m.offset = 0, 0
	m.filter.SetValue("")
	m.filtering = false
	m.filter.Blur()
	return m, tea.Batch(loadFolderCmd(m.opts.Drive, m.nav.Current().ID), m.tick(wasBusy))
}

func (m Model) handleEntries(msg entriesMsg) Model {
	if msg.FolderID != m.nav.Current().ID {
		m.logger.Debug("dropping stale listing", zap.String("folder", msg.FolderID))
		return m
	}
	m.loading = false
	if msg.Err != nil {
		m.err = msg.Err
		return m
	}
	m.entries = drive.SortFoldersFirst(msg.Entries)
	m.applyFilter()
	return m
}

// applyFilter recomputes the visible rows and keeps the cursor in range.
func (m *Model) applyFilter() {
	m.visible = drive.Filter(m.entries, m.filter.Value())
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampOffset()
}

func (m *Model) moveCursor(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	m.clampOffset()
}

// clampOffset scrolls so the cursor row is on screen.
func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) highlighted() (drive.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return drive.Entry{}, false
	}
	return m.visible[m.cursor], true
}

func (m *Model) toggle(e drive.Entry) {
	m.nav.Selection().Toggle(e)
	if n := m.nav.Selection().Len(); n > 0 {
		m.notice = fmt.Sprintf("%d selected", n)
	} else {
		m.notice = ""
	}
}

// =============================================================================
// SYNC
// =============================================================================

func (m Model) startSync() (tea.Model, tea.Cmd) {
	if m.syncing {
		m.notice = "A sync is already running"
		return m, nil
	}
	items := m.nav.Selection().Items()
	if len(items) == 0 {
		m.err = backend.ErrNoSelection
		return m, nil
	}
	if m.syncer == nil {
		m.err = errors.New("sync is not available")
		return m, nil
	}
	if err := m.syncer.Reset(); err != nil {
		m.err = err
		return m, nil
	}

	wasBusy := m.busy()
	m.syncing = true
	m.feed.Reset()
	m.syncStatus = syncstream.Status{State: syncstream.StateRequesting, Items: items}
	m.notice = fmt.Sprintf("Syncing %d items...", len(items))
	m.logger.Info("sync started", zap.Int("items", len(items)))

	return m, tea.Batch(
		startSyncCmd(m.syncer, items, m.feed.events),
		waitForSync(m.feed.events),
		m.tick(wasBusy),
	)
}

func (m Model) handleSyncDone(msg syncDoneMsg) Model {
	m.syncing = false
	m.syncStatus = msg.Status
	if n := m.feed.Dropped(); n > 0 {
		m.logger.Debug("progress events coalesced", zap.Int("dropped", n))
	}

	if msg.Status.AttemptID != "" && m.opts.OnSyncDone != nil {
		m.opts.OnSyncDone(msg.Status)
	}

	switch {
	case msg.Err == nil:
		m.session.SetFiles(msg.Status.Files)
		m.notice = fmt.Sprintf("Synced %d files. Press tab to chat about them.", msg.Status.FileCount)
	case errors.Is(msg.Err, context.Canceled):
		m.notice = "Sync abandoned"
	default:
		m.notice = ""
		m.err = msg.Err
	}
	m.logger.Info("sync finished",
		zap.String("state", msg.Status.State.String()),
		zap.Bool("abandoned", msg.Status.Abandoned),
		zap.Error(msg.Err))
	return m
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (m Model) updateChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.NewChat) {
		return m.newConversation()
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()

	case tea.KeyTab:
		m.screen = screenBrowse
		m.chatInput.Blur()
		return m, nil

	case tea.KeyEsc:
		if m.asking && m.askCancel != nil {
			m.askCancel()
			return m, nil
		}
		m.screen = screenBrowse
		m.chatInput.Blur()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		return m.ask()
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m Model) ask() (tea.Model, tea.Cmd) {
	question := m.chatInput.Value()
	if m.asking || isBlank(question) {
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	wasBusy := m.busy()
	m.asking = true
	m.askCancel = cancel
	m.pending = question
	m.chatInput.Reset()
	m.err = nil
	m.refreshChat()
	return m, tea.Batch(askCmd(ctx, m.session, question), m.tick(wasBusy))
}

func (m Model) handleReply(msg chatReplyMsg) Model {
	if m.askCancel != nil {
		m.askCancel()
		m.askCancel = nil
	}
	m.asking = false
	m.pending = ""

	switch {
	case msg.Err == nil:
		m.notice = ""
	case errors.Is(msg.Err, context.Canceled):
		m.notice = "(cancelled)"
	default:
		m.err = msg.Err
	}
	m.refreshChat()
	return m
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.syncing {
		m.syncer.Cancel()
	}
	if m.askCancel != nil {
		m.askCancel()
	}
	m.saveTranscript()
	m.quitting = true
	return m, tea.Quit
}

// newConversation saves the current chat and starts over: a fresh session,
// an empty selection and an idle sync panel. It is refused while a sync or
// a question is in flight.
func (m Model) newConversation() (tea.Model, tea.Cmd) {
	switch {
	case m.syncing:
		m.notice = "A sync is running; cancel it before starting a new conversation"
		return m, nil
	case m.asking:
		m.notice = "Waiting for an answer; esc to cancel it first"
		return m, nil
	}
	if m.syncer != nil {
		if err := m.syncer.Reset(); err != nil {
			m.err = err
			return m, nil
		}
	}

	m.saveTranscript()
	m.session = chat.NewSession(m.opts.Chat)
	m.nav.Selection().Clear()
	m.feed.Reset()
	m.syncStatus = syncstream.Status{State: syncstream.StateIdle}
	m.chatInput.Reset()
	m.err = nil
	m.notice = "Started a new conversation"
	m.refreshChat()
	m.logger.Info("new conversation", zap.String("session", m.session.ID()))
	return m, nil
}

func (m Model) saveTranscript() {
	if m.opts.Transcripts == nil || m.session.Len() == 0 {
		return
	}
	if err := m.session.Save(m.opts.Transcripts); err != nil {
		m.logger.Warn("could not save transcript", zap.Error(err))
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.help.Width = width
	m.progress.Width = width - 30
	if m.progress.Width < 10 {
		m.progress.Width = 10
	}
	m.filter.Width = width - 4
	m.chatInput.Width = width - 8

	m.viewport.Width = width - 4
	m.viewport.Height = m.chatHeight()
	if m.mdWidth != m.viewport.Width {
		m.markdown = nil
	}
	m.clampOffset()
	m.refreshChat()
}
