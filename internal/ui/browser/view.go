// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/syncstream"
	"github.com/jeranaias/driveagent/internal/ui/styles"
	"github.com/jeranaias/driveagent/internal/util"
)

// Rows taken by the header, status line and help bar.
const chromeHeight = 3

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.screen == screenChat {
		return m.viewChat()
	}
	return m.viewBrowse()
}

// =============================================================================
// BROWSE SCREEN
// =============================================================================

func (m Model) viewBrowse() string {
	parts := []string{m.renderHeader()}
	if m.filtering || m.filter.Value() != "" {
		parts = append(parts, m.renderFilter())
	}
	parts = append(parts, m.renderList())
	if panel := m.renderSyncPanel(); panel != "" {
		parts = append(parts, panel)
	}
	parts = append(parts, m.renderStatus(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader draws the brand and the numbered breadcrumbs.
func (m Model) renderHeader() string {
	crumbs := m.nav.Breadcrumbs()
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		name := util.TruncateWidth(c.Name, 24)
		style := m.theme.Crumb
		if i == len(crumbs)-1 {
			style = m.theme.CrumbCurrent
		}
		if i < 9 {
			parts[i] = m.theme.CrumbIndex.Render(fmt.Sprintf("%d ", i+1)) + style.Render(name)
		} else {
			parts[i] = style.Render(name)
		}
	}

	line := m.theme.Brand.Render("driveagent") + "  " + strings.Join(parts, m.theme.CrumbSeparator.String())
	if n := m.nav.Selection().Len(); n > 0 {
		line += "  " + m.theme.Checked.Render(fmt.Sprintf("(%d selected)", n))
	}
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderFilter() string {
	if m.filtering {
		return m.filter.View()
	}
	return m.theme.FilterIndicator.Render(fmt.Sprintf("filter: %q  (esc to clear)", m.filter.Value()))
}

func (m Model) renderList() string {
	h := m.listHeight()
	var lines []string

	switch {
	case m.loading:
		lines = append(lines, m.theme.Empty.Render(m.spinner.View()+" Loading "+m.nav.Current().Name+"..."))
	case len(m.visible) == 0 && len(m.entries) > 0:
		lines = append(lines, m.theme.Empty.Render("No names match the filter"))
	case len(m.visible) == 0:
		lines = append(lines, m.theme.Empty.Render("This folder is empty"))
	default:
		end := m.offset + h
		if end > len(m.visible) {
			end = len(m.visible)
		}
		for i := m.offset; i < end; i++ {
			lines = append(lines, m.renderRow(m.visible[i], i == m.cursor))
		}
	}

	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderRow draws "[x] name/   id". IDs are hidden on narrow terminals.
func (m Model) renderRow(e drive.Entry, cursor bool) string {
	box := m.theme.Unchecked.Render(styles.StatusIndicators.Empty)
	if m.nav.Selection().Has(e.ID) {
		box = m.theme.Checked.Render(styles.StatusIndicators.Checked)
	}

	nameWidth := m.width - 8
	showID := m.theme.GetLayoutMode() != styles.LayoutNarrow
	if showID {
		nameWidth -= util.StringWidth(e.ID) + 2
	}
	if nameWidth < 10 {
		nameWidth = 10
	}

	name := e.Name
	nameStyle := m.theme.File
	if e.IsFolder() {
		name += "/"
		nameStyle = m.theme.Folder
	}
	name = util.PadRight(util.TruncateWidth(name, nameWidth), nameWidth)

	line := box + " " + nameStyle.Render(name)
	if showID {
		line += "  " + m.theme.Dim.Render(e.ID)
	}
	if cursor {
		return m.theme.RowCursor.Render(line)
	}
	return m.theme.Row.Render(line)
}

// renderSyncPanel shows the running or last attempt. Idle renders nothing.
func (m Model) renderSyncPanel() string {
	st := m.syncStatus
	if st.State == syncstream.StateIdle {
		return ""
	}

	var head, detail string
	switch {
	case m.syncing:
		step := st.Step
		label := "Requesting"
		if st.State == syncstream.StateStreaming {
			label = step.String()
		}
		head = m.spinner.View() + " " + m.theme.SyncStep.Render(fmt.Sprintf("[%d/%d] %s", step.Index(), len(syncstream.Steps), label))
		head += "  " + m.progress.ViewAs(float64(step.Index())/float64(len(syncstream.Steps)))
		if st.LastEvent != nil {
			detail = eventText(*st.LastEvent)
		}
	case st.Abandoned:
		head = m.theme.SyncMessage.Render("Sync abandoned after " + plural(st.Events, "event"))
	case st.State == syncstream.StateSucceeded:
		head = m.theme.SyncDone.Render(styles.StatusIndicators.Success + " " + plural(st.FileCount, "file") + " synced")
		detail = strings.Join(st.Files, ", ")
	case st.State == syncstream.StateFailed:
		head = m.theme.SyncFailed.Render(styles.StatusIndicators.Error + " Sync failed")
		detail = st.Reason
		if detail == "" && st.Err != nil {
			detail = st.Err.Error()
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	lines := []string{head}
	if detail != "" {
		lines = append(lines, m.theme.SyncMessage.Render(util.TruncateWidth(detail, width)))
	}
	return m.theme.SyncPanel.Width(m.width).Render(strings.Join(lines, "\n"))
}

func (m Model) syncPanelHeight() int {
	if m.syncStatus.State == syncstream.StateIdle {
		return 0
	}
	// Border plus head and detail lines.
	return 3
}

func (m Model) renderStatus() string {
	var text string
	switch {
	case m.err != nil:
		text = m.theme.StatusError.Render(errorText(m.err))
	case m.notice != "":
		text = m.theme.StatusNotice.Render(m.notice)
	default:
		text = m.theme.Dim.Render(fmt.Sprintf("%s  %s", m.nav.Path(), plural(len(m.visible), "item")))
	}
	return m.theme.StatusBar.Width(m.width).Render(text)
}

// listHeight is the number of entry rows that fit.
func (m Model) listHeight() int {
	h := m.height - chromeHeight - m.syncPanelHeight()
	if m.filtering || m.filter.Value() != "" {
		h--
	}
	if m.help.ShowAll {
		h -= 5
	}
	if h < 1 {
		h = 1
	}
	return h
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (m Model) viewChat() string {
	title := m.theme.Brand.Render("driveagent chat")
	if files := m.session.Files(); len(files) > 0 {
		title += "  " + m.theme.Dim.Render(util.TruncateWidth("about "+strings.Join(files, ", "), m.width-20))
	} else {
		title += "  " + m.theme.Dim.Render("nothing synced yet")
	}

	input := m.chatInput.View()
	if m.asking {
		input = m.spinner.View() + " " + m.theme.Dim.Render("waiting for an answer (esc to cancel)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Header.Width(m.width).Render(title),
		m.viewport.View(),
		m.theme.ChatInput.Width(m.width).Render(input),
		m.renderChatStatus(),
		m.help.View(chatKeys{m.keys}),
	)
}

func (m Model) renderChatStatus() string {
	text := m.theme.Dim.Render(plural(m.session.Len(), "message"))
	switch {
	case m.err != nil:
		text = m.theme.StatusError.Render(errorText(m.err))
	case m.notice != "":
		text = m.theme.StatusNotice.Render(m.notice)
	}
	return m.theme.StatusBar.Width(m.width).Render(text)
}

// chatHeight is the viewport height: everything but header, input
// (with its border), status and help.
func (m Model) chatHeight() int {
	h := m.height - chromeHeight - 2
	if h < 3 {
		h = 3
	}
	return h
}

// refreshChat rebuilds the transcript shown in the viewport and scrolls
// to the end.
func (m *Model) refreshChat() {
	var sb strings.Builder
	turns := m.session.Turns()
	if len(turns) == 0 && m.pending == "" {
		sb.WriteString(m.theme.Dim.Render("Ask a question about the files you synced."))
	}
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderTurn(t.Role, t.Content))
	}
	if m.pending != "" {
		if len(turns) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderTurn(chat.RoleUser, m.pending))
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderTurn(role chat.Role, content string) string {
	switch role {
	case chat.RoleUser:
		return m.theme.UserTurn.Render("you> ") + content + "\n"
	case chat.RoleAssistant:
		return m.theme.AssistantTurn.Render("agent>") + "\n" + m.renderMarkdown(content)
	default:
		return m.theme.ErrorTurn.Render("error> ") + content + "\n"
	}
}

// renderMarkdown renders assistant replies with glamour, wrapped to the
// viewport. The renderer is rebuilt after a resize or theme change.
func (m *Model) renderMarkdown(content string) string {
	if m.markdown == nil {
		style := styles.ModeLight
		if m.theme.IsDark {
			style = styles.ModeDark
		}
		width := m.viewport.Width - 2
		if width < 20 {
			width = 20
		}
		r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
		if err != nil {
			return content + "\n"
		}
		m.markdown = r
		m.mdWidth = m.viewport.Width
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

// eventText is "message (detail)" for a progress event.
func eventText(ev syncstream.Event) string {
	if ev.Detail != "" && ev.Detail != ev.Message {
		return ev.Message + " (" + ev.Detail + ")"
	}
	return ev.Message
}

// errorText adds the next step to errors the user can fix.
func errorText(err error) string {
	switch {
	case backend.IsNoSelection(err):
		return "Nothing selected: press space on the items to sync"
	case backend.IsAuthExpired(err):
		return "Session expired: run 'driveagent login' and restart"
	case errors.Is(err, syncstream.ErrSyncFailed):
		return err.Error()
	case backend.IsTransport(err):
		return "Backend unreachable: " + err.Error()
	}
	return err.Error()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
