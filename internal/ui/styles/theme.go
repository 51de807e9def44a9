// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme and SetMode.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components of the browser.
type Theme struct {
	Mode         string
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header          lipgloss.Style
	Brand           lipgloss.Style
	Crumb           lipgloss.Style
	CrumbCurrent    lipgloss.Style
	CrumbIndex      lipgloss.Style
	CrumbSeparator  lipgloss.Style
	FilterPrompt    lipgloss.Style
	FilterIndicator lipgloss.Style

	// ==========================================================================
	// LIST STYLES
	// ==========================================================================

	Row       lipgloss.Style
	RowCursor lipgloss.Style
	Folder    lipgloss.Style
	File      lipgloss.Style
	Checked   lipgloss.Style
	Unchecked lipgloss.Style
	Empty     lipgloss.Style

	// ==========================================================================
	// SYNC PANEL STYLES
	// ==========================================================================

	SyncPanel   lipgloss.Style
	SyncStep    lipgloss.Style
	SyncMessage lipgloss.Style
	SyncDone    lipgloss.Style
	SyncFailed  lipgloss.Style
	Spinner     lipgloss.Style

	// ==========================================================================
	// CHAT STYLES
	// ==========================================================================

	ChatFrame     lipgloss.Style
	UserTurn      lipgloss.Style
	AssistantTurn lipgloss.Style
	ErrorTurn     lipgloss.Style
	ChatInput     lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusError  lipgloss.Style
	StatusNotice lipgloss.Style
	Dim          lipgloss.Style
}

// NewTheme creates a theme for mode. Unknown modes behave like ModeAuto.
func NewTheme(mode string) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}
	t.SetMode(mode)
	return t
}

// SetMode switches between dark, light and terminal-detected colors and
// rebuilds every style.
func (t *Theme) SetMode(mode string) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case ModeDark:
		t.IsDark = true
	case ModeLight:
		t.IsDark = false
	default:
		mode = ModeAuto
		t.IsDark = termenv.HasDarkBackground()
	}
	t.Mode = mode
	lipgloss.SetHasDarkBackground(t.IsDark)
	t.initStyles()
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.Brand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Crumb = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.CrumbCurrent = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.CrumbIndex = lipgloss.NewStyle().
		Foreground(Purple)

	t.CrumbSeparator = lipgloss.NewStyle().
		Foreground(TextMuted).
		SetString(" / ")

	t.FilterPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.FilterIndicator = lipgloss.NewStyle().
		Italic(true).
		Foreground(Amber)

	// List
	t.Row = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(1)

	t.RowCursor = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true).
		PaddingLeft(1)

	t.Folder = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.File = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Checked = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)

	t.Unchecked = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Empty = lipgloss.NewStyle().
		Italic(true).
		Foreground(TextMuted).
		PaddingLeft(2)

	// Sync panel
	t.SyncPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SyncStep = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.SyncMessage = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SyncDone = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)

	t.SyncFailed = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Amber)

	// Chat
	t.ChatFrame = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.UserTurn = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.AssistantTurn = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.ErrorTurn = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.ChatInput = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusError = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.StatusNotice = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Dim = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, IDs hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
