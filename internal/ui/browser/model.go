// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/logging"
	"github.com/jeranaias/driveagent/internal/storage"
	"github.com/jeranaias/driveagent/internal/syncstream"
	"github.com/jeranaias/driveagent/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Lister lists the children of a folder. *drive.Client implements it.
type Lister interface {
	ListChildren(ctx context.Context, folderID string) ([]drive.Entry, error)
}

// Syncer runs sync attempts. *syncstream.Consumer implements it.
type Syncer interface {
	Start(ctx context.Context, items []drive.Snapshot) error
	Cancel() bool
	Reset() error
	Status() syncstream.Status
}

// Options are the collaborators and settings of a Model. Drive, NewSyncer
// and Chat are required.
type Options struct {
	Drive Lister

	// NewSyncer builds the syncer once, with the observer that feeds
	// progress into the model.
	NewSyncer func(obs syncstream.Observer) Syncer

	Chat chat.Sender

	// Transcripts, when set, receives the conversation on quit.
	Transcripts *storage.TranscriptStore

	// SyncedFiles seeds the chat context with the files of an earlier sync.
	SyncedFiles []string

	// OnSyncDone is called after every attempt that reached the backend.
	OnSyncDone func(st syncstream.Status)

	// Theme is "dark", "light" or "auto"; ThemeChanges delivers new values.
	Theme        string
	ThemeChanges <-chan string

	Logger *zap.Logger
}

// =============================================================================
// MODEL
// =============================================================================

type screen int

const (
	screenBrowse screen = iota
	screenChat
)

// Model is the Bubble Tea model of the browser.
type Model struct {
	opts   Options
	logger *zap.Logger

	// Styling
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	// Dimensions
	width  int
	height int

	screen screen

	// Folder view
	nav       *drive.Navigator
	entries   []drive.Entry
	visible   []drive.Entry
	cursor    int
	offset    int
	loading   bool
	filter    textinput.Model
	filtering bool

	// Sync
	syncer     Syncer
	feed       *syncFeed
	syncing    bool
	syncStatus syncstream.Status
	progress   progress.Model
	spinner    spinner.Model

	// Chat
	session   *chat.Session
	chatInput textinput.Model
	viewport  viewport.Model
	asking    bool
	pending   string
	askCancel context.CancelFunc
	markdown  *glamour.TermRenderer
	mdWidth   int

	// Status line
	notice string
	err    error

	quitting bool
}

// New creates a browser positioned at My Drive.
func New(opts Options) Model {
	logger := logging.OrNop(opts.Logger).Named("browser")

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter by name"
	filter.CharLimit = 100

	chatInput := textinput.New()
	chatInput.Prompt = "you> "
	chatInput.Placeholder = "Ask about your synced files"
	chatInput.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.SyncSpinner.Frames,
		FPS:    styles.SyncSpinner.Duration(),
	}

	feed := newSyncFeed(syncBuffer)
	var syncer Syncer
	if opts.NewSyncer != nil {
		syncer = opts.NewSyncer(syncObserver(feed))
	}

	sess := chat.NewSession(opts.Chat)
	sess.SetFiles(opts.SyncedFiles)

	theme := styles.NewTheme(opts.Theme)
	sp.Style = theme.Spinner

	return Model{
		opts:       opts,
		logger:     logger,
		theme:      theme,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		nav:        drive.NewNavigator(),
		loading:    true,
		filter:     filter,
		syncer:     syncer,
		feed:       feed,
		syncStatus: syncstream.Status{State: syncstream.StateIdle},
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:    sp,
		session:    sess,
		chatInput:  chatInput,
		viewport:   viewport.New(80, 10),
	}
}

// Init loads the root folder.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadFolderCmd(m.opts.Drive, m.nav.Current().ID),
		m.spinner.Tick,
		waitForTheme(m.opts.ThemeChanges),
	)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Current returns the folder being viewed.
func (m Model) Current() drive.Breadcrumb {
	return m.nav.Current()
}

// Breadcrumbs returns the navigation stack, root first.
func (m Model) Breadcrumbs() []drive.Breadcrumb {
	return m.nav.Breadcrumbs()
}

// Selected returns the selected items in selection order.
func (m Model) Selected() []drive.Snapshot {
	return m.nav.Selection().Items()
}

// Visible returns the entries shown after filtering.
func (m Model) Visible() []drive.Entry {
	return m.visible
}

// Cursor returns the index of the highlighted entry.
func (m Model) Cursor() int {
	return m.cursor
}

// SyncStatus returns the last known sync status.
func (m Model) SyncStatus() syncstream.Status {
	return m.syncStatus
}

// Syncing reports whether an attempt is running.
func (m Model) Syncing() bool {
	return m.syncing
}

// Session returns the chat session.
func (m Model) Session() *chat.Session {
	return m.session
}

// Err returns the error shown in the status line, if any.
func (m Model) Err() error {
	return m.err
}

// Notice returns the informational status line.
func (m Model) Notice() string {
	return m.notice
}
