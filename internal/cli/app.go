// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring shared by every command: config, logger, session and
// backend client.

package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/config"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/logging"
	"github.com/jeranaias/driveagent/internal/session"
	"github.com/jeranaias/driveagent/internal/storage"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// App bundles the dependencies a command needs. Commands write to Out and
// ErrOut so tests can capture them.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Tokens *session.Provider
	API    *backend.Client

	Out    io.Writer
	ErrOut io.Writer
	In     io.Reader

	JSON  bool
	Quiet bool
}

// NewApp loads configuration and builds the logger, session provider and
// backend client for one command run.
func NewApp(args Args) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, NewCommandError("config", "load", "could not read configuration", err)
	}
	if args.URL != "" {
		cfg.Backend.URL = strings.TrimRight(args.URL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	config.SetGlobal(cfg)

	level := cfg.Logging.Level
	if args.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:          level,
		File:           cfg.LogFile(),
		MaxSizeMB:      cfg.Logging.MaxSizeMB,
		MaxBackups:     cfg.Logging.MaxBackups,
		MaxAgeDays:     cfg.Logging.MaxAgeDays,
		ConsoleEnabled: args.Verbose,
	})
	if err != nil {
		return nil, NewCommandError("config", "logging", "could not open log file", err)
	}

	tokens, err := session.NewProvider(cfg.SessionFile())
	if err != nil {
		logger.Sync()
		return nil, NewCommandError("config", "session", "could not read session file", err)
	}

	return newApp(cfg, logger, tokens, args), nil
}

// newApp assembles an App from already-built parts.
func newApp(cfg *config.Config, logger *zap.Logger, tokens *session.Provider, args Args) *App {
	logger = logging.OrNop(logger)
	api := backend.NewClient(&backend.ClientConfig{
		BaseURL:           cfg.Backend.URL,
		Timeout:           cfg.Backend.RequestTimeout.Duration,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		UserAgent:         "driveagent/" + Version,
	}, tokens, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Tokens: tokens,
		API:    api,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		In:     os.Stdin,
		JSON:   args.JSON,
		Quiet:  args.Quiet,
	}
}

// Close flushes the logger.
func (a *App) Close() {
	a.Logger.Sync()
}

// Drive returns a listing client.
func (a *App) Drive() *drive.Client {
	return drive.NewClient(a.API, a.Logger)
}

// Chat returns a chat client.
func (a *App) Chat() *chat.Client {
	return chat.NewClient(a.API, a.Logger)
}

// NewConsumer returns a sync consumer reading from the backend.
func (a *App) NewConsumer(obs syncstream.Observer) *syncstream.Consumer {
	return syncstream.New(syncstream.NewHTTPOpener(a.API),
		syncstream.WithLogger(a.Logger),
		syncstream.WithObserver(obs),
		syncstream.WithIdleTimeout(a.Config.Backend.StreamIdleTimeout.Duration),
	)
}

// OpenHistory opens the sync journal. The caller closes it.
func (a *App) OpenHistory() (*storage.History, error) {
	return storage.OpenHistory(a.Config.HistoryDB())
}

// Transcripts opens the chat transcript store.
func (a *App) Transcripts() (*storage.TranscriptStore, error) {
	return storage.NewTranscriptStore(a.Config.ConversationsDir())
}

// infof prints a human-readable line unless --quiet or --json is set.
// In JSON mode stdout is reserved for the JSON document.
func (a *App) infof(format string, args ...interface{}) {
	if a.Quiet || a.JSON {
		return
	}
	fprintf(a.Out, format, args...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds an App, runs fn under a signal-aware context and closes
// the App afterwards.
func withApp(args Args, fn func(ctx context.Context, app *App) error) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, app)
}
