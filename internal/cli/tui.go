// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - "driveagent" with no command: the interactive browser.

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/config"
	"github.com/jeranaias/driveagent/internal/syncstream"
	"github.com/jeranaias/driveagent/internal/ui/browser"
)

// HandleTUI runs the interactive browser until the user quits.
func HandleTUI(args Args) error {
	if args.JSON {
		return NewValidationError("--json", "", "the interactive browser has no JSON mode; use ls or sync")
	}
	if err := RequiresTTY("the interactive browser"); err != nil {
		return err
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	store, err := app.Transcripts()
	if err != nil {
		app.Logger.Warn("transcripts disabled", zap.Error(err))
		store = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := browser.New(browser.Options{
		Drive: app.Drive(),
		NewSyncer: func(obs syncstream.Observer) browser.Syncer {
			return app.NewConsumer(obs)
		},
		Chat:         app.Chat(),
		Transcripts:  store,
		SyncedFiles:  lastSyncedItems(app),
		OnSyncDone:   func(st syncstream.Status) { recordSync(app, st) },
		Theme:        app.Config.UI.Theme,
		ThemeChanges: watchTheme(ctx, app),
		Logger:       app.Logger,
	})

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// watchTheme reports ui.theme whenever the config file changes. It returns
// nil when the file cannot be watched.
func watchTheme(ctx context.Context, app *App) <-chan string {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return nil
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil
	}

	changes := make(chan string, 1)
	current := app.Config.UI.Theme
	go func() {
		err := config.Watch(ctx, path, func(cfg *config.Config) {
			if cfg.UI.Theme == current {
				return
			}
			current = cfg.UI.Theme
			select {
			case changes <- current:
			case <-ctx.Done():
			}
		}, func(err error) {
			app.Logger.Warn("config reload failed", zap.Error(err))
		})
		if err != nil {
			app.Logger.Warn("config watch stopped", zap.Error(err))
		}
	}()
	return changes
}
