// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export_cmd.go - "driveagent export": saved chats to Markdown or JSON.

package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/export"
	"github.com/jeranaias/driveagent/internal/storage"
	"github.com/jeranaias/driveagent/internal/util"
)

// ExportData is the JSON payload of a successful export.
type ExportData struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
}

// HandleExport handles "driveagent export [ID] [--format md|json] [--out DIR] [--open]".
// Without an ID it lists the saved chats.
func HandleExport(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runExport(app, NewArgParser(args.Raw, "open"))
	})
}

func runExport(app *App, p *ArgParser) error {
	store, err := app.Transcripts()
	if err != nil {
		return NewCommandError("export", "open", "could not open transcript store", err)
	}

	id := p.Subcommand()
	if id == "" {
		return listTranscripts(app, store)
	}

	t, err := store.Load(id)
	if err != nil {
		return NewCommandError("export", "load", "no saved chat "+id, err)
	}

	format := p.FlagOrDefault("format", "md")
	opts := export.DefaultOptions()
	opts.OutputDir = p.FlagOrDefault("out", ".")
	opts.OpenAfterExport = p.BoolFlag("open")

	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return NewValidationError("--format", format, "must be md or json")
	}
	path, err := export.ExportToFile(t, exp, opts)
	if err != nil && path == "" {
		return NewCommandError("export", "write", "could not export chat "+id, err)
	}
	if err != nil {
		app.Logger.Warn("export written but not opened", zap.Error(err))
	}

	if app.JSON {
		return NewJSONResponse("export", ExportData{ID: t.ID, Path: path, MimeType: exp.MimeType()}).Write(app.Out)
	}
	fprintf(app.Out, "%s Exported %s to %s\n", RenderStatus("ok"), plural(len(t.Messages), "message"), path)
	return nil
}

func listTranscripts(app *App, store *storage.TranscriptStore) error {
	metas, err := store.List()
	if err != nil {
		return err
	}
	if app.JSON {
		return NewJSONResponse("export", metas).Write(app.Out)
	}
	if len(metas) == 0 {
		fprintf(app.Out, "No saved chats.\n")
		return nil
	}

	now := time.Now()
	for _, m := range metas {
		fprintf(app.Out, "%s  %s  %s  %s\n",
			m.ID,
			DimStyle.Render(util.PadRight(formatDuration(now.Sub(m.UpdatedAt))+" ago", 8)),
			util.PadRight(plural(m.MessageCount, "message"), 12),
			util.TruncateWidth(m.Title, 40),
		)
	}
	app.infof("%s\n", DimStyle.Render("Export one with: driveagent export ID [--format md|json]"))
	return nil
}
