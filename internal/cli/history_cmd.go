// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - "driveagent history": the local sync journal.

package cli

import (
	"context"
	"time"

	"github.com/jeranaias/driveagent/internal/storage"
	"github.com/jeranaias/driveagent/internal/util"
)

const defaultHistoryLimit = 20

// HandleHistory handles "driveagent history [--limit N] [--clear --confirm]".
func HandleHistory(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runHistory(ctx, app, NewArgParser(args.Raw, "clear", "confirm", "y"))
	})
}

func runHistory(ctx context.Context, app *App, p *ArgParser) error {
	limit, err := p.FlagInt("limit", defaultHistoryLimit)
	if err != nil {
		return err
	}

	hist, err := app.OpenHistory()
	if err != nil {
		return NewCommandError("history", "open", "could not open the sync journal", err)
	}
	defer hist.Close()

	if p.BoolFlag("clear") {
		return clearHistory(ctx, app, hist, p.BoolFlag("confirm", "y"))
	}

	records, err := hist.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if records == nil {
		records = []storage.SyncRecord{}
	}

	if app.JSON {
		return NewJSONResponse("history", records).Write(app.Out)
	}

	if len(records) == 0 {
		fprintf(app.Out, "No syncs yet.\n")
		return nil
	}

	now := time.Now()
	for _, r := range records {
		fprintf(app.Out, "%s  %s  %s  %s  %s\n",
			DimStyle.Render(util.PadRight(formatDuration(now.Sub(r.StartedAt))+" ago", 8)),
			renderRecordState(r.State, 10),
			util.PadRight(plural(len(r.Items), "item"), 9),
			util.PadRight(recordOutcome(r), 12),
			DimStyle.Render(itemNames(r, 40)),
		)
		if r.Reason != "" && r.State != "Succeeded" {
			fprintf(app.Out, "    %s\n", DimStyle.Render(util.TruncateWidth(r.Reason, GetTerminalWidth()-6)))
		}
	}
	return nil
}

func clearHistory(ctx context.Context, app *App, hist *storage.History, confirmFlag bool) error {
	n, err := hist.Count(ctx)
	if err != nil {
		return err
	}
	ok, err := app.RequireConfirmation(confirmFlag, "delete "+plural(n, "sync record"))
	if err != nil {
		return err
	}
	if !ok {
		fprintf(app.Out, "Cancelled.\n")
		return nil
	}
	if err := hist.Clear(ctx); err != nil {
		return err
	}
	if app.JSON {
		return NewJSONResponse("history", map[string]int{"deleted": n}).Write(app.Out)
	}
	fprintf(app.Out, "%s Deleted %s.\n", RenderStatus("ok"), plural(n, "sync record"))
	return nil
}

// renderRecordState pads before styling so escape codes do not count
// toward the column width.
func renderRecordState(state string, width int) string {
	padded := util.PadRight(state, width)
	switch state {
	case "Succeeded":
		return SuccessStyle.Render(padded)
	case "Failed":
		return ErrorStyle.Render(padded)
	default:
		return WarningStyle.Render(padded)
	}
}

func recordOutcome(r storage.SyncRecord) string {
	if r.State == "Succeeded" {
		return plural(r.FileCount, "file")
	}
	if d := r.Duration(); d > 0 {
		return formatDurationShort(d)
	}
	return "-"
}

// itemNames joins the synced item names, truncated to width columns.
func itemNames(r storage.SyncRecord, width int) string {
	s := ""
	for i, it := range r.Items {
		if i > 0 {
			s += ", "
		}
		s += it.Name
	}
	return util.TruncateWidth(s, width)
}
