// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ls_cmd.go - "driveagent ls": list folder contents.
//
// Examples:
//   driveagent ls                          My Drive
//   driveagent ls 1AbC 1DeF --filter q3    Two folders, names containing "q3"
//   driveagent ls --json | jq '.data[0].entries[].id'

package cli

import (
	"context"

	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/util"
)

// LsFolder is one folder in "ls --json" output.
type LsFolder struct {
	Folder  string        `json:"folder"`
	Entries []drive.Entry `json:"entries"`
}

// HandleLs handles "driveagent ls [FOLDER...] [--filter Q]".
func HandleLs(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runLs(ctx, app, NewArgParser(args.Raw))
	})
}

func runLs(ctx context.Context, app *App, p *ArgParser) error {
	folders := p.PositionalFrom(0)
	if len(folders) == 0 {
		folders = []string{drive.Root.ID}
	}

	listing, err := app.Drive().ListMany(ctx, folders)
	if err != nil {
		return err
	}

	query := p.Flag("filter", "f")
	out := make([]LsFolder, 0, len(folders))
	seen := make(map[string]bool, len(folders))
	for _, id := range folders {
		if seen[id] {
			continue
		}
		seen[id] = true
		entries := drive.SortFoldersFirst(drive.Filter(listing[id], query))
		if entries == nil {
			entries = []drive.Entry{}
		}
		out = append(out, LsFolder{Folder: id, Entries: entries})
	}

	if app.JSON {
		return NewJSONResponse("ls", out).Write(app.Out)
	}

	for i, f := range out {
		if len(out) > 1 {
			if i > 0 {
				fprintf(app.Out, "\n")
			}
			fprintf(app.Out, "%s\n", SectionStyle.Render(f.Folder+":"))
		}
		printEntries(app, f.Entries)
	}
	return nil
}

// printEntries prints one row per entry: kind, name and ID. Names are
// padded by display width so CJK names line up.
func printEntries(app *App, entries []drive.Entry) {
	if len(entries) == 0 {
		app.infof("%s\n", DimStyle.Render("(empty)"))
		return
	}

	nameWidth := 0
	for _, e := range entries {
		if w := util.StringWidth(e.Name); w > nameWidth {
			nameWidth = w
		}
	}
	maxName := GetTerminalWidth() - 40
	if maxName < 20 {
		maxName = 20
	}
	if nameWidth > maxName {
		nameWidth = maxName
	}

	for _, e := range entries {
		name := util.PadRight(util.TruncateWidth(e.Name, nameWidth), nameWidth)
		if e.IsFolder() {
			fprintf(app.Out, "%s  %s  %s\n", FolderStyle.Render("dir "), FolderStyle.Render(name), DimStyle.Render(e.ID))
		} else {
			fprintf(app.Out, "%s  %s  %s\n", DimStyle.Render("file"), name, DimStyle.Render(e.ID))
		}
	}
}
