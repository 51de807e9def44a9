// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sync_cmd.go - "driveagent sync": sync selected items with live progress.
//
// Examples:
//   driveagent sync 1AbC 1DeF               Two items from My Drive
//   driveagent sync --folder 1XyZ --all     Everything in folder 1XyZ
//   driveagent sync --folder 1XyZ 1AbC      One item inside folder 1XyZ
//
// Ctrl+C abandons the sync; the journal keeps a record of it.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/storage"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// SyncData is the JSON payload of "sync --json".
type SyncData struct {
	AttemptID string           `json:"attempt_id"`
	State     string           `json:"state"`
	Abandoned bool             `json:"abandoned,omitempty"`
	FileCount int              `json:"file_count"`
	Files     []string         `json:"files"`
	Reason    string           `json:"reason,omitempty"`
	Events    int              `json:"events"`
	Malformed int              `json:"malformed"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Items     []drive.Snapshot `json:"items"`
}

// HandleSync handles "driveagent sync".
func HandleSync(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runSync(ctx, app, NewArgParser(args.Raw, "all", "a"))
	})
}

func runSync(ctx context.Context, app *App, p *ArgParser) error {
	items, err := resolveSelection(ctx, app, p.Flag("folder", "F"), p.PositionalFrom(0), p.BoolFlag("all", "a"))
	if err != nil {
		return err
	}

	progress := newSyncProgress(app)
	consumer := app.NewConsumer(progress.observer())

	if len(items) > 0 {
		app.infof("%s %s\n", TitleStyle.Render("Syncing"), plural(len(items), "item"))
	}
	runErr := consumer.Start(ctx, items)
	st := consumer.Status()

	// Nothing was attempted for an empty selection.
	if st.AttemptID != "" {
		recordSync(app, st)
	}

	if app.JSON && st.AttemptID != "" {
		data := syncData(st)
		if runErr != nil {
			resp := NewJSONErrorResponse("sync", runErr)
			resp.Data = data
			resp.Write(app.Out)
			return &reportedError{runErr}
		}
		return NewJSONResponse("sync", data).Write(app.Out)
	}

	switch {
	case runErr == nil:
		fprintf(app.Out, "%s Synced %s in %s\n", RenderStatus("ok"), plural(st.FileCount, "file"), formatDurationShort(st.Elapsed()))
		if !app.Quiet {
			for _, f := range st.Files {
				fprintf(app.Out, "  %s\n", f)
			}
			app.infof("%s\n", DimStyle.Render("Ask about them with 'driveagent chat'."))
		}
	case errors.Is(runErr, context.Canceled):
		fprintf(app.ErrOut, "%s Sync abandoned.\n", WarningStyle.Render("[WARN]"))
	}
	return runErr
}

// resolveSelection turns command-line arguments into the snapshots to sync.
// IDs are looked up in folder (My Drive when empty) so their names and
// types are known; with all, every entry of folder is selected.
func resolveSelection(ctx context.Context, app *App, folder string, ids []string, all bool) ([]drive.Snapshot, error) {
	if len(ids) == 0 && !all {
		return nil, nil
	}

	nav := drive.NewNavigator()
	if folder != "" && folder != drive.Root.ID {
		if err := nav.Descend(drive.Entry{ID: folder, Name: folder, MimeType: drive.FolderMimeType, Kind: drive.KindFolder}); err != nil {
			return nil, err
		}
	}

	entries, err := app.Drive().ListChildren(ctx, nav.Current().ID)
	if err != nil {
		return nil, err
	}

	sel := nav.Selection()
	if all {
		for _, e := range entries {
			sel.Toggle(e)
		}
		return sel.Items(), nil
	}

	byID := make(map[string]drive.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	var missing []string
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if !sel.Has(id) {
			sel.Toggle(e)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Field:   "item",
			Value:   strings.Join(missing, ", "),
			Reason:  fmt.Sprintf("not found in %s", nav.Current().Name),
			Example: "driveagent sync --folder FOLDER_ID ITEM_ID",
		}
	}
	return sel.Items(), nil
}

// recordSync journals the attempt. Journal failures are logged only; they
// must not turn a good sync into a failed command.
func recordSync(app *App, st syncstream.Status) {
	hist, err := app.OpenHistory()
	if err != nil {
		app.Logger.Warn("could not open sync history", zap.Error(err))
		return
	}
	defer hist.Close()

	// The command context may already be cancelled by Ctrl+C.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hist.Record(ctx, syncRecord(st)); err != nil {
		app.Logger.Warn("could not record sync", zap.Error(err))
	}
}

func syncRecord(st syncstream.Status) storage.SyncRecord {
	state := st.State.String()
	reason := st.Reason
	finished := st.FinishedAt
	if st.Abandoned {
		state = "Abandoned"
		if finished.IsZero() {
			finished = time.Now()
		}
	}
	if reason == "" && st.Err != nil {
		reason = st.Err.Error()
	}
	return storage.SyncRecord{
		ID:         st.AttemptID,
		StartedAt:  st.StartedAt,
		FinishedAt: finished,
		State:      state,
		FileCount:  st.FileCount,
		Reason:     reason,
		Items:      st.Items,
	}
}

func syncData(st syncstream.Status) SyncData {
	files := st.Files
	if files == nil {
		files = []string{}
	}
	return SyncData{
		AttemptID: st.AttemptID,
		State:     st.State.String(),
		Abandoned: st.Abandoned,
		FileCount: st.FileCount,
		Files:     files,
		Reason:    st.Reason,
		Events:    st.Events,
		Malformed: st.Malformed,
		ElapsedMS: st.Elapsed().Milliseconds(),
		Items:     st.Items,
	}
}

// =============================================================================
// PROGRESS
// =============================================================================

// syncProgress prints one line per event while a sync runs.
type syncProgress struct {
	app *App
}

func newSyncProgress(app *App) *syncProgress {
	return &syncProgress{app: app}
}

func (p *syncProgress) observer() syncstream.Observer {
	if p.app.JSON || p.app.Quiet {
		return syncstream.Observer{}
	}
	return syncstream.Observer{
		OnEvent: p.onEvent,
		OnError: p.onError,
	}
}

func (p *syncProgress) onEvent(ev syncstream.Event, st syncstream.Status) {
	if ev.Status == syncstream.StatusComplete || ev.Status == syncstream.StatusSuccess || ev.Status == syncstream.StatusError {
		return
	}
	fprintf(p.app.Out, "  %s %s\n", stepTag(st.Step), progressText(ev))
}

// onError only reports timing; main prints the error itself.
func (p *syncProgress) onError(st syncstream.Status) {
	fprintf(p.app.ErrOut, "%s Sync stopped after %s (%s)\n", RenderStatus("fail"), formatDurationShort(st.Elapsed()), plural(st.Events, "event"))
}

// stepTag renders "[2/5]" for a known step and "[...]" otherwise.
func stepTag(s syncstream.Step) string {
	if s.Index() == 0 {
		return DimStyle.Render("[...]")
	}
	return WarningStyle.Render(fmt.Sprintf("[%d/%d]", s.Index(), len(syncstream.Steps)))
}

func progressText(ev syncstream.Event) string {
	switch {
	case ev.Message != "" && ev.Detail != "":
		return ev.Message + " " + DimStyle.Render("("+ev.Detail+")")
	case ev.Message != "":
		return ev.Message
	case ev.Detail != "":
		return ev.Detail
	default:
		return DimStyle.Render(string(ev.Status))
	}
}

// reportedError marks an error whose JSON document was already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err has already been written to stdout as
// JSON, so main should only set the exit code.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
