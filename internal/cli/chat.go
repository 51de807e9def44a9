// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - "driveagent chat": interactive chat about the synced files.
//
// Flags:
//   --resume ID         Continue a saved conversation
//   --no-save           Do not save the transcript on exit
//
// Interactive commands:
//   /help               Show available commands
//   /history            Show this conversation
//   /clear              Start a new conversation
//   /save               Save the transcript now
//   /quit, /exit        Leave (Ctrl+D works too)
//
// Ctrl+C while waiting for an answer abandons that request only.

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/config"
	"github.com/jeranaias/driveagent/internal/export"
	"github.com/jeranaias/driveagent/internal/storage"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI wraps liner for line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt. Non-blank lines are added
// to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleChat handles "driveagent chat".
func HandleChat(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	p := NewArgParser(args.Raw, "no-save")
	store, err := app.Transcripts()
	if err != nil {
		return NewCommandError("chat", "open", "could not open transcript store", err)
	}

	sess := chat.NewSession(app.Chat())
	if id := p.Flag("resume", "r"); id != "" {
		t, err := store.Load(id)
		if err != nil {
			return err
		}
		sess = chat.Resume(app.Chat(), t)
	}
	if sess.Len() == 0 {
		sess.SetFiles(lastSyncedItems(app))
	}
	if p.BoolFlag("no-save") {
		store = nil
	}

	input := NewChatCLI()
	defer input.Close()

	return runChatLoop(app, sess, store, input)
}

// runChatLoop reads questions until EOF, /quit or Ctrl+C at the prompt.
// Each request gets its own interrupt-aware context so Ctrl+C abandons
// the request without leaving the chat.
func runChatLoop(app *App, sess *chat.Session, store *storage.TranscriptStore, input lineReader) error {
	printChatBanner(app, sess)
	defer func() { saveTranscript(app, sess, store) }()

	for {
		line, err := input.ReadInput("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fprintf(app.Out, "\n")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := handleChatCommand(app, sess, store, line)
			if err != nil {
				fprintf(app.ErrOut, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
			}
			if quit {
				return nil
			}
			if line == "/clear" {
				files := sess.Files()
				sess = chat.NewSession(app.Chat())
				sess.SetFiles(files)
			}
			continue
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		answer, err := sess.Ask(ctx, line)
		stop()
		switch {
		case err == nil:
			fprintf(app.Out, "\n")
			displayResponse(app, answer)
			fprintf(app.Out, "\n")
		case errors.Is(err, context.Canceled):
			fprintf(app.ErrOut, "%s\n", WarningStyle.Render("(cancelled)"))
		default:
			fprintf(app.ErrOut, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
			if hint := hintFor(err); hint != "" {
				fprintf(app.ErrOut, "%s\n", DimStyle.Render(hint))
			}
		}
	}
}

// handleChatCommand runs a slash command and reports whether to quit.
func handleChatCommand(app *App, sess *chat.Session, store *storage.TranscriptStore, line string) (bool, error) {
	cmd := strings.ToLower(strings.Fields(line)[0])
	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/h":
		fprintf(app.Out, "%s\n", DimStyle.Render("/history  /clear  /save  /export [md|json]  /quit"))
	case "/history":
		turns := sess.Turns()
		if len(turns) == 0 {
			fprintf(app.Out, "%s\n", DimStyle.Render("(no messages yet)"))
		}
		for _, t := range turns {
			fprintf(app.Out, "%s %s\n", roleTag(t.Role), t.Content)
		}
	case "/clear":
		saveTranscript(app, sess, store)
		fprintf(app.Out, "%s\n", DimStyle.Render("Started a new conversation."))
	case "/save":
		if store == nil {
			return false, errors.New("saving is disabled (--no-save)")
		}
		if err := sess.Save(store); err != nil {
			return false, err
		}
		fprintf(app.Out, "%s Saved as %s\n", RenderStatus("ok"), sess.ID())
	case "/export":
		return false, exportSession(app, sess, strings.Fields(line)[1:])
	default:
		return false, NewValidationError("chat command", cmd, "unknown; try /help")
	}
	return false, nil
}

// lastSyncedItems returns the item names of the most recent successful
// sync, which is what the backend chat session was built from.
func lastSyncedItems(app *App) []string {
	hist, err := app.OpenHistory()
	if err != nil {
		return nil
	}
	defer hist.Close()

	records, err := hist.Recent(context.Background(), 20)
	if err != nil {
		return nil
	}
	for _, r := range records {
		if r.State != "Succeeded" {
			continue
		}
		names := make([]string, 0, len(r.Items))
		for _, it := range r.Items {
			names = append(names, it.Name)
		}
		return names
	}
	return nil
}

func roleTag(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return PromptStyle.Render("you>")
	case chat.RoleAssistant:
		return SuccessStyle.Render("agent>")
	default:
		return ErrorStyle.Render("error>")
	}
}

func printChatBanner(app *App, sess *chat.Session) {
	if app.Quiet {
		return
	}
	fprintf(app.Out, "%s\n", TitleStyle.Render("driveagent chat"))
	if files := sess.Files(); len(files) > 0 {
		fprintf(app.Out, "%s\n", DimStyle.Render("Last sync: "+strings.Join(files, ", ")))
	}
	if n := sess.Len(); n > 0 {
		fprintf(app.Out, "%s\n", DimStyle.Render("Resumed conversation "+sess.ID()+" ("+plural(n, "message")+")"))
	}
	fprintf(app.Out, "%s\n\n", DimStyle.Render("Ask about your synced files. /help for commands, Ctrl+D to leave."))
}

func saveTranscript(app *App, sess *chat.Session, store *storage.TranscriptStore) {
	if store == nil || sess.Len() == 0 {
		return
	}
	if err := sess.Save(store); err != nil {
		app.Logger.Warn("could not save transcript", zap.Error(err))
		return
	}
	app.infof("%s\n", DimStyle.Render("Conversation saved as "+sess.ID()))
}

// exportSession writes the conversation so far to the current directory.
func exportSession(app *App, sess *chat.Session, args []string) error {
	if sess.Len() == 0 {
		return errors.New("nothing to export yet")
	}
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	exp, err := export.ForFormat(format, nil)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(sess.Transcript(), exp, nil)
	if err != nil {
		return err
	}
	fprintf(app.Out, "%s Exported to %s\n", RenderStatus("ok"), path)
	return nil
}
