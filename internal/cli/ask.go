// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - "driveagent ask": one question about the synced files.
//
// Examples:
//   driveagent ask "What were Q3 revenues?"
//   echo "Summarize the contract" | driveagent ask -
//   driveagent ask --json "Who signed it?"

package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// AskData is the JSON payload of "ask --json".
type AskData struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HandleAsk handles "driveagent ask QUESTION".
func HandleAsk(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runAsk(ctx, app, NewArgParser(args.Raw))
	})
}

func runAsk(ctx context.Context, app *App, p *ArgParser) error {
	question := JoinPositionalArgs(p, 0)
	if question == "-" {
		data, err := io.ReadAll(app.In)
		if err != nil {
			return err
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrMissingArgument("question", `driveagent ask "What is in the Q3 report?"`)
	}

	answer, err := app.Chat().Send(ctx, question)
	if err != nil {
		return err
	}

	if app.JSON {
		return NewJSONResponse("ask", AskData{Question: question, Answer: answer}).Write(app.Out)
	}
	displayResponse(app, answer)
	return nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderer builds the glamour renderer on first use. ui.theme picks the
// style; "auto" asks the terminal.
func renderer(theme string) *glamour.TermRenderer {
	markdownOnce.Do(func() {
		width := GetTerminalWidth() - 4
		if width > 100 {
			width = 100
		}
		style := glamour.WithAutoStyle()
		if theme == "dark" || theme == "light" {
			style = glamour.WithStandardStyle(theme)
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
		if err == nil {
			markdownRenderer = r
		}
	})
	return markdownRenderer
}

// renderMarkdown renders content for the terminal, returning it unchanged
// if the renderer is unavailable or fails.
func renderMarkdown(content, theme string) string {
	r := renderer(theme)
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// displayResponse prints an assistant reply, rendered as markdown only
// when stdout is a terminal and colors are on.
func displayResponse(app *App, content string) {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if app.Out == io.Writer(os.Stdout) && IsStdoutTTY() && ColorsEnabled() {
		fprintf(app.Out, "%s", renderMarkdown(content, app.Config.UI.Theme))
		return
	}
	fprintf(app.Out, "%s", content)
}
