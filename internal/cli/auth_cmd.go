// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign-in related commands: login, logout, status, apikey.
//
// Examples:
//   driveagent login --open        Open the sign-in page in a browser
//   driveagent status --json       Machine-readable sign-in state
//   driveagent apikey              Prompt for the assistant API key

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// LoginData is the JSON payload of "login --json".
type LoginData struct {
	URL         string `json:"url"`
	SessionFile string `json:"session_file"`
	Opened      bool   `json:"opened"`
}

// HandleLogin handles "driveagent login [--open]".
func HandleLogin(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runLogin(ctx, app, NewArgParser(args.Raw, "open"))
	})
}

func runLogin(ctx context.Context, app *App, p *ArgParser) error {
	url, err := app.API.LoginURL(ctx)
	if err != nil {
		return err
	}

	opened := false
	if p.BoolFlag("open", "o") {
		if err := openBrowser(url); err != nil {
			app.Logger.Warn("could not open browser", zap.Error(err))
		} else {
			opened = true
		}
	}

	if app.JSON {
		return NewJSONResponse("login", LoginData{
			URL:         url,
			SessionFile: app.Tokens.Path(),
			Opened:      opened,
		}).Write(app.Out)
	}

	if opened {
		fprintf(app.Out, "Opened the sign-in page in your browser.\n")
	} else {
		fprintf(app.Out, "Open this URL to sign in:\n\n  %s\n\n", url)
	}
	app.infof("%s\n", DimStyle.Render("Run 'driveagent status' once you have authorized access."))
	return nil
}

// HandleLogout handles "driveagent logout".
func HandleLogout(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runLogout(ctx, app)
	})
}

func runLogout(ctx context.Context, app *App) error {
	hadSession := app.Tokens.Token() != ""
	err := app.API.Logout(ctx)

	// The local token is gone even when the backend call failed.
	if app.Tokens.Token() != "" {
		return err
	}

	if app.JSON {
		data := map[string]interface{}{"signed_out": hadSession}
		if err != nil {
			data["warning"] = err.Error()
		}
		return NewJSONResponse("logout", data).Write(app.Out)
	}

	if err != nil {
		fprintf(app.ErrOut, "%s backend sign-out failed: %v\n", WarningStyle.Render("[WARN]"), err)
	}
	if hadSession {
		fprintf(app.Out, "%s Signed out.\n", RenderStatus("ok"))
	} else {
		fprintf(app.Out, "Not signed in.\n")
	}
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// StatusData is the JSON payload of "status --json".
type StatusData struct {
	Backend       string `json:"backend"`
	HasSession    bool   `json:"has_session"`
	Authenticated bool   `json:"authenticated"`
	APIKeySet     bool   `json:"api_key_set"`
	UserName      string `json:"user_name,omitempty"`
	UserEmail     string `json:"user_email,omitempty"`
}

// HandleStatus handles "driveagent status".
func HandleStatus(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		return runStatus(ctx, app)
	})
}

func runStatus(ctx context.Context, app *App) error {
	st, err := app.API.Status(ctx)
	if err != nil {
		return err
	}

	data := StatusData{
		Backend:       app.API.BaseURL(),
		HasSession:    app.Tokens.Token() != "",
		Authenticated: st.Authenticated,
		APIKeySet:     st.APIKeySet,
	}
	if st.User != nil {
		data.UserName = st.User.Name
		data.UserEmail = st.User.Email
	}

	if app.JSON {
		return NewJSONResponse("status", data).Write(app.Out)
	}

	yesNo := func(b bool) string {
		if b {
			return RenderStatus("yes") + " yes"
		}
		return RenderStatus("no") + " no"
	}

	fprintf(app.Out, "%s\n", TitleStyle.Render("driveagent status"))
	fprintf(app.Out, "%s\n", RenderSeparator(40))
	fprintf(app.Out, "%s%s\n", RenderLabel("Backend"), ValueStyle.Render(data.Backend))
	fprintf(app.Out, "%s%s\n", RenderLabel("Session"), ValueStyle.Render(maskToken(app.Tokens.Token())))
	fprintf(app.Out, "%s%s\n", RenderLabel("Signed in"), yesNo(data.Authenticated))
	if data.UserName != "" || data.UserEmail != "" {
		fprintf(app.Out, "%s%s %s\n", RenderLabel("User"), ValueStyle.Render(data.UserName), DimStyle.Render("<"+data.UserEmail+">"))
	}
	fprintf(app.Out, "%s%s\n", RenderLabel("API key set"), yesNo(data.APIKeySet))

	if !data.Authenticated {
		app.infof("\n%s\n", DimStyle.Render("Run 'driveagent login' to sign in."))
	} else if !data.APIKeySet {
		app.infof("\n%s\n", DimStyle.Render("Run 'driveagent apikey' before syncing."))
	}
	return nil
}

// =============================================================================
// API KEY
// =============================================================================

// HandleAPIKey handles "driveagent apikey [KEY]". Without KEY the key is
// read without echo from the terminal.
func HandleAPIKey(args Args) error {
	return withApp(args, func(ctx context.Context, app *App) error {
		p := NewArgParser(args.Raw)
		key := p.Positional(0)
		if key == "" {
			var err error
			if key, err = readAPIKey(app); err != nil {
				return err
			}
		}
		return runAPIKey(ctx, app, key)
	})
}

func runAPIKey(ctx context.Context, app *App, key string) error {
	if err := app.API.SetAPIKey(ctx, key); err != nil {
		return err
	}
	if app.JSON {
		return NewJSONResponse("apikey", map[string]bool{"api_key_set": true}).Write(app.Out)
	}
	fprintf(app.Out, "%s API key saved for this session.\n", RenderStatus("ok"))
	return nil
}

// readAPIKey prompts for the key without echo.
func readAPIKey(app *App) (string, error) {
	if err := RequiresTTY("read the API key"); err != nil {
		return "", err
	}
	fmt.Fprint(app.ErrOut, "Enter API key: ")
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(app.ErrOut)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(string(keyBytes)), nil
}
