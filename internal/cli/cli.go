// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for driveagent.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdAPIKey
	CmdLs
	CmdSync
	CmdChat
	CmdAsk
	CmdHistory
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[string]Command{
	"tui":     CmdTUI,
	"browse":  CmdTUI,
	"login":   CmdLogin,
	"logout":  CmdLogout,
	"status":  CmdStatus,
	"whoami":  CmdStatus,
	"apikey":  CmdAPIKey,
	"api-key": CmdAPIKey,
	"ls":      CmdLs,
	"list":    CmdLs,
	"sync":    CmdSync,
	"chat":    CmdChat,
	"ask":     CmdAsk,
	"history": CmdHistory,
	"export":  CmdExport,
	"config":  CmdConfig,
	"version": CmdVersion,
	"help":    CmdHelp,
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	URL     string // overrides backend.url for this run

	// Name is the command word as typed; Raw holds everything after it,
	// with global flags removed.
	Name string
	Raw  []string
}

const usageText = `driveagent - terminal client for the Drive agent

Browse your Drive, pick files and folders, sync them into the agent and
chat about their contents.

Usage:
  driveagent [flags] [command] [args]

Commands:
  (none), tui            Interactive browser
  login [--open]         Print (or open) the Google sign-in URL
  logout                 Sign out and forget the local session
  status                 Show backend and sign-in status
  apikey [KEY]           Set the assistant API key (prompts when omitted)
  ls [FOLDER...]         List folder contents (default: My Drive)
      --filter Q           Only names containing Q
  sync ID...             Sync files or folders by ID, with live progress
      --folder F --all     Sync every item in folder F
  chat                   Interactive chat about synced files
  ask QUESTION           One-shot question
  history                Recent sync attempts
      --limit N            Number of rows (default 20)
      --clear --confirm    Delete the journal
  export [ID]            List saved chats, or export one
      --format md|json     Output format (default md)
      --out DIR --open     Where to write it; open when done
  config show|get|set|path
  version                Show version information
  help                   Show this help

Global flags:
  --url URL              Backend URL for this run
  --json                 Machine-readable output
  -v, --verbose          Debug logging to stderr
  -q, --quiet            Minimal output

Environment:
  DRIVEAGENT_HOME        Config directory (default ~/.driveagent)
  DRIVEAGENT_URL         Backend URL
  NO_COLOR               Disable colors

Version: %s
`

// PrintUsage writes the usage/help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "driveagent version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its
// arguments. No arguments selects the interactive browser.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	name := strings.ToLower(remaining[0])
	parsed.Name = name
	parsed.Raw = remaining[1:]

	switch name {
	case "-h", "--help":
		return CmdHelp, parsed
	case "-V", "--version":
		return CmdVersion, parsed
	}
	if cmd, ok := commandNames[name]; ok {
		return cmd, parsed
	}
	return CmdUnknown, parsed
}

// parseGlobalFlags extracts global flags from anywhere in args and returns
// what is left. Arguments after "--" are passed through untouched.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			remaining = append(remaining, args[i:]...)
			return remaining, parsed
		case arg == "-q" || arg == "--quiet":
			parsed.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--json":
			parsed.JSON = true
		case arg == "--url":
			if i+1 < len(args) {
				i++
				parsed.URL = args[i]
			}
		case strings.HasPrefix(arg, "--url="):
			parsed.URL = strings.TrimPrefix(arg, "--url=")
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsed
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// VersionData is the JSON payload of "version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion(os.Stdout)
	return nil
}

// HandleHelp handles the "help" command.
func HandleHelp(Args) error {
	PrintUsage(os.Stdout)
	return nil
}

// HandleUnknown reports an unrecognised command.
func HandleUnknown(args Args) error {
	return &ValidationError{
		Field:   "command",
		Value:   args.Name,
		Reason:  "unknown command",
		Example: "driveagent help",
	}
}
