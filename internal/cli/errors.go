// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, exit codes and error display for CLI commands.
//
// Handlers always return errors; main decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/chat"
	"github.com/jeranaias/driveagent/internal/config"
	"github.com/jeranaias/driveagent/internal/syncstream"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid usage, including an empty selection
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the session is missing or expired
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitProtocolError indicates the backend answered with something unexpected
	ExitProtocolError = 6
	// ExitRejectedError indicates the backend refused the request
	ExitRejectedError = 7
	// ExitInterrupted indicates the user cancelled (Ctrl+C)
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "sync", "config"
	Action  string // e.g. "load", "record"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string // optional
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// ErrMissingArgument returns a usage error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{
		Field:   argName,
		Reason:  "required argument missing",
		Example: usage,
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to the process exit code. Backend errors are
// classified by their taxonomy type rather than their text.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch backend.TypeOf(err) {
	case backend.ErrTypeAuthExpired:
		return ExitAuthError
	case backend.ErrTypeTransport:
		return ExitNetworkError
	case backend.ErrTypeProtocol:
		return ExitProtocolError
	case backend.ErrTypeRequestRejected:
		return ExitRejectedError
	case backend.ErrTypeNoSelection:
		return ExitUsageError
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, backend.ErrEmptyAPIKey) {
		return ExitUsageError
	}

	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErrs) {
		return ExitConfigError
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Command == "config" {
		return ExitConfigError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// hintFor returns a follow-up suggestion for well-known failures.
func hintFor(err error) string {
	switch {
	case backend.IsAuthExpired(err):
		return "Run 'driveagent login' to sign in."
	case backend.IsTransport(err):
		return "Is the backend running? Check 'driveagent config get backend.url'."
	case backend.IsNoSelection(err):
		return "Pass item IDs, or use --folder F --all."
	case errors.Is(err, syncstream.ErrSyncInProgress):
		return "Wait for the running sync to finish."
	}
	return ""
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to stderr in a consistent format. In JSON mode
// a structured error document goes to stdout instead.
func DisplayError(err error, jsonMode bool) {
	displayError(os.Stdout, os.Stderr, err, jsonMode)
}

func displayError(stdout, stderr io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		displayErrorJSON(stdout, err)
		return
	}

	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(stderr, DimStyle.Render(hint))
	}
}

// DisplayErrorJSON writes err as a JSON document to stdout.
func DisplayErrorJSON(err error) {
	displayErrorJSON(os.Stdout, err)
}

func displayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var clientErr *backend.ClientError
	var validationErr *ValidationError
	var cmdErr *CommandError
	switch {
	case errors.As(err, &clientErr):
		output["error_type"] = clientErr.Type.String()
		if clientErr.StatusCode != 0 {
			output["status_code"] = clientErr.StatusCode
		}
	case errors.As(err, &validationErr):
		output["error_type"] = "validation_error"
		output["field"] = validationErr.Field
		output["value"] = validationErr.Value
		output["reason"] = validationErr.Reason
		if validationErr.Example != "" {
			output["example"] = validationErr.Example
		}
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
	default:
		output["error_type"] = "generic_error"
	}
	if hint := hintFor(err); hint != "" {
		output["hint"] = hint
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// HandleErrorAndExit displays err and exits with the matching exit code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}

	// Commands that already wrote a JSON envelope only set the exit code.
	if !IsReported(err) {
		DisplayError(err, jsonMode)
	}
	os.Exit(GetExitCode(err))
}
