// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// RequireConfirmation decides whether a destructive action may proceed.
//
//   - --confirm given: proceed without prompting
//   - JSON mode: --confirm is required, since there is no one to ask
//   - stdin not a terminal: --confirm is required
//   - otherwise: ask "Are you sure you want to <action>? [y/N]"
func (a *App) RequireConfirmation(confirmFlag bool, action string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if a.JSON {
		return false, fmt.Errorf("confirmation required: use --confirm flag for destructive actions in JSON mode")
	}
	if a.In == os.Stdin && !IsTTY() {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --confirm flag")
	}
	return confirmFrom(a.Out, a.In, action)
}

// confirmFrom asks the question on w and reads the answer from r.
func confirmFrom(w io.Writer, r io.Reader, action string) (bool, error) {
	input, err := promptInput(w, r, fmt.Sprintf("Are you sure you want to %s? [y/N]: ", action))
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response := strings.ToLower(input)
	return response == "y" || response == "yes", nil
}
