// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the driveagent
browser.

# Color System (colors.go)

All colors are lipgloss AdaptiveColor values, so one palette serves light
and dark terminals:

  - Purple - Brand, breadcrumbs, assistant turns
  - Cyan - Folders, the cursor row, user turns
  - Emerald - Selected items and successful syncs
  - Amber - Warnings and the running sync
  - Rose - Errors

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	row := theme.Row.Render(name)

The mode is "dark", "light" or "auto". Auto asks the terminal. The mode can
be swapped at runtime with SetMode when the config file changes.

# Animation System (animations.go)

SyncSpinner and ChatSpinner are frame sets for bubbles/spinner. StepBar
draws the five sync steps as a compact ASCII bar.
*/
package styles
