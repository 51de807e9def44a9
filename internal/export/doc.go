// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved chat transcripts to shareable files.
//
// # Key Types
//
//   - Exporter: renders a transcript in one format
//   - Options: output directory, metadata and open-after-export settings
//
// # Supported Formats
//
//   - Markdown: frontmatter, the synced files and every turn
//   - JSON: the stored transcript as-is
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(transcript, exp, nil)
package export
