// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldName normalizes a name for comparison: NFC, then Unicode case folding.
// Casers carry state, so each call gets its own.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Filter returns the entries whose name contains query, ignoring case and
// Unicode composition differences. An empty query returns entries unchanged.
func Filter(entries []Entry, query string) []Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return entries
	}
	q := foldName(query)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(foldName(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortFoldersFirst orders entries with folders before files, keeping the
// backend order within each group.
func SortFoldersFirst(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsFolder() {
			out = append(out, e)
		}
	}
	for _, e := range entries {
		if !e.IsFolder() {
			out = append(out, e)
		}
	}
	return out
}
