// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveagent/internal/storage"
)

func sampleTranscript() *storage.Transcript {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return &storage.Transcript{
		ID:        "t-1",
		Title:     "What changed in Q3?",
		CreatedAt: at,
		UpdatedAt: at.Add(2 * time.Minute),
		Files:     []string{"report_q3.pdf", "notes"},
		Messages: []storage.Message{
			{Role: "user", Content: "What changed in Q3?", Timestamp: at},
			{Role: "assistant", Content: "**Revenue** grew.", Timestamp: at.Add(time.Minute)},
			{Role: "user", Content: "And costs?", Timestamp: at.Add(90 * time.Second)},
			{Role: "error", Content: "backend unreachable\ntry again", Timestamp: at.Add(2 * time.Minute)},
		},
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	for _, want := range []string{
		"title: What changed in Q3?",
		"id: t-1",
		"messages: 4",
		"# What changed in Q3?",
		"## Files",
		"- report\\_q3.pdf",
		"### You <sub>09:30:00</sub>",
		"### Agent",
		"**Revenue** grew.",
		"### Error",
		"> backend unreachable\n> try again",
	} {
		assert.Contains(t, md, want)
	}

	// Turns keep their order.
	assert.Less(t, strings.Index(md, "What changed in Q3?\n\n---"), strings.Index(md, "And costs?"))
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	exp := NewMarkdownExporter(&Options{})
	out, err := exp.Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.False(t, strings.HasPrefix(md, "---"), "frontmatter should be omitted")
	assert.NotContains(t, md, "## Files")
	assert.NotContains(t, md, "<sub>")
	assert.NotContains(t, md, "Exported from")
}

func TestExportRejectsUnusableTranscripts(t *testing.T) {
	tests := []struct {
		name string
		exp  Exporter
		in   *storage.Transcript
		want error
	}{
		{"markdown nil", NewMarkdownExporter(nil), nil, ErrNilTranscript},
		{"markdown empty", NewMarkdownExporter(nil), &storage.Transcript{ID: "x"}, ErrEmptyTranscript},
		{"json nil", NewJSONExporter(nil), nil, ErrNilTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.exp.Export(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Export() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	in := sampleTranscript()
	out, err := NewJSONExporter(nil).Export(in)
	require.NoError(t, err)

	var got storage.Transcript
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Files, got.Files)
	require.Len(t, got.Messages, len(in.Messages))
	assert.Equal(t, "error", got.Messages[3].Role)
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
		ok     bool
	}{
		{"", ".md", true},
		{"md", ".md", true},
		{"Markdown", ".md", true},
		{"json", ".json", true},
		{"html", "", false},
	}
	for _, tt := range tests {
		exp, err := ForFormat(tt.format, nil)
		if !tt.ok {
			if err == nil {
				t.Errorf("ForFormat(%q) succeeded, want error", tt.format)
			}
			continue
		}
		require.NoError(t, err)
		if exp.FileExtension() != tt.ext {
			t.Errorf("ForFormat(%q).FileExtension() = %q, want %q", tt.format, exp.FileExtension(), tt.ext)
		}
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := &Options{OutputDir: dir, IncludeMetadata: true}

	path, err := ExportToFile(sampleTranscript(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "chat_What_changed_in_Q3-_"), base)
	assert.True(t, strings.HasSuffix(base, ".md"), base)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Conversation")
}

func TestExportToFileFailsOnEmptyTranscript(t *testing.T) {
	opts := &Options{OutputDir: t.TempDir()}
	_, err := ExportToFile(&storage.Transcript{ID: "x"}, NewMarkdownExporter(opts), opts)
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	entries, _ := os.ReadDir(opts.OutputDir)
	assert.Empty(t, entries)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a/b\\c:d", "a-b-c-d"},
		{"two words\tand\nlines", "two_words_and_lines"},
		{"bell\x07", "bell-"},
		{"   ", "chat"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"simple", "simple"},
		{"a: b", `"a: b"`},
		{"line\nbreak", `"line\nbreak"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
