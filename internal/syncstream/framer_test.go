// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func pushAll(t *testing.T, f *Framer, chunks ...string) []string {
	t.Helper()
	var out []string
	for _, c := range chunks {
		lines, err := f.Push([]byte(c))
		if err != nil {
			t.Fatalf("Push(%q): %v", c, err)
		}
		for _, l := range lines {
			out = append(out, string(l))
		}
	}
	return out
}

func TestFramer_SplitsAndHoldsFragment(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   string
	}{
		{"single chunk", []string{"a\nb\n"}, []string{"a", "b"}, ""},
		{"split mid line", []string{"ab", "c\nd", "e\n"}, []string{"abc", "de"}, ""},
		{"split at newline", []string{"abc", "\n", "def\n"}, []string{"abc", "def"}, ""},
		{"trailing fragment", []string{"x\ny"}, []string{"x"}, "y"},
		{"blank lines skipped", []string{"\n\n  \n\t\nz\n"}, []string{"z"}, ""},
		{"crlf", []string{"a\r\nb\r", "\n"}, []string{"a", "b"}, ""},
		{"no newline yet", []string{"{\"status\":", "\"info\""}, nil, "{\"status\":\"info\""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFramer(0)
			got := pushAll(t, f, tc.chunks...)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("lines = %q, want %q", got, tc.want)
			}
			if rest := string(f.Flush()); rest != tc.rest {
				t.Errorf("Flush() = %q, want %q", rest, tc.rest)
			}
			if f.Pending() != 0 {
				t.Errorf("Pending() after Flush = %d", f.Pending())
			}
		})
	}
}

func TestFramer_EveryByteBoundary(t *testing.T) {
	stream := "{\"status\":\"info\",\"message\":\"Scanning files...\"}\n" +
		"{\"status\":\"progress\",\"message\":\"Processing 1/2: a.pdf\",\"detail\":\"Downloading data\"}\n" +
		"\n" +
		"{\"status\":\"complete\",\"files\":[\"a.pdf\",\"b.pdf\"]}\n"
	want := pushAll(t, NewFramer(0), stream)

	for i := 0; i <= len(stream); i++ {
		got := pushAll(t, NewFramer(0), stream[:i], stream[i:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: lines = %q, want %q", i, got, want)
		}
	}

	// One byte at a time.
	f := NewFramer(0)
	var got []string
	for i := 0; i < len(stream); i++ {
		got = append(got, pushAll(t, f, stream[i:i+1])...)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bytewise lines = %q, want %q", got, want)
	}
}

func TestFramer_LinesAreCopies(t *testing.T) {
	f := NewFramer(0)
	chunk := []byte("first\nsec")
	lines, _ := f.Push(chunk)
	copy(chunk, "XXXXX")
	if string(lines[0]) != "first" {
		t.Errorf("line aliased caller buffer: %q", lines[0])
	}
	more, _ := f.Push([]byte("ond\n"))
	if string(more[0]) != "second" {
		t.Errorf("joined line = %q, want second", more[0])
	}
}

func TestFramer_LineCap(t *testing.T) {
	f := NewFramer(16)
	if _, err := f.Push([]byte(strings.Repeat("a", 16))); err != nil {
		t.Fatalf("at cap: %v", err)
	}
	lines, err := f.Push([]byte("b"))
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("over cap: err = %v, want ErrLineTooLong", err)
	}
	if len(lines) != 0 {
		t.Errorf("over cap returned lines %q", lines)
	}

	// Long content is fine once newline-terminated within the same push.
	f = NewFramer(16)
	lines, err = f.Push([]byte("short\n" + strings.Repeat("c", 10) + "\n"))
	if err != nil || len(lines) != 2 {
		t.Errorf("lines = %d, err = %v", len(lines), err)
	}
}
