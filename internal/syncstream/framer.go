// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"bytes"
	"errors"
)

// DefaultMaxLine caps a single frame.
const DefaultMaxLine = 1 << 20

// ErrLineTooLong is returned when a frame grows past the line cap without
// a newline.
var ErrLineTooLong = errors.New("stream frame exceeds maximum line length")

// Framer splits a chunked byte stream into newline-terminated lines. The
// fragment after the last newline is held until a later chunk completes it,
// so output does not depend on where chunk boundaries fall.
type Framer struct {
	buf     []byte
	maxLine int
}

// NewFramer returns a framer with the given line cap; <= 0 uses DefaultMaxLine.
func NewFramer(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &Framer{maxLine: maxLine}
}

// Push appends chunk and returns every complete, non-blank line it closes,
// without the newline or a trailing carriage return. The returned slices
// are copies and stay valid after later pushes.
func (f *Framer) Push(chunk []byte) ([][]byte, error) {
	f.buf = append(f.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		if line := trimLine(f.buf[:i]); line != nil {
			lines = append(lines, line)
		}
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) > f.maxLine {
		return lines, ErrLineTooLong
	}
	// Drop consumed prefix so the backing array does not grow forever.
	if cap(f.buf) > 4*f.maxLine || (len(f.buf) == 0 && cap(f.buf) > 64*1024) {
		f.buf = append([]byte(nil), f.buf...)
	}
	return lines, nil
}

// Flush returns the held fragment as a final line, or nil if it is blank.
// The framer is empty afterwards.
func (f *Framer) Flush() []byte {
	line := trimLine(f.buf)
	f.buf = nil
	return line
}

// Pending returns the number of buffered bytes not yet forming a line.
func (f *Framer) Pending() int {
	return len(f.buf)
}

func trimLine(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\r"))
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
