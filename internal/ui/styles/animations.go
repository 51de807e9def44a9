// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"time"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// SpinnerConfig holds the frames of a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// Duration returns the duration of one frame.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// SyncSpinner runs while a sync streams.
var SyncSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// ChatSpinner runs while waiting for an answer.
var ChatSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// =============================================================================
// STEP BAR
// =============================================================================

// StepBar renders done of total steps as "[==>  ]" inside width columns.
// A bar narrower than three columns renders empty.
func StepBar(width, done, total int) string {
	if width < 3 || total <= 0 {
		return ""
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}

	inner := width - 2
	filled := inner * done / total

	var sb strings.Builder
	sb.Grow(width)
	sb.WriteByte('[')
	for i := 0; i < inner; i++ {
		switch {
		case i < filled-1, i == filled-1 && done == total:
			sb.WriteByte('=')
		case i == filled-1:
			sb.WriteByte('>')
		default:
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
