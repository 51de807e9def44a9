// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import "strings"

// Step is a coarse progress stage guessed from event text. The guess is
// for display only; nothing in the protocol guarantees the wording.
type Step int

const (
	StepUnknown Step = iota
	StepDownloading
	StepSending
	StepIndexing
	StepContext
	StepComplete
)

// Steps lists the known stages in order.
var Steps = []Step{StepDownloading, StepSending, StepIndexing, StepContext, StepComplete}

func (s Step) String() string {
	switch s {
	case StepDownloading:
		return "Downloading"
	case StepSending:
		return "Sending"
	case StepIndexing:
		return "Indexing"
	case StepContext:
		return "Providing context"
	case StepComplete:
		return "Complete"
	default:
		return "processing"
	}
}

// Index is the 1-based position among Steps, or 0 for StepUnknown.
func (s Step) Index() int {
	if s < StepDownloading || s > StepComplete {
		return 0
	}
	return int(s)
}

var stepPatterns = []struct {
	substr string
	step   Step
}{
	{"complete", StepComplete},
	{"providing context", StepContext},
	{"indexing", StepIndexing},
	{"sending", StepSending},
	{"uploading", StepSending},
	{"downloading", StepDownloading},
}

// Classify maps event text to a step. detail is checked before message
// since the backend puts the stage there. Unmatched text is StepUnknown.
func Classify(message, detail string) Step {
	for _, text := range []string{detail, message} {
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		for _, p := range stepPatterns {
			if strings.Contains(lower, p.substr) {
				return p.step
			}
		}
	}
	return StepUnknown
}

// ClassifyEvent classifies ev, treating terminal success as StepComplete.
func ClassifyEvent(ev Event) Step {
	if ev.Status == StatusComplete {
		return StepComplete
	}
	return Classify(ev.Message, ev.Detail)
}
