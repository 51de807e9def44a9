// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package browser

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driveagent/internal/syncstream"
)

// syncFeed carries sync messages from the consumer goroutine to Update.
// Progress is published without blocking: when the channel is full the
// event is not queued, but the latest status slot still records it, so
// the next message Update receives shows the newest progress.
type syncFeed struct {
	events chan tea.Msg

	mu      sync.Mutex
	latest  syncstream.Status
	seq     uint64 // publishes since Reset
	dropped int
}

func newSyncFeed(size int) *syncFeed {
	return &syncFeed{events: make(chan tea.Msg, size)}
}

// Publish records msg as the latest status and queues it if there is room.
func (f *syncFeed) Publish(msg syncEventMsg) {
	f.mu.Lock()
	f.latest = msg.Status
	f.seq++
	f.mu.Unlock()

	select {
	case f.events <- msg:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
	}
}

// Latest returns the newest published status, or fallback when nothing
// was published since the last Reset.
func (f *syncFeed) Latest(fallback syncstream.Status) syncstream.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq == 0 {
		return fallback
	}
	return f.latest
}

// Dropped reports how many events were not queued since the last Reset.
func (f *syncFeed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Reset forgets the previous attempt. Call it only when no attempt is
// publishing.
func (f *syncFeed) Reset() {
	f.mu.Lock()
	f.latest = syncstream.Status{}
	f.seq = 0
	f.dropped = 0
	f.mu.Unlock()
}
