// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

// Selection is the set of entries picked for syncing, in the order they
// were picked. IDs are unique. Not safe for concurrent use; the UI owns it.
type Selection struct {
	order []string
	items map[string]Snapshot
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{items: make(map[string]Snapshot)}
}

// Toggle adds the entry if absent and removes it if present. It reports
// whether the entry is selected afterwards.
func (s *Selection) Toggle(e Entry) bool {
	if s.Has(e.ID) {
		s.Remove(e.ID)
		return false
	}
	s.ensure()
	s.items[e.ID] = e.Snapshot()
	s.order = append(s.order, e.ID)
	return true
}

// Remove drops id from the selection. Unknown IDs are ignored.
func (s *Selection) Remove(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.order = nil
	s.items = make(map[string]Snapshot)
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of selected entries.
func (s *Selection) Len() int {
	return len(s.order)
}

// Items returns a copy of the selection in insertion order.
func (s *Selection) Items() []Snapshot {
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Selection) ensure() {
	if s.items == nil {
		s.items = make(map[string]Snapshot)
	}
}
