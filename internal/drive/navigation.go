// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFolder is returned when descending into a file.
	ErrNotFolder = errors.New("not a folder")

	// ErrIndexOutOfRange is returned by JumpTo for a crumb that does not exist.
	ErrIndexOutOfRange = errors.New("breadcrumb index out of range")
)

// Navigator is the breadcrumb stack plus the selection made in the current
// folder. The stack always holds at least Root.
type Navigator struct {
	crumbs    []Breadcrumb
	selection *Selection
}

// NewNavigator starts at the root with nothing selected.
func NewNavigator() *Navigator {
	return &Navigator{
		crumbs:    []Breadcrumb{Root},
		selection: NewSelection(),
	}
}

// Selection returns the selection for the current folder.
func (n *Navigator) Selection() *Selection {
	return n.selection
}

// Descend enters folder and clears the selection.
func (n *Navigator) Descend(folder Entry) error {
	if !folder.IsFolder() {
		return fmt.Errorf("descend into %q: %w", folder.Name, ErrNotFolder)
	}
	n.crumbs = append(n.crumbs, Breadcrumb{ID: folder.ID, Name: folder.Name})
	n.selection.Clear()
	return nil
}

// JumpTo truncates the stack so crumb i is current, and clears the
// selection. Jumping to the current crumb is allowed and still clears.
func (n *Navigator) JumpTo(i int) error {
	if i < 0 || i >= len(n.crumbs) {
		return fmt.Errorf("jump to %d of %d: %w", i, len(n.crumbs), ErrIndexOutOfRange)
	}
	n.crumbs = n.crumbs[:i+1]
	n.selection.Clear()
	return nil
}

// Up moves to the parent folder. At the root it does nothing and reports false.
func (n *Navigator) Up() bool {
	if len(n.crumbs) == 1 {
		return false
	}
	_ = n.JumpTo(len(n.crumbs) - 2)
	return true
}

// Current returns the folder being viewed.
func (n *Navigator) Current() Breadcrumb {
	return n.crumbs[len(n.crumbs)-1]
}

// Depth returns the number of crumbs, root included.
func (n *Navigator) Depth() int {
	return len(n.crumbs)
}

// Breadcrumbs returns a copy of the stack, root first.
func (n *Navigator) Breadcrumbs() []Breadcrumb {
	out := make([]Breadcrumb, len(n.crumbs))
	copy(out, n.crumbs)
	return out
}

// Path renders the stack as "My Drive / a / b".
func (n *Navigator) Path() string {
	names := make([]string, len(n.crumbs))
	for i, c := range n.crumbs {
		names[i] = c.Name
	}
	return strings.Join(names, " / ")
}
