// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

import "encoding/json"

// FolderMimeType marks an entry as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// Kind distinguishes files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// MarshalJSON renders the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// KindOf derives the kind from a mime type.
func KindOf(mimeType string) Kind {
	if mimeType == FolderMimeType {
		return KindFolder
	}
	return KindFile
}

// Entry is one item in a remote folder.
type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Kind     Kind   `json:"kind"`
}

// IsFolder reports whether the entry can be descended into.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Snapshot returns the selection payload for the entry.
func (e Entry) Snapshot() Snapshot {
	return Snapshot{ID: e.ID, Name: e.Name, MimeType: e.MimeType}
}

// Snapshot is the subset of an entry sent to the backend when syncing.
type Snapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// IsFolder reports whether the snapshot refers to a folder.
func (s Snapshot) IsFolder() bool {
	return s.MimeType == FolderMimeType
}

// Breadcrumb is one level of the navigation path.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Root is the bottom of every navigation stack.
var Root = Breadcrumb{ID: "root", Name: "My Drive"}
