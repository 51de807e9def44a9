// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/session"
)

func newDriveClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := backend.NewClient(&backend.ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second},
		session.NewMemoryProvider("tok-123"), nil)
	return NewClient(api, nil)
}

func TestListChildren(t *testing.T) {
	var gotFolder, gotSession string
	c := newDriveClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFolder = r.URL.Query().Get("folder_id")
		gotSession = r.Header.Get(backend.SessionHeader)
		io.WriteString(w, `{"files": [
			{"id": "f1", "name": "Reports", "mimeType": "application/vnd.google-apps.folder"},
			{"id": "d1", "name": "plan.pdf", "mimeType": "application/pdf"}
		]}`)
	})

	entries, err := c.ListChildren(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "root", gotFolder)
	assert.Equal(t, "tok-123", gotSession)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: "f1", Name: "Reports", MimeType: FolderMimeType, Kind: KindFolder}, entries[0])
	assert.Equal(t, KindFile, entries[1].Kind)
}

func TestListChildren_EmptyFolder(t *testing.T) {
	c := newDriveClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"files": []}`)
	})
	entries, err := c.ListChildren(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListChildren_Errors(t *testing.T) {
	tests := []struct {
		name  string
		h     http.HandlerFunc
		check func(error) bool
	}{
		{"401", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Not authenticated"}`)
		}, backend.IsAuthExpired},
		{"500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail":"File not found: xyz"}`)
		}, backend.IsRequestRejected},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html>`)
		}, backend.IsProtocol},
		{"missing files", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"items": []}`)
		}, backend.IsProtocol},
		{"entry without id", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"files": [{"name": "ghost"}]}`)
		}, backend.IsProtocol},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newDriveClient(t, tc.h)
			entries, err := c.ListChildren(context.Background(), "x")
			assert.Nil(t, entries)
			assert.True(t, tc.check(err), "unexpected error %v", err)
		})
	}
}

func TestListMany(t *testing.T) {
	c := newDriveClient(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("folder_id")
		fmt.Fprintf(w, `{"files": [{"id": "%s-child", "name": "child of %s", "mimeType": "text/plain"}]}`, id, id)
	})

	got, err := c.ListMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.Len(t, got[id], 1)
		assert.Equal(t, id+"-child", got[id][0].ID)
	}
}

func TestListMany_FirstErrorWins(t *testing.T) {
	c := newDriveClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("folder_id") == "bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, `{"files": []}`)
	})

	got, err := c.ListMany(context.Background(), []string{"ok1", "bad", "ok2"})
	assert.Nil(t, got)
	assert.True(t, backend.IsAuthExpired(err), "got %v", err)
}

func TestMarshalEntries(t *testing.T) {
	data, err := MarshalEntries(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = MarshalEntries([]Entry{folderEntry("f", "F")})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"kind": "folder"`), string(data))
}
