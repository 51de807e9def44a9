// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/logging"
)

const listPath = "/api/drive/list"

// maxConcurrentLists bounds ListMany fan-out.
const maxConcurrentLists = 4

// Getter performs an authenticated JSON GET. *backend.Client implements it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error
}

// Client lists remote folders.
type Client struct {
	api    Getter
	logger *zap.Logger
}

// NewClient creates a tree client on top of the backend.
func NewClient(api Getter, logger *zap.Logger) *Client {
	return &Client{api: api, logger: logging.OrNop(logger).Named("drive")}
}

type listResponse struct {
	Files *[]struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	} `json:"files"`
}

// ListChildren returns the direct children of folderID in backend order.
// An empty folderID lists the root. Errors follow the backend taxonomy and
// are never retried here.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]Entry, error) {
	if folderID == "" {
		folderID = Root.ID
	}

	var resp listResponse
	err := c.api.GetJSON(ctx, listPath, url.Values{"folder_id": {folderID}}, &resp)
	if err != nil {
		c.logger.Debug("list failed", zap.String("folder", folderID), zap.Error(err))
		return nil, err
	}
	if resp.Files == nil {
		return nil, backend.NewProtocolError(fmt.Sprintf("list of %s has no files field", folderID), nil)
	}

	entries := make([]Entry, 0, len(*resp.Files))
	for _, f := range *resp.Files {
		if f.ID == "" {
			return nil, backend.NewProtocolError(fmt.Sprintf("entry %q in %s has no id", f.Name, folderID), nil)
		}
		entries = append(entries, Entry{
			ID:       f.ID,
			Name:     f.Name,
			MimeType: f.MimeType,
			Kind:     KindOf(f.MimeType),
		})
	}
	c.logger.Debug("listed", zap.String("folder", folderID), zap.Int("count", len(entries)))
	return entries, nil
}

// ListMany lists several folders concurrently. Results are keyed by folder
// ID. The first failure cancels the remaining requests and is returned.
func (c *Client) ListMany(ctx context.Context, folderIDs []string) (map[string][]Entry, error) {
	results := make(map[string][]Entry, len(folderIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLists)
	for _, id := range folderIDs {
		id := id
		g.Go(func() error {
			entries, err := c.ListChildren(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			results[id] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MarshalEntries renders entries as indented JSON for --json output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}
