// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/drive"
)

const (
	syncPath         = "/api/sync"
	defaultChunkSize = 32 * 1024
)

// ChunkSource yields the response body a chunk at a time. Next returns
// io.EOF once the stream ends. Close releases the connection and may be
// called more than once.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener starts a sync request. It returns a ChunkSource once a 2xx
// response has arrived, or a backend taxonomy error otherwise.
type Opener interface {
	Open(ctx context.Context, items []drive.Snapshot) (ChunkSource, error)
}

// StreamPoster opens a streaming POST. *backend.Client implements it.
type StreamPoster interface {
	OpenStream(ctx context.Context, path string, body interface{}) (*http.Response, error)
}

// HTTPOpener opens syncs against the backend.
type HTTPOpener struct {
	api       StreamPoster
	chunkSize int
}

// NewHTTPOpener returns an Opener for POST /api/sync.
func NewHTTPOpener(api StreamPoster) *HTTPOpener {
	return &HTTPOpener{api: api, chunkSize: defaultChunkSize}
}

type syncRequest struct {
	Items []drive.Snapshot `json:"items"`
}

// Open implements Opener.
func (o *HTTPOpener) Open(ctx context.Context, items []drive.Snapshot) (ChunkSource, error) {
	resp, err := o.api.OpenStream(ctx, syncPath, syncRequest{Items: items})
	if err != nil {
		return nil, err
	}
	return &bodySource{body: resp.Body, buf: make([]byte, o.chunkSize)}, nil
}

// bodySource reads an HTTP body in chunks.
// The returned chunk is only valid until the next call.
type bodySource struct {
	body      io.ReadCloser
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

func (s *bodySource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := s.body.Read(s.buf)
	if n > 0 {
		// Data first; a trailing error surfaces on the next call.
		return s.buf[:n], nil
	}
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, backend.NewTransportError("read sync stream", err)
}

// Close may race with a blocked Next; closing the body unblocks it.
func (s *bodySource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
