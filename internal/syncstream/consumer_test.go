// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/session"
)

// =============================================================================
// FAKES
// =============================================================================

// scriptedSource replays fixed chunks, then returns end (io.EOF if nil).
type scriptedSource struct {
	chunks [][]byte
	end    error
	i      int
	closed int32
}

func newScripted(chunks ...string) *scriptedSource {
	s := &scriptedSource{}
	for _, c := range chunks {
		s.chunks = append(s.chunks, []byte(c))
	}
	return s
}

func (s *scriptedSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.end != nil {
		return nil, s.end
	}
	return nil, io.EOF
}

func (s *scriptedSource) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

func (s *scriptedSource) isClosed() bool { return atomic.LoadInt32(&s.closed) == 1 }

// chanSource delivers chunks as the test sends them.
type chanSource struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan []byte), done: make(chan struct{})}
}

func (s *chanSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("use of closed connection")
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type openerFunc func(ctx context.Context, items []drive.Snapshot) (ChunkSource, error)

func (f openerFunc) Open(ctx context.Context, items []drive.Snapshot) (ChunkSource, error) {
	return f(ctx, items)
}

func sourceOpener(src ChunkSource) openerFunc {
	return func(context.Context, []drive.Snapshot) (ChunkSource, error) { return src, nil }
}

// recorder collects observer callbacks.
type recorder struct {
	mu        sync.Mutex
	events    []Event
	completed []Status
	failed    []Status
}

func (r *recorder) observer() Observer {
	return Observer{
		OnEvent: func(ev Event, _ Status) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		},
		OnComplete: func(st Status) {
			r.mu.Lock()
			r.completed = append(r.completed, st)
			r.mu.Unlock()
		},
		OnError: func(st Status) {
			r.mu.Lock()
			r.failed = append(r.failed, st)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) statuses() []EventStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventStatus
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}

func (r *recorder) counts() (events, completed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.completed), len(r.failed)
}

func frame(status, message string, extra ...string) string {
	m := map[string]interface{}{"status": status, "message": message}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i]] = extra[i+1]
	}
	b, _ := json.Marshal(m)
	return string(b) + "\n"
}

func completeFrame(files ...string) string {
	if files == nil {
		files = []string{}
	}
	b, _ := json.Marshal(map[string]interface{}{"status": "complete", "message": "Sync complete!", "files": files})
	return string(b) + "\n"
}

var twoItems = []drive.Snapshot{
	{ID: "f1", Name: "Reports", MimeType: drive.FolderMimeType},
	{ID: "d1", Name: "plan.pdf", MimeType: "application/pdf"},
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForState(t *testing.T, c *Consumer, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return c.Status().State == want })
}

// =============================================================================
// EVENT SEQUENCES
// =============================================================================

func TestStart_CompleteWithFiles(t *testing.T) {
	rec := &recorder{}
	src := newScripted(
		frame("info", "Scanning files..."),
		frame("progress", "Processing 1/3: a", "detail", "Downloading data"),
		completeFrame("a", "b", "c"),
	)
	c := New(sourceOpener(src), WithObserver(rec.observer()))

	err := c.Start(context.Background(), twoItems)
	require.NoError(t, err)

	st := c.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.Equal(t, 3, st.FileCount)
	assert.Equal(t, []string{"a", "b", "c"}, st.Files)
	assert.Equal(t, StepComplete, st.Step)
	assert.NotEmpty(t, st.AttemptID)
	assert.False(t, st.FinishedAt.IsZero())

	events, completed, failed := rec.counts()
	assert.Equal(t, 3, events)
	assert.Equal(t, 1, completed, "completion callback must fire exactly once")
	assert.Equal(t, 0, failed)
	assert.True(t, src.isClosed(), "connection released on completion")
}

func TestStart_CompleteWithoutFilesUsesSelectionSize(t *testing.T) {
	c := New(sourceOpener(newScripted(frame("success", "Successfully processed: plan.pdf"))))
	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.Equal(t, 2, c.Status().FileCount)
	assert.Nil(t, c.Status().Files)
}

func TestStart_ErrorEventIsTerminal(t *testing.T) {
	rec := &recorder{}
	src := newScripted(
		frame("info", "Scanning files..."),
		frame("error", "bad token"),
		frame("info", "should be ignored"),
		completeFrame("x"),
	)
	c := New(sourceOpener(src), WithObserver(rec.observer()))

	err := c.Start(context.Background(), twoItems)
	require.ErrorIs(t, err, ErrSyncFailed)

	st := c.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "bad token", st.Reason)
	assert.Equal(t, StatusError, st.LastEvent.Status)
	assert.Equal(t, []EventStatus{StatusInfo, StatusError}, rec.statuses())

	_, completed, failed := rec.counts()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
	assert.True(t, src.isClosed())
}

func TestStart_ErrorEventReasonFromDetail(t *testing.T) {
	c := New(sourceOpener(newScripted(`{"status":"error","message":"","detail":"quota exceeded"}` + "\n")))
	c.Start(context.Background(), twoItems)
	assert.Equal(t, "quota exceeded", c.Status().Reason)
}

func TestStart_MalformedLinesSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rec := &recorder{}
	src := newScripted(
		frame("info", "A"),
		"not-json\n",
		"\n   \n",
		frame("progress", "B"),
		`{"status":"heartbeat"}`+"\n",
		completeFrame(),
	)
	c := New(sourceOpener(src), WithObserver(rec.observer()), WithLogger(zap.New(core)))

	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.Equal(t, []EventStatus{StatusInfo, StatusProgress, StatusComplete}, rec.statuses())
	assert.Equal(t, 1, c.Status().Malformed)
	assert.Equal(t, 0, c.Status().FileCount, "explicit empty file list counts as zero")
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed sync frame").Len())
}

func TestStart_ChunkBoundaryIndependence(t *testing.T) {
	stream := frame("info", "Scanning files...") +
		frame("progress", "Processing 1/2: résumé.pdf", "detail", "Sending file to File Search") +
		"garbage{\n" +
		completeFrame("résumé.pdf", "b.pdf")

	run := func(chunks []string) ([]EventStatus, Status) {
		rec := &recorder{}
		c := New(sourceOpener(newScripted(chunks...)), WithObserver(rec.observer()))
		if err := c.Start(context.Background(), twoItems); err != nil {
			t.Fatalf("Start: %v", err)
		}
		return rec.statuses(), c.Status()
	}

	wantEvents, wantStatus := run([]string{stream})
	require.Equal(t, StateSucceeded, wantStatus.State)

	for i := 1; i < len(stream); i++ {
		events, st := run([]string{stream[:i], stream[i:]})
		if !assert.Equal(t, wantEvents, events, "split at %d", i) {
			return
		}
		assert.Equal(t, wantStatus.FileCount, st.FileCount)
		assert.Equal(t, wantStatus.Files, st.Files)
	}

	var bytewise []string
	for i := 0; i < len(stream); i++ {
		bytewise = append(bytewise, stream[i:i+1])
	}
	events, st := run(bytewise)
	assert.Equal(t, wantEvents, events)
	assert.Equal(t, wantStatus.Malformed, st.Malformed)
}

func TestStart_FinalFrameWithoutNewline(t *testing.T) {
	c := New(sourceOpener(newScripted(frame("info", "x"), `{"status":"complete","files":["a"]}`)))
	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.Equal(t, 1, c.Status().FileCount)
}

func TestStart_CRLFFrames(t *testing.T) {
	c := New(sourceOpener(newScripted("{\"status\":\"info\",\"message\":\"x\"}\r\n{\"status\":\"complete\"}\r\n")))
	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.Equal(t, StateSucceeded, c.Status().State)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestStart_EmptySelection(t *testing.T) {
	var opened int32
	c := New(openerFunc(func(context.Context, []drive.Snapshot) (ChunkSource, error) {
		atomic.AddInt32(&opened, 1)
		return newScripted(), nil
	}))

	err := c.Start(context.Background(), nil)
	assert.True(t, backend.IsNoSelection(err), "got %v", err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&opened))
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestStart_EndOfStreamBeforeCompletion(t *testing.T) {
	c := New(sourceOpener(newScripted(frame("info", "Scanning files..."))))
	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsProtocol(err), "got %v", err)
	assert.Equal(t, StateFailed, c.Status().State)
}

func TestStart_ReadErrorIsTransport(t *testing.T) {
	src := newScripted(frame("info", "x"))
	src.end = backend.NewTransportError("read sync stream", io.ErrUnexpectedEOF)
	c := New(sourceOpener(src))

	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsTransport(err), "got %v", err)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Equal(t, StatusInfo, c.Status().LastEvent.Status)
}

func TestStart_OversizedLine(t *testing.T) {
	c := New(sourceOpener(newScripted(strings.Repeat("x", 64))), WithMaxLine(32))
	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsProtocol(err), "got %v", err)
}

func TestStart_OpenFailureNeverStreams(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &recorder{}
	c := New(openerFunc(func(context.Context, []drive.Snapshot) (ChunkSource, error) {
		return nil, backend.NewAuthExpired(http.StatusUnauthorized, "Not authenticated")
	}), WithObserver(rec.observer()), WithLogger(zap.New(core)))

	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsAuthExpired(err), "got %v", err)
	assert.Equal(t, StateFailed, c.Status().State)

	for _, entry := range logs.FilterMessage("sync transition").All() {
		assert.NotEqual(t, "Streaming", entry.ContextMap()["to"], "must not enter Streaming")
	}
	events, _, failed := rec.counts()
	assert.Equal(t, 0, events)
	assert.Equal(t, 1, failed)
}

func TestStart_IdleTimeout(t *testing.T) {
	src := newChanSource()
	c := New(sourceOpener(src), WithIdleTimeout(50*time.Millisecond))

	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsTransport(err), "got %v", err)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.False(t, c.Status().Abandoned)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStart_RejectsSecondStartAndCancelIsSilent(t *testing.T) {
	rec := &recorder{}
	src := newChanSource()
	c := New(sourceOpener(src), WithObserver(rec.observer()))

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), twoItems) }()
	waitForState(t, c, StateStreaming)

	src.ch <- []byte(frame("info", "Scanning files..."))
	waitFor(t, "first event", func() bool { return c.Status().Events == 1 })
	assert.True(t, c.Status().Running())
	assert.ErrorIs(t, c.Start(context.Background(), twoItems), ErrSyncInProgress)
	assert.ErrorIs(t, c.Reset(), ErrSyncInProgress)

	assert.True(t, c.Cancel())
	assert.False(t, c.Cancel(), "second Cancel is a no-op")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}

	st := c.Status()
	assert.Equal(t, StateStreaming, st.State, "abandonment keeps the last state")
	assert.True(t, st.Abandoned)
	assert.True(t, st.State.Active())
	assert.False(t, st.Running(), "an abandoned attempt is not running")
	events, completed, failed := rec.counts()
	assert.Equal(t, 1, events)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, failed)

	assert.ErrorIs(t, c.Start(context.Background(), twoItems), ErrNotReset)
	require.NoError(t, c.Reset())
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestStart_ContextCancel(t *testing.T) {
	rec := &recorder{}
	src := newChanSource()
	c := New(sourceOpener(src), WithObserver(rec.observer()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, twoItems) }()
	waitForState(t, c, StateStreaming)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, c.Status().Abandoned)
	_, completed, failed := rec.counts()
	assert.Equal(t, 0, completed+failed)
}

func TestStart_CancelWhileRequesting(t *testing.T) {
	opened := make(chan struct{})
	c := New(openerFunc(func(ctx context.Context, _ []drive.Snapshot) (ChunkSource, error) {
		close(opened)
		<-ctx.Done()
		return nil, backend.NewTransportError("POST /api/sync", ctx.Err())
	}))

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), twoItems) }()
	<-opened
	assert.Equal(t, StateRequesting, c.Status().State)
	c.Cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateRequesting, c.Status().State)
}

func TestStart_TerminalRequiresReset(t *testing.T) {
	var n int32
	c := New(openerFunc(func(context.Context, []drive.Snapshot) (ChunkSource, error) {
		atomic.AddInt32(&n, 1)
		return newScripted(completeFrame("a")), nil
	}))

	require.NoError(t, c.Start(context.Background(), twoItems))
	first := c.Status().AttemptID

	assert.ErrorIs(t, c.Start(context.Background(), twoItems), ErrNotReset)
	assert.False(t, c.Cancel(), "nothing to cancel after completion")

	require.NoError(t, c.Reset())
	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.NotEqual(t, first, c.Status().AttemptID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&n))
}

func TestStatus_ConcurrentReads(t *testing.T) {
	src := newChanSource()
	c := New(sourceOpener(src))

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), twoItems) }()
	waitForState(t, c, StateStreaming)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := c.Status()
				if st.State == StateSucceeded && st.FileCount != 2 {
					t.Errorf("observed Succeeded with FileCount %d", st.FileCount)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		src.ch <- []byte(frame("progress", "tick"))
	}
	src.ch <- []byte(completeFrame("a", "b"))
	require.NoError(t, <-done)
	close(stop)
	wg.Wait()
	assert.Equal(t, 21, c.Status().Events)
}

// =============================================================================
// HTTP
// =============================================================================

func TestHTTPOpener_StreamsFromBackend(t *testing.T) {
	var body struct {
		Items []drive.Snapshot `json:"items"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(backend.SessionHeader))
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		io.WriteString(w, frame("info", "Scanning files..."))
		flusher.Flush()
		// Split a frame across two writes.
		io.WriteString(w, `{"status":"progress","mess`)
		flusher.Flush()
		io.WriteString(w, `age":"Processing 1/2: plan.pdf","detail":"Downloading data"}`+"\n")
		flusher.Flush()
		io.WriteString(w, completeFrame("plan.pdf", "q1.xlsx"))
	}))
	defer server.Close()

	api := backend.NewClient(&backend.ClientConfig{BaseURL: server.URL}, session.NewMemoryProvider("tok"), nil)
	rec := &recorder{}
	c := New(NewHTTPOpener(api), WithObserver(rec.observer()))

	require.NoError(t, c.Start(context.Background(), twoItems))
	assert.Equal(t, twoItems, body.Items)
	assert.Equal(t, []EventStatus{StatusInfo, StatusProgress, StatusComplete}, rec.statuses())
	assert.Equal(t, 2, c.Status().FileCount)
}

func TestHTTPOpener_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Not authenticated"}`)
	}))
	defer server.Close()

	api := backend.NewClient(&backend.ClientConfig{BaseURL: server.URL}, session.NewMemoryProvider("tok"), nil)
	c := New(NewHTTPOpener(api))

	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsAuthExpired(err), "got %v", err)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Nil(t, c.Status().LastEvent)
}

func TestHTTPOpener_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Gemini API Key not set. Please provide it in settings."}`)
	}))
	defer server.Close()

	api := backend.NewClient(&backend.ClientConfig{BaseURL: server.URL}, session.NewMemoryProvider("tok"), nil)
	c := New(NewHTTPOpener(api))

	err := c.Start(context.Background(), twoItems)
	assert.True(t, backend.IsRequestRejected(err), "got %v", err)
	assert.Equal(t, "Gemini API Key not set. Please provide it in settings.", c.Status().Reason)
}
