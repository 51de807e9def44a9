// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/driveagent/internal/backend"
	"github.com/jeranaias/driveagent/internal/drive"
	"github.com/jeranaias/driveagent/internal/logging"
	"github.com/jeranaias/driveagent/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSyncInProgress rejects a Start while an attempt is Requesting or
	// Streaming.
	ErrSyncInProgress = errors.New("a sync is already in progress")

	// ErrNotReset rejects a Start on a finished or abandoned attempt.
	ErrNotReset = errors.New("previous sync has finished; reset before starting another")

	// ErrSyncFailed wraps the reason carried by an error event.
	ErrSyncFailed = errors.New("sync failed")
)

// =============================================================================
// STATUS
// =============================================================================

// Status is a consistent snapshot of the current attempt. Slices and the
// event pointer are shared and must not be modified.
//
// Cancel does not move State: an abandoned attempt still reads Requesting
// or Streaming with Abandoned set. Use Running, not State.Active, to ask
// whether an attempt is still in progress.
type Status struct {
	AttemptID string
	State     State

	// LastEvent is the most recent info/progress/terminal event, nil before
	// the first one.
	LastEvent *Event
	Step      Step
	Events    int
	Malformed int

	// FileCount and Files are set on success.
	FileCount int
	Files     []string

	// Reason and Err are set on failure.
	Reason string
	Err    error

	// Abandoned is set once the attempt was cancelled. State keeps
	// whatever value it had, so State.Active alone still reports true.
	Abandoned bool

	Items      []drive.Snapshot
	StartedAt  time.Time
	FinishedAt time.Time
}

// Running reports whether the attempt is in progress: active and not
// abandoned.
func (s Status) Running() bool {
	return s.State.Active() && !s.Abandoned
}

// Elapsed returns how long the attempt ran, or has run so far.
func (s Status) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Observer receives notifications from the consumer. Callbacks run on the
// goroutine that called Start, outside the consumer lock, in event order.
// Any of them may be nil.
type Observer struct {
	// OnEvent is called for every applied event, terminal ones included.
	OnEvent func(ev Event, st Status)

	// OnComplete is called exactly once when the attempt succeeds.
	OnComplete func(st Status)

	// OnError is called once when the attempt fails.
	OnError func(st Status)
}

// =============================================================================
// CONSUMER
// =============================================================================

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) { c.logger = logging.OrNop(l).Named("syncstream") }
}

// WithObserver sets the callbacks.
func WithObserver(o Observer) Option {
	return func(c *Consumer) { c.observer = o }
}

// WithMaxLine sets the frame size cap.
func WithMaxLine(n int) Option {
	return func(c *Consumer) { c.maxLine = n }
}

// WithIdleTimeout fails an attempt that receives no bytes for d. Zero
// disables the check.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Consumer) { c.idleTimeout = d }
}

// Consumer runs sync attempts one at a time. All methods are safe for
// concurrent use.
type Consumer struct {
	opener      Opener
	logger      *zap.Logger
	observer    Observer
	maxLine     int
	idleTimeout time.Duration

	mu        sync.Mutex
	status    Status
	gen       uint64 // bumped per attempt and on Reset; stale attempts stop writing
	cancel    context.CancelFunc
	source    ChunkSource
	cancelled bool
	idleFired bool
}

// New creates a consumer in the Idle state.
func New(opener Opener, opts ...Option) *Consumer {
	c := &Consumer{
		opener:  opener,
		logger:  logging.Nop(),
		maxLine: DefaultMaxLine,
		status:  Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns a snapshot of the current attempt.
func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start runs one sync of items and blocks until it succeeds, fails, or is
// cancelled. It returns nil on success, the failure error (a backend
// taxonomy error or one wrapping ErrSyncFailed) on failure, and
// context.Canceled when abandoned.
//
// An empty items list returns backend.ErrNoSelection without contacting
// the backend or changing state.
func (c *Consumer) Start(ctx context.Context, items []drive.Snapshot) error {
	if len(items) == 0 {
		return backend.ErrNoSelection
	}

	c.mu.Lock()
	switch {
	case c.cancelled && c.status.State != StateIdle:
		c.mu.Unlock()
		return ErrNotReset
	case c.status.State.Active():
		c.mu.Unlock()
		return ErrSyncInProgress
	case c.status.State.Terminal():
		c.mu.Unlock()
		return ErrNotReset
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.source = nil
	c.cancelled = false
	c.idleFired = false

	snapshot := make([]drive.Snapshot, len(items))
	copy(snapshot, items)
	c.status = Status{
		AttemptID: uuid.New().String(),
		State:     StateIdle,
		Items:     snapshot,
		StartedAt: time.Now(),
	}
	c.transitionLocked(StateRequesting)
	attemptID := c.status.AttemptID
	c.mu.Unlock()
	defer cancel()

	logger := c.logger.With(zap.String("attempt", attemptID))
	logger.Info("sync started", zap.Int("items", len(items)))

	var idle *time.Timer
	if c.idleTimeout > 0 {
		idle = time.AfterFunc(c.idleTimeout, func() {
			c.mu.Lock()
			if c.gen == gen {
				c.idleFired = true
			}
			c.mu.Unlock()
			cancel()
		})
		defer idle.Stop()
	}

	src, err := c.opener.Open(attemptCtx, items)
	if err != nil {
		if attemptCtx.Err() != nil {
			return c.interrupted(ctx, gen, logger)
		}
		return c.fail(gen, err, logger)
	}
	defer src.Close()

	c.mu.Lock()
	if c.gen != gen || c.cancelled {
		c.mu.Unlock()
		return context.Canceled
	}
	c.source = src
	c.transitionLocked(StateStreaming)
	c.mu.Unlock()

	return c.consume(ctx, attemptCtx, gen, src, idle, logger)
}

// Cancel abandons the active attempt: the connection is closed, no
// further transitions or callbacks happen, and Start returns
// context.Canceled. It reports whether an attempt was active.
func (c *Consumer) Cancel() bool {
	c.mu.Lock()
	if !c.status.State.Active() || c.cancelled {
		c.mu.Unlock()
		return false
	}
	c.cancelled = true
	c.status.Abandoned = true
	cancel, src := c.cancel, c.source
	c.mu.Unlock()

	c.logger.Debug("sync cancelled")
	if cancel != nil {
		cancel()
	}
	if src != nil {
		src.Close()
	}
	return true
}

// Reset returns a finished or abandoned consumer to Idle. It fails with
// ErrSyncInProgress while an attempt is running.
func (c *Consumer) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State.Active() && !c.cancelled {
		return ErrSyncInProgress
	}
	c.gen++
	c.cancelled = false
	c.cancel = nil
	c.source = nil
	c.status = Status{State: StateIdle}
	return nil
}

// =============================================================================
// STREAM PROCESSING
// =============================================================================

func (c *Consumer) consume(parent, ctx context.Context, gen uint64, src ChunkSource, idle *time.Timer, logger *zap.Logger) error {
	framer := NewFramer(c.maxLine)

	for {
		if ctx.Err() != nil {
			return c.interrupted(parent, gen, logger)
		}

		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			if idle != nil {
				idle.Reset(c.idleTimeout)
			}
			lines, ferr := framer.Push(chunk)
			for _, line := range lines {
				if done, result := c.handleLine(gen, line, logger); done {
					return result
				}
			}
			if ferr != nil {
				return c.fail(gen, backend.NewProtocolError(
					fmt.Sprintf("no newline within %d bytes", c.maxLine), ferr), logger)
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			if line := framer.Flush(); line != nil {
				if done, result := c.handleLine(gen, line, logger); done {
					return result
				}
			}
			return c.fail(gen, backend.NewProtocolError("stream ended before completion", nil), logger)
		case ctx.Err() != nil:
			return c.interrupted(parent, gen, logger)
		default:
			return c.fail(gen, err, logger)
		}
	}
}

// handleLine parses and applies one frame. done is true once the attempt
// is over; result is then what Start returns.
func (c *Consumer) handleLine(gen uint64, line []byte, logger *zap.Logger) (done bool, result error) {
	ev, err := ParseEvent(line)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.status.Malformed++
		}
		c.mu.Unlock()
		logger.Warn("skipping malformed sync frame",
			zap.String("line", util.TruncateWidth(string(line), 200)),
			zap.Error(err),
		)
		return false, nil
	}
	if !ev.Status.Known() {
		logger.Info("ignoring sync event with unknown status", zap.String("status", string(ev.Status)))
		return false, nil
	}
	return c.apply(gen, ev, logger)
}

func (c *Consumer) apply(gen uint64, ev Event, logger *zap.Logger) (bool, error) {
	c.mu.Lock()
	if c.gen != gen || c.cancelled {
		c.mu.Unlock()
		return true, context.Canceled
	}
	if c.status.State != StateStreaming {
		// Terminal states absorb late frames.
		c.mu.Unlock()
		return true, c.status.Err
	}

	stored := ev
	c.status.LastEvent = &stored
	c.status.Events++
	c.status.Step = ClassifyEvent(ev)

	var (
		terminal bool
		failed   bool
	)
	switch ev.Status {
	case StatusComplete, StatusSuccess:
		count := len(c.status.Items)
		if ev.HasFiles {
			count = len(ev.Files)
			c.status.Files = ev.Files
		}
		c.status.FileCount = count
		c.status.Step = StepComplete
		c.status.FinishedAt = time.Now()
		c.transitionLocked(StateSucceeded)
		terminal = true
	case StatusError:
		c.status.Reason = ev.Reason()
		c.status.Err = fmt.Errorf("%w: %s", ErrSyncFailed, c.status.Reason)
		c.status.FinishedAt = time.Now()
		c.transitionLocked(StateFailed)
		terminal, failed = true, true
	}
	st := c.status
	src := c.source
	c.mu.Unlock()

	logger.Debug("sync event",
		zap.String("status", string(ev.Status)),
		zap.String("message", ev.Message),
		zap.String("detail", ev.Detail),
	)
	if c.observer.OnEvent != nil {
		c.observer.OnEvent(ev, st)
	}
	if !terminal {
		return false, nil
	}

	if src != nil {
		src.Close()
	}
	if failed {
		logger.Warn("sync failed", zap.String("reason", st.Reason))
		if c.observer.OnError != nil {
			c.observer.OnError(st)
		}
		return true, st.Err
	}
	logger.Info("sync complete", zap.Int("files", st.FileCount), zap.Duration("elapsed", st.Elapsed()))
	if c.observer.OnComplete != nil {
		c.observer.OnComplete(st)
	}
	return true, nil
}

// fail moves the attempt to Failed with err unless it was abandoned.
func (c *Consumer) fail(gen uint64, err error, logger *zap.Logger) error {
	c.mu.Lock()
	if c.gen != gen || c.cancelled {
		c.mu.Unlock()
		return context.Canceled
	}
	if c.status.State.Terminal() {
		c.mu.Unlock()
		return c.status.Err
	}
	if c.idleFired {
		err = backend.NewTransportError("sync stream", fmt.Errorf("no data for %s", c.idleTimeout))
	}
	c.status.Err = err
	c.status.Reason = err.Error()
	c.status.FinishedAt = time.Now()
	c.transitionLocked(StateFailed)
	st := c.status
	c.mu.Unlock()

	logger.Warn("sync failed",
		zap.String("type", backend.TypeOf(err).String()),
		zap.Error(err),
	)
	if c.observer.OnError != nil {
		c.observer.OnError(st)
	}
	return err
}

// interrupted handles a cancelled attempt context: a caller cancellation is
// silent, an idle timeout is a transport failure.
func (c *Consumer) interrupted(parent context.Context, gen uint64, logger *zap.Logger) error {
	c.mu.Lock()
	current := c.gen == gen
	idle := current && c.idleFired && !c.cancelled && parent.Err() == nil
	if current && !idle {
		c.cancelled = true
		c.status.Abandoned = true
	}
	c.mu.Unlock()

	if idle {
		return c.fail(gen, nil, logger)
	}
	logger.Info("sync abandoned")
	return context.Canceled
}

// transitionLocked moves to the next state. Invalid edges are logged and
// ignored. c.mu must be held.
func (c *Consumer) transitionLocked(to State) {
	from := c.status.State
	if !isValidTransition(from, to) {
		c.logger.Error("invalid sync transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	c.status.State = to
	c.logger.Debug("sync transition", zap.Stringer("from", from), zap.Stringer("to", to))
}
