// Package sizeaware provides a write decorator that counts the bytes written
// to a store handle and, on close, withholds completion until the written
// path is visible to readers of the store.
package sizeaware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
)

// DefaultVisibilityTimeout bounds the visibility wait when no option overrides it.
const DefaultVisibilityTimeout = 60 * time.Second

var (
	// ErrIO classifies failures of the wrapped handle's Write or Close.
	ErrIO = errors.New("io failure")

	// ErrVisibilityTimeout classifies a Close whose path could not be
	// confirmed visible. The file is closed at the storage layer but must be
	// treated as not committed.
	ErrVisibilityTimeout = errors.New("visibility timeout")

	// ErrClosed is returned by Write, Close and Abort once Close or Abort has begun.
	ErrClosed = errors.New("writer already closed")

	// ErrInvalidArgument is returned by New when a required argument is missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAbortUnsupported is returned by Abort when the wrapped handle cannot
	// discard its bytes without committing them.
	ErrAbortUnsupported = errors.New("handle cannot be aborted")
)

// State is the lifecycle position of a Writer.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateVisible
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateVisible:
		return "visible"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by Writer. Kind is one of ErrIO,
// ErrVisibilityTimeout or ErrClosed; Err is the underlying cause. Both are
// reachable through errors.Is and errors.As.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Option configures a Writer.
type Option func(*Writer)

// WithVisibilityTimeout bounds how long Close waits for the guard.
// Non-positive values keep the default.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithContext sets the context whose values (trace span, log fields) are
// passed to the guard. Its cancellation is ignored: Close ends only through
// the visibility timeout.
func WithContext(ctx context.Context) Option {
	return func(w *Writer) {
		if ctx != nil {
			w.baseCtx = context.WithoutCancel(ctx)
		}
	}
}

// Writer decorates an io.WriteCloser with a byte counter and a
// close-then-verify sequence.
//
// Write is safe for concurrent use as far as the counter is concerned; the
// ordering of concurrent writes on the wrapped handle is the handle's own
// business. Close must be called at most once.
type Writer struct {
	path    string
	out     io.WriteCloser
	guard   consistency.Guard
	onClose func()
	timeout time.Duration
	baseCtx context.Context

	written atomic.Int64
	state   atomic.Int32
}

// New wraps out, which the returned Writer owns exclusively from now on.
// onClose runs exactly once, after out is closed and path is visible.
func New(path string, out io.WriteCloser, guard consistency.Guard, onClose func(), opts ...Option) (*Writer, error) {
	switch {
	case path == "":
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	case out == nil:
		return nil, fmt.Errorf("%w: nil handle for %s", ErrInvalidArgument, path)
	case guard == nil:
		return nil, fmt.Errorf("%w: nil consistency guard for %s", ErrInvalidArgument, path)
	case onClose == nil:
		return nil, fmt.Errorf("%w: nil completion callback for %s", ErrInvalidArgument, path)
	}

	w := &Writer{
		path:    path,
		out:     out,
		guard:   guard,
		onClose: onClose,
		timeout: DefaultVisibilityTimeout,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write forwards p to the wrapped handle.
//
// The counter is advanced by len(p) before the handle sees the data, so a
// failed write still counts: BytesWritten reports attempted bytes, not
// durable ones.
func (w *Writer) Write(p []byte) (int, error) {
	if State(w.state.Load()) != StateOpen {
		return 0, &Error{Op: "write", Path: w.path, Kind: ErrClosed}
	}

	w.written.Add(int64(len(p)))

	n, err := w.out.Write(p)
	if err != nil {
		return n, &Error{Op: "write", Path: w.path, Kind: ErrIO, Err: err}
	}
	return n, nil
}

// BytesWritten returns the number of bytes passed to Write so far.
func (w *Writer) BytesWritten() int64 {
	return w.written.Load()
}

// Path returns the target path.
func (w *Writer) Path() string {
	return w.path
}

// State returns the current lifecycle state.
func (w *Writer) State() State {
	return State(w.state.Load())
}

// Close closes the wrapped handle, waits for the path to become visible and
// then runs the completion callback.
//
// A handle close failure aborts the sequence with an ErrIO error and the
// guard is never consulted. A guard failure yields ErrVisibilityTimeout. In
// both cases the callback is not run.
func (w *Writer) Close() error {
	if !w.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return &Error{Op: "close", Path: w.path, Kind: ErrClosed}
	}
	start := time.Now()

	if err := w.out.Close(); err != nil {
		w.state.Store(int32(StateFailed))
		logger.WarnCtx(w.baseCtx, "Close of underlying handle failed",
			logger.Path(w.path), logger.BytesWritten(w.BytesWritten()), logger.Err(err))
		return &Error{Op: "close", Path: w.path, Kind: ErrIO, Err: err}
	}

	ctx, cancel := context.WithTimeout(w.baseCtx, w.timeout)
	err := w.guard.WaitForVisibility(ctx, w.path)
	cancel()
	if err != nil {
		w.state.Store(int32(StateFailed))
		logger.WarnCtx(w.baseCtx, "Path not visible after close",
			logger.Path(w.path), logger.KeyTimeout, w.timeout, logger.DurationMs(start), logger.Err(err))
		return &Error{Op: "close", Path: w.path, Kind: ErrVisibilityTimeout, Err: err}
	}

	w.state.Store(int32(StateVisible))
	logger.DebugCtx(w.baseCtx, "Writer closed and visible",
		logger.Path(w.path), logger.BytesWritten(w.BytesWritten()), logger.DurationMs(start))

	w.onClose()
	return nil
}

// Abort gives up on the write: the wrapped handle discards what it staged,
// the guard is not consulted and the callback never runs. Abort is only
// valid while the writer is open.
func (w *Writer) Abort() error {
	if !w.state.CompareAndSwap(int32(StateOpen), int32(StateAborted)) {
		return &Error{Op: "abort", Path: w.path, Kind: ErrClosed}
	}

	a, ok := w.out.(storage.Aborter)
	if !ok {
		return &Error{Op: "abort", Path: w.path, Kind: ErrAbortUnsupported}
	}
	if err := a.Abort(); err != nil {
		logger.WarnCtx(w.baseCtx, "Abort of underlying handle failed",
			logger.Path(w.path), logger.BytesWritten(w.BytesWritten()), logger.Err(err))
		return &Error{Op: "abort", Path: w.path, Kind: ErrIO, Err: err}
	}

	logger.DebugCtx(w.baseCtx, "Writer aborted",
		logger.Path(w.path), logger.BytesWritten(w.BytesWritten()))
	return nil
}

var _ io.WriteCloser = (*Writer)(nil)
