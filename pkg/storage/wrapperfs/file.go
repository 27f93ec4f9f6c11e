package wrapperfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/storage/sizeaware"
)

// File is a size-aware writer handed out by FileSystem.Create.
type File struct {
	*sizeaware.Writer

	fs  *FileSystem
	ctx context.Context

	// set by Close before the writer runs the completion callback
	closeCtx  context.Context
	commitErr error
}

// Close runs the writer's close sequence and reports its outcome. The path
// leaves the open set whatever the outcome; it enters the catalog only when
// visibility was confirmed.
func (f *File) Close() error {
	ctx, span := telemetry.StartWriterSpan(f.ctx, telemetry.SpanWriterClose, f.Path(),
		telemetry.StoreType(f.fs.store.Type()),
		telemetry.TimeoutMs(f.fs.timeout.Milliseconds()))
	defer span.End()

	f.closeCtx = ctx
	start := time.Now()

	err := f.Writer.Close()
	if errors.Is(err, sizeaware.ErrClosed) {
		return err
	}

	outcome := OutcomeCommitted
	switch {
	case errors.Is(err, sizeaware.ErrVisibilityTimeout):
		outcome = OutcomeVisibilityTimeout
	case err != nil:
		outcome = OutcomeIOError
	case f.commitErr != nil:
		outcome = OutcomeCatalogError
		err = f.commitErr
	}

	if outcome != OutcomeCommitted {
		f.fs.release(f)
		telemetry.RecordError(ctx, err)
	}

	span.SetAttributes(
		telemetry.Outcome(outcome),
		telemetry.BytesWritten(f.BytesWritten()),
		telemetry.WriterState(f.State().String()),
	)
	if f.fs.metrics != nil {
		f.fs.metrics.ObserveClose(outcome, time.Since(start))
	}
	return err
}

// Abort discards the file without committing it and drops the path from the
// open set.
func (f *File) Abort() error {
	ctx, span := telemetry.StartWriterSpan(f.ctx, telemetry.SpanWriterAbort, f.Path(),
		telemetry.StoreType(f.fs.store.Type()))
	defer span.End()

	start := time.Now()
	err := f.Writer.Abort()
	if errors.Is(err, sizeaware.ErrClosed) {
		return err
	}
	f.fs.release(f)

	telemetry.RecordError(ctx, err)
	span.SetAttributes(
		telemetry.Outcome(OutcomeAborted),
		telemetry.BytesWritten(f.BytesWritten()),
	)
	if f.fs.metrics != nil {
		f.fs.metrics.ObserveClose(OutcomeAborted, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("abort %s: %w", f.Path(), err)
	}
	return nil
}

// commit is the writer's completion callback. It runs once, after the path
// is confirmed visible.
func (f *File) commit() {
	size := f.BytesWritten()
	f.fs.release(f)

	if f.fs.metrics != nil {
		f.fs.metrics.RecordBytes(size)
	}

	if f.fs.catalog == nil {
		return
	}

	ctx, span := telemetry.StartCatalogSpan(f.closeCtx, telemetry.SpanCatalogCommit,
		telemetry.CatalogType(f.fs.catalog.Type()), telemetry.Path(f.Path()), telemetry.Size(size))
	defer span.End()

	entry := catalog.Entry{
		Path:        f.Path(),
		Size:        size,
		StoreType:   f.fs.store.Type(),
		CommittedAt: time.Now().UTC(),
	}
	if err := f.fs.catalog.Commit(ctx, entry); err != nil {
		f.commitErr = fmt.Errorf("commit %s to catalog: %w", f.Path(), err)
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Visible file missing from catalog", logger.Size(size), logger.Err(err))
		return
	}

	logger.DebugCtx(ctx, "File committed", logger.Size(size))
}
