package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Generic file keys use the "fs." prefix, backend keys use
// "storage." or "store.".
const (
	AttrOperation    = "fs.operation"
	AttrPath         = "fs.path"
	AttrSize         = "fs.size"
	AttrBytesWritten = "fs.bytes_written"
	AttrState        = "fs.writer_state"
	AttrOutcome      = "fs.close_outcome"
	AttrTimeout      = "fs.visibility_timeout_ms"

	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"

	AttrCatalogType = "catalog.type"
)

// Span names. Format: <component>.<operation>
const (
	SpanWriterCreate = "writer.create"
	SpanWriterClose  = "writer.close"
	SpanWriterAbort  = "writer.abort"

	SpanStoreOpen   = "store.open"
	SpanStoreExists = "store.exists"
	SpanStoreDelete = "store.delete"
	SpanStoreList   = "store.list"

	SpanCatalogCommit = "catalog.commit"
	SpanCatalogGet    = "catalog.get"
	SpanCatalogList   = "catalog.list"
)

func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

func Size(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

func BytesWritten(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesWritten, n)
}

func WriterState(state string) attribute.KeyValue {
	return attribute.String(AttrState, state)
}

// Outcome records how a writer ended: committed, io_error,
// visibility_timeout, catalog_error or aborted.
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

func TimeoutMs(ms int64) attribute.KeyValue {
	return attribute.Int64(AttrTimeout, ms)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

func CatalogType(t string) attribute.KeyValue {
	return attribute.String(AttrCatalogType, t)
}

// StartWriterSpan starts a span for a size-aware writer operation on path.
func StartWriterSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, Path(path))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a pass-through store call.
func StartStoreSpan(ctx context.Context, name, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, StoreType(storeType))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartCatalogSpan starts a span for a catalog operation.
func StartCatalogSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}
