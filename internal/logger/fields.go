package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use these consistently so logs from the writer, the
// stores and the CLI can be queried together.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Files and writers
	KeyPath         = "path"
	KeySize         = "size"
	KeyBytesWritten = "bytes_written"
	KeyState        = "state"
	KeyOpenWriters  = "open_writers"
	KeyTimeout      = "timeout"

	// Operation metadata
	KeyOperation  = "operation"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOutcome    = "outcome"

	// Storage backends
	KeyStoreType = "store_type"
	KeyRoot      = "root"
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyRegion    = "region"
	KeyEndpoint  = "endpoint"
	KeyLag       = "visibility_lag"

	// Catalog
	KeyCatalogType = "catalog_type"
	KeyEntries     = "entries"
)

// Path returns a slog.Attr for a store path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// BytesWritten returns a slog.Attr for the running byte count of a writer.
func BytesWritten(n int64) slog.Attr {
	return slog.Int64(KeyBytesWritten, n)
}

// Size returns a slog.Attr for an object size.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Operation returns a slog.Attr for a sub-operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns a slog.Attr with the elapsed time since start.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error; nil errors produce an empty attr.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// StoreType returns a slog.Attr for a backend type.
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for an object store bucket.
func Bucket(b string) slog.Attr {
	return slog.String(KeyBucket, b)
}

// Key returns a slog.Attr for an object key.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}
