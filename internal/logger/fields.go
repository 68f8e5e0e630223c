package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation can correlate events by object, epoch, and checkpoint.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// ========================================================================
	// Domain Identifiers
	// ========================================================================
	KeyObjectID      = "object_id"      // Object or package id (abbreviated hex)
	KeyVersion       = "version"        // Object lineage version
	KeyEpoch         = "epoch"          // Epoch id
	KeyTxDigest      = "tx_digest"      // Transaction digest (abbreviated)
	KeyCheckpointSeq = "checkpoint_seq" // Checkpoint sequence number
	KeyInputKey      = "input_key"      // Rendered input key
	KeyWaitID        = "wait_id"        // Correlation id for one suspended wait

	// ========================================================================
	// Cache State
	// ========================================================================
	KeyPendingKeys    = "pending_keys"    // Unresolved keys of a waiting request
	KeyPendingWaiters = "pending_waiters" // Requests still registered in the cache
	KeyDirtyEntries   = "dirty_entries"   // Uncommitted entries in the cache
	KeyCachedEntries  = "cached_entries"  // Committed entries retained in memory
	KeyFootprint      = "footprint"       // Approximate in-memory byte footprint

	// ========================================================================
	// Backpressure
	// ========================================================================
	KeyBackpressure = "backpressure" // Current backpressure flag
	KeyExecuted     = "executed"     // Executed checkpoint watermark
	KeyCertified    = "certified"    // Certified checkpoint watermark

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyRequestID  = "request_id"  // API request correlation id
	KeySource     = "source"      // Data source: cache, durable_store
)

// ----------------------------------------------------------------------------
// Attr helpers
// ----------------------------------------------------------------------------

// Epoch returns a slog.Attr for an epoch id
func Epoch(epoch uint64) slog.Attr {
	return slog.Uint64(KeyEpoch, epoch)
}

// Version returns a slog.Attr for a lineage version
func Version(version uint64) slog.Attr {
	return slog.Uint64(KeyVersion, version)
}

// CheckpointSeq returns a slog.Attr for a checkpoint sequence number
func CheckpointSeq(seq uint64) slog.Attr {
	return slog.Uint64(KeyCheckpointSeq, seq)
}

// Err returns a slog.Attr for an error message
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
