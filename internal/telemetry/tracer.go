package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for admission-path spans.
const (
	AttrObjectID  = "object.id"
	AttrVersion   = "object.version"
	AttrEpoch     = "epoch"
	AttrNumKeys   = "input.num_keys"
	AttrCacheHit  = "cache.hit"
	AttrBatchSize = "store.batch_size"
	AttrStoreType = "store.type"
	AttrExecuted  = "checkpoint.executed"
	AttrCertified = "checkpoint.certified"
)

// Span names for traced operations.
// Format: <component>.<operation>
const (
	SpanNotifyRead  = "cache.notify_read"
	SpanCacheCommit = "cache.commit"
	SpanCacheRead   = "cache.read"
	SpanStoreWrite  = "store.write_batch"
	SpanAwaitNoBP   = "backpressure.await"
	SpanHTTPRequest = "api.request"
)

// Event names recorded on spans.
const (
	EventSuspended = "cache.suspended"
)

// ObjectID returns an attribute for an object identifier.
func ObjectID(id string) attribute.KeyValue {
	return attribute.String(AttrObjectID, id)
}

// Version returns an attribute for an object lineage version.
func Version(v uint64) attribute.KeyValue {
	return attribute.Int64(AttrVersion, int64(v))
}

// Epoch returns an attribute for an epoch identifier.
func Epoch(e uint64) attribute.KeyValue {
	return attribute.Int64(AttrEpoch, int64(e))
}

// NumKeys returns an attribute for the number of input keys in a wait.
func NumKeys(n int) attribute.KeyValue {
	return attribute.Int(AttrNumKeys, n)
}

// CacheHit returns an attribute marking a read as a hit or miss.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// BatchSize returns an attribute for a commit batch's record count.
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// StoreType returns an attribute for the durable store backend.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Executed returns an attribute for the executed checkpoint watermark.
func Executed(seq uint64) attribute.KeyValue {
	return attribute.Int64(AttrExecuted, int64(seq))
}

// Certified returns an attribute for the certified checkpoint watermark.
func Certified(seq uint64) attribute.KeyValue {
	return attribute.Int64(AttrCertified, int64(seq))
}
