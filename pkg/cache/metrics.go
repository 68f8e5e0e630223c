package cache

import "time"

// CacheMetrics collects availability cache metrics.
//
// Implementations must be safe for concurrent use. A nil CacheMetrics is
// valid and means no metrics collection (zero overhead).
type CacheMetrics interface {
	// ObserveNotifyRead records one NotifyReadInputObjects call.
	// immediate is true when every key was satisfied without waiting.
	ObserveNotifyRead(numKeys int, immediate bool, duration time.Duration)

	// RecordWaiters records the number of requests currently registered.
	RecordWaiters(count int)

	// RecordRead records a read-through lookup. hit is true when served
	// from memory.
	RecordRead(hit bool)

	// RecordDirtyEntries records the current dirty-set size.
	RecordDirtyEntries(count int)

	// RecordCachedEntries records the current cached-set size.
	RecordCachedEntries(count int)

	// RecordFootprint records the approximate in-memory byte footprint.
	RecordFootprint(bytes int64)

	// ObserveCommit records one commit batch.
	ObserveCommit(objects, markers int, duration time.Duration)
}
