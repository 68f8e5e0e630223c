// Package cache implements the object/package availability cache on the
// execution-admission path.
//
// The cache is a write-back layer over a DurableStore. Transaction outputs
// are written here first (the dirty set), served to readers from memory,
// and moved to the durable store on commit. Committed entries are retained
// in a bounded per-object cached set so recent reads avoid the store.
//
// Its defining feature is the notify-on-write wait primitive:
// NotifyReadInputObjects suspends the caller until every requested input
// key is available, with no polling and no lost wakeups. The waiter
// registry and the write path share one mutex, so "is it already
// satisfied?" plus "register as waiter" and "mutate state" plus "wake
// matching waiters" are each a single atomic section.
//
// Key Design Principles:
//   - Dirty entries are never evicted; only committed entries are
//   - Entries and markers are written once and never mutated
//   - Waiter registrations are released immediately on cancellation
package cache

import (
	"sync"

	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/types"
)

// Default number of committed versions retained in memory per object.
const defaultMaxCachedVersions = 8

type objectKey struct {
	id      types.ObjectID
	version types.Version
}

type markerKey struct {
	epoch   types.EpochID
	id      types.ObjectID
	version types.Version
}

// Config holds availability cache configuration.
type Config struct {
	// MaxCachedVersionsPerObject bounds the committed versions kept in
	// memory per object id. Oldest versions are evicted first.
	// Default: 8.
	MaxCachedVersionsPerObject int
}

func (c *Config) applyDefaults() {
	if c.MaxCachedVersionsPerObject <= 0 {
		c.MaxCachedVersionsPerObject = defaultMaxCachedVersions
	}
}

// AvailabilityCache is the in-memory availability layer over a DurableStore.
//
// Thread Safety: safe for concurrent use. A single mutex guards entries,
// markers, the latest-version index, and both waiter indexes; this is what
// rules out the check-then-register race.
type AvailabilityCache struct {
	store   store.DurableStore
	metrics CacheMetrics
	config  Config

	mu sync.Mutex

	// dirty holds uncommitted entries. Never evicted.
	dirty map[objectKey]types.ObjectEntry

	// cached holds committed entries retained for reads. Bounded per id.
	cached map[objectKey]types.ObjectEntry

	// cachedVersions orders each id's cached versions for eviction,
	// oldest first.
	cachedVersions map[types.ObjectID][]types.Version

	// latest records the highest version written through this cache per
	// id. Monotonic and never evicted: once "some version >= V exists"
	// becomes true for an id it stays true, which is exactly the fact the
	// receiving-key rule needs.
	latest map[types.ObjectID]types.Version

	// packages records ids written as packages.
	packages map[types.ObjectID]struct{}

	// markers holds epoch-scoped marker values.
	markers map[markerKey]types.MarkerValue

	// dirtyMarkers tracks which markers are not yet committed.
	dirtyMarkers map[markerKey]struct{}

	waiters waiterRegistry

	footprint int64
}

// New creates an availability cache over the given durable store.
//
// metrics may be nil for zero overhead.
func New(durable store.DurableStore, config Config, metrics CacheMetrics) *AvailabilityCache {
	config.applyDefaults()
	return &AvailabilityCache{
		store:          durable,
		metrics:        metrics,
		config:         config,
		dirty:          make(map[objectKey]types.ObjectEntry),
		cached:         make(map[objectKey]types.ObjectEntry),
		cachedVersions: make(map[types.ObjectID][]types.Version),
		latest:         make(map[types.ObjectID]types.Version),
		packages:       make(map[types.ObjectID]struct{}),
		markers:        make(map[markerKey]types.MarkerValue),
		dirtyMarkers:   make(map[markerKey]struct{}),
		waiters:        newWaiterRegistry(),
	}
}

// Stats is a point-in-time snapshot of the cache's occupancy, consumed by
// the memory-pressure monitor and the status API.
type Stats struct {
	PendingWaiters int   `json:"pending_waiters"`
	PendingKeys    int   `json:"pending_keys"`
	DirtyEntries   int   `json:"dirty_entries"`
	CachedEntries  int   `json:"cached_entries"`
	Markers        int   `json:"markers"`
	FootprintBytes int64 `json:"footprint_bytes"`
}

// Stats returns a consistent snapshot of cache occupancy.
func (c *AvailabilityCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		PendingWaiters: c.waiters.requestCount(),
		PendingKeys:    c.waiters.keyCount(),
		DirtyEntries:   len(c.dirty),
		CachedEntries:  len(c.cached),
		Markers:        len(c.markers),
		FootprintBytes: c.footprint,
	}
}

// entryLocked returns the entry at key from the dirty or cached set.
func (c *AvailabilityCache) entryLocked(key objectKey) (types.ObjectEntry, bool) {
	if entry, ok := c.dirty[key]; ok {
		return entry, true
	}
	entry, ok := c.cached[key]
	return entry, ok
}

// packageVisibleLocked reports whether a package entry for id is known to
// the in-memory state.
func (c *AvailabilityCache) packageVisibleLocked(id types.ObjectID) bool {
	_, ok := c.packages[id]
	return ok
}

func entrySize(entry types.ObjectEntry) int64 {
	// Rough accounting: content plus fixed per-entry overhead.
	return int64(len(entry.Content)) + 64
}
