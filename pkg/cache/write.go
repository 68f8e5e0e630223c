package cache

import (
	"bytes"
	"fmt"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/pkg/types"
)

// WriteObjectEntry records a new entry at (id, version) and wakes every
// waiter the write satisfies: exact-key waiters, package waiters when the
// entry is a package, and receiving-key waiters on the same id with a
// threshold at or below version. State mutation and wakeup happen in one
// atomic section.
//
// Each (id, version) has a single logical writer. Re-writing the same
// entry is an idempotent no-op; writing a different entry to an occupied
// slot is a programming error and panics.
func (c *AvailabilityCache) WriteObjectEntry(id types.ObjectID, version types.Version, entry types.ObjectEntry) {
	if version > types.MaxValidVersion {
		panic(fmt.Sprintf("write at reserved version %d for %s", version, id.Short()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := objectKey{id, version}
	if existing, ok := c.entryLocked(key); ok {
		if !entriesEqual(existing, entry) {
			panic(fmt.Sprintf("conflicting write at %s@%d", id.Short(), version))
		}
		return
	}

	c.dirty[key] = entry
	c.footprint += entrySize(entry)
	if latest, ok := c.latest[id]; !ok || version > latest {
		c.latest[id] = version
	}
	if entry.Package {
		c.packages[id] = struct{}{}
	}

	c.waiters.wakeExactLocked(types.VersionedObjectKey(id, version), nil)
	if entry.Package {
		c.waiters.wakeExactLocked(types.PackageKey(id), nil)
	}
	c.waiters.wakeWildcardLocked(id, version)

	if c.metrics != nil {
		c.metrics.RecordDirtyEntries(len(c.dirty))
		c.metrics.RecordFootprint(c.footprint)
	}
}

// WriteMarkerValue records a marker at (epoch, id, version) and wakes
// waiters on that exact key within the same epoch. A stream-ended marker
// means no matching write will ever arrive, so the waiter must be released
// rather than left pending forever.
func (c *AvailabilityCache) WriteMarkerValue(epoch types.EpochID, id types.ObjectID, version types.Version, marker types.MarkerValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := markerKey{epoch, id, version}
	if _, ok := c.markers[key]; ok {
		return
	}
	c.markers[key] = marker
	c.dirtyMarkers[key] = struct{}{}

	c.waiters.wakeExactLocked(types.VersionedObjectKey(id, version), func(req *request) bool {
		return req.epoch == epoch
	})

	logger.Debug("Recorded marker",
		logger.Epoch(uint64(epoch)),
		logger.KeyObjectID, id.Short(),
		logger.Version(uint64(version)),
		logger.KeyTxDigest, marker.TxDigest.String(),
	)
}

// WriteTransactionOutputs records all outputs of one executed transaction:
// every object mutation plus any markers it produced. Convenience wrapper
// with the same per-write semantics as WriteObjectEntry/WriteMarkerValue.
func (c *AvailabilityCache) WriteTransactionOutputs(epoch types.EpochID, outputs TransactionOutputs) {
	for _, obj := range outputs.Objects {
		c.WriteObjectEntry(obj.ID, obj.Version, obj.Entry)
	}
	for _, m := range outputs.Markers {
		c.WriteMarkerValue(epoch, m.ID, m.Version, m.Marker)
	}
}

// ObjectWrite is one object mutation within TransactionOutputs.
type ObjectWrite struct {
	ID      types.ObjectID
	Version types.Version
	Entry   types.ObjectEntry
}

// MarkerWrite is one marker within TransactionOutputs.
type MarkerWrite struct {
	ID      types.ObjectID
	Version types.Version
	Marker  types.MarkerValue
}

// TransactionOutputs groups the writes produced by one transaction.
type TransactionOutputs struct {
	TxDigest types.TransactionDigest
	Objects  []ObjectWrite
	Markers  []MarkerWrite
}

func entriesEqual(a, b types.ObjectEntry) bool {
	return a.Kind == b.Kind && a.Package == b.Package && bytes.Equal(a.Content, b.Content)
}
