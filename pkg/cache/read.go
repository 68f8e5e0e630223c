package cache

import (
	"context"

	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/types"
)

// Read-through getters. The in-memory sets are consulted first, the
// durable store on miss. Misses of evicted-but-durable data are therefore
// invisible to callers.

// GetObject returns the entry at (id, version).
func (c *AvailabilityCache) GetObject(ctx context.Context, id types.ObjectID, version types.Version) (types.ObjectEntry, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCacheRead)
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.ObjectID(id.Short()),
		telemetry.Version(uint64(version)),
	)

	c.mu.Lock()
	entry, ok := c.entryLocked(objectKey{id, version})
	c.mu.Unlock()

	if ok {
		telemetry.SetAttributes(ctx, telemetry.CacheHit(true))
		c.recordRead(true)
		return entry, true, nil
	}

	entry, found, err := c.store.GetObject(ctx, id, version)
	telemetry.SetAttributes(ctx, telemetry.CacheHit(false))
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	c.recordRead(false)
	return entry, found, err
}

// GetLatestObject returns the highest-version entry for id known to the
// cache or the durable store.
func (c *AvailabilityCache) GetLatestObject(ctx context.Context, id types.ObjectID) (store.VersionedObject, bool, error) {
	c.mu.Lock()
	version, inMemory := c.latest[id]
	var entry types.ObjectEntry
	var entryOK bool
	if inMemory {
		entry, entryOK = c.entryLocked(objectKey{id, version})
	}
	c.mu.Unlock()

	if inMemory && entryOK {
		c.recordRead(true)
		return store.VersionedObject{Version: version, Entry: entry}, true, nil
	}

	// The in-memory latest index knows the version but the entry may have
	// been evicted after commit; the store holds it either way.
	latest, found, err := c.store.GetLatestObject(ctx, id)
	c.recordRead(false)
	if err != nil || !found {
		return store.VersionedObject{}, found, err
	}
	if inMemory && version > latest.Version {
		// A dirty write newer than anything durable exists but its entry
		// was found neither dirty nor cached. Dirty entries are never
		// evicted, so this cannot happen.
		panic("latest index ahead of both memory and store")
	}
	return latest, true, nil
}

// PackageExists reports whether a package entry for id is available.
// System packages are always available.
func (c *AvailabilityCache) PackageExists(ctx context.Context, id types.ObjectID) (bool, error) {
	if types.IsSystemPackage(id) {
		return true, nil
	}

	c.mu.Lock()
	ok := c.packageVisibleLocked(id)
	c.mu.Unlock()

	if ok {
		c.recordRead(true)
		return true, nil
	}

	found, err := c.store.HasPackage(ctx, id)
	c.recordRead(false)
	return found, err
}

// GetMarker returns the marker at (epoch, id, version).
func (c *AvailabilityCache) GetMarker(ctx context.Context, epoch types.EpochID, id types.ObjectID, version types.Version) (types.MarkerValue, bool, error) {
	c.mu.Lock()
	marker, ok := c.markers[markerKey{epoch, id, version}]
	c.mu.Unlock()

	if ok {
		c.recordRead(true)
		return marker, true, nil
	}

	marker, found, err := c.store.GetMarker(ctx, epoch, id, version)
	c.recordRead(false)
	return marker, found, err
}

func (c *AvailabilityCache) recordRead(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordRead(hit)
	}
}
