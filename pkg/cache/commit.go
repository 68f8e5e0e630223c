package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/types"
)

// Commit moves every dirty entry and marker to the durable store in one
// batch, then migrates the entries into the bounded cached set.
//
// Ordering matters: the durable write completes before anything leaves the
// dirty set, so a crash between the two leaves entries dirty (re-committed
// later, idempotently) rather than lost. Eviction only ever removes
// committed entries.
func (c *AvailabilityCache) Commit(ctx context.Context) error {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCacheCommit)
	defer span.End()

	// Snapshot the dirty set without holding the lock across store I/O.
	c.mu.Lock()
	batch := store.Batch{
		Objects: make([]store.ObjectRecord, 0, len(c.dirty)),
		Markers: make([]store.MarkerRecord, 0, len(c.dirtyMarkers)),
	}
	for key, entry := range c.dirty {
		batch.Objects = append(batch.Objects, store.ObjectRecord{
			ID:      key.id,
			Version: key.version,
			Entry:   entry,
		})
	}
	for key := range c.dirtyMarkers {
		batch.Markers = append(batch.Markers, store.MarkerRecord{
			Epoch:   key.epoch,
			ID:      key.id,
			Version: key.version,
			Marker:  c.markers[key],
		})
	}
	c.mu.Unlock()

	if batch.Empty() {
		return nil
	}
	telemetry.SetAttributes(ctx, telemetry.BatchSize(len(batch.Objects)+len(batch.Markers)))

	if err := c.store.WriteBatch(ctx, batch); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to commit cache batch: %w", err)
	}

	// Migrate dirty entries to the cached set. New writes that raced in
	// since the snapshot stay dirty for the next commit.
	c.mu.Lock()
	for _, rec := range batch.Objects {
		key := objectKey{rec.ID, rec.Version}
		if _, ok := c.dirty[key]; !ok {
			continue
		}
		delete(c.dirty, key)
		c.cached[key] = rec.Entry
		c.cachedVersions[rec.ID] = insertVersion(c.cachedVersions[rec.ID], rec.Version)
		c.evictLocked(rec.ID)
	}
	for _, rec := range batch.Markers {
		delete(c.dirtyMarkers, markerKey{rec.Epoch, rec.ID, rec.Version})
	}
	dirtyCount := len(c.dirty)
	cachedCount := len(c.cached)
	footprint := c.footprint
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordDirtyEntries(dirtyCount)
		c.metrics.RecordCachedEntries(cachedCount)
		c.metrics.RecordFootprint(footprint)
		c.metrics.ObserveCommit(len(batch.Objects), len(batch.Markers), time.Since(start))
	}

	logger.Debug("Committed cache batch",
		logger.KeyDirtyEntries, dirtyCount,
		logger.KeyCachedEntries, cachedCount,
		logger.KeyDurationMs, logger.Duration(start),
	)
	return nil
}

// insertVersion adds v to the sorted version list, keeping it ascending so
// eviction always drops the oldest version. Batch snapshots iterate a map,
// so arrival order here is arbitrary. Re-inserting a version already
// present (an evicted slot written and committed again) is a no-op.
func insertVersion(versions []types.Version, v types.Version) []types.Version {
	i := sort.Search(len(versions), func(j int) bool { return versions[j] >= v })
	if i < len(versions) && versions[i] == v {
		return versions
	}
	versions = append(versions, 0)
	copy(versions[i+1:], versions[i:])
	versions[i] = v
	return versions
}

// evictLocked trims id's cached versions to the configured bound, oldest
// first. Evicted entries remain durable; the latest-version index keeps
// the monotonic availability fact alive for receiving-key checks.
func (c *AvailabilityCache) evictLocked(id types.ObjectID) {
	versions := c.cachedVersions[id]
	for len(versions) > c.config.MaxCachedVersionsPerObject {
		oldest := versions[0]
		versions = versions[1:]
		key := objectKey{id, oldest}
		if entry, ok := c.cached[key]; ok {
			c.footprint -= entrySize(entry)
			delete(c.cached, key)
		}
	}
	c.cachedVersions[id] = versions
}

// PruneMarkers drops every in-memory marker from epochs before the given
// epoch. Committed markers stay durable; uncommitted ones from old epochs
// can no longer release any waiter and are dropped outright.
func (c *AvailabilityCache) PruneMarkers(before types.EpochID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for key := range c.markers {
		if key.epoch < before {
			delete(c.markers, key)
			delete(c.dirtyMarkers, key)
			pruned++
		}
	}
	return pruned
}
