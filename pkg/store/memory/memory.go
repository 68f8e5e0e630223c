// Package memory implements an in-memory DurableStore.
//
// Useful for tests and for embedding the admission path without a durable
// backend. Not durable: contents are lost on process exit.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/types"
)

type objectKey struct {
	id      types.ObjectID
	version types.Version
}

type markerKey struct {
	epoch   types.EpochID
	id      types.ObjectID
	version types.Version
}

// MemoryStore is a map-backed DurableStore.
//
// Thread Safety: safe for concurrent use; a single RWMutex guards all maps.
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[objectKey]types.ObjectEntry
	latest   map[types.ObjectID]types.Version
	packages map[types.ObjectID]struct{}
	markers  map[markerKey]types.MarkerValue
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[objectKey]types.ObjectEntry),
		latest:   make(map[types.ObjectID]types.Version),
		packages: make(map[types.ObjectID]struct{}),
		markers:  make(map[markerKey]types.MarkerValue),
	}
}

// GetObject returns the entry stored at (id, version).
func (s *MemoryStore) GetObject(ctx context.Context, id types.ObjectID, version types.Version) (types.ObjectEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.ObjectEntry{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.objects[objectKey{id, version}]
	return entry, ok, nil
}

// GetLatestObject returns the highest-version entry for id.
func (s *MemoryStore) GetLatestObject(ctx context.Context, id types.ObjectID) (store.VersionedObject, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.VersionedObject{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.latest[id]
	if !ok {
		return store.VersionedObject{}, false, nil
	}
	entry := s.objects[objectKey{id, version}]
	return store.VersionedObject{Version: version, Entry: entry}, true, nil
}

// HasPackage reports whether a package entry exists for id.
func (s *MemoryStore) HasPackage(ctx context.Context, id types.ObjectID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.packages[id]
	return ok, nil
}

// GetMarker returns the marker stored at (epoch, id, version).
func (s *MemoryStore) GetMarker(ctx context.Context, epoch types.EpochID, id types.ObjectID, version types.Version) (types.MarkerValue, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.MarkerValue{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	marker, ok := s.markers[markerKey{epoch, id, version}]
	return marker, ok, nil
}

// WriteBatch atomically persists a set of committed outputs.
func (s *MemoryStore) WriteBatch(ctx context.Context, batch store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range batch.Objects {
		s.objects[objectKey{rec.ID, rec.Version}] = rec.Entry
		if cur, ok := s.latest[rec.ID]; !ok || rec.Version > cur {
			s.latest[rec.ID] = rec.Version
		}
		if rec.Entry.Package {
			s.packages[rec.ID] = struct{}{}
		}
	}
	for _, rec := range batch.Markers {
		s.markers[markerKey{rec.Epoch, rec.ID, rec.Version}] = rec.Marker
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
