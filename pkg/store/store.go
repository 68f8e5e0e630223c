// Package store defines the durable storage contract consumed by the
// availability cache.
//
// The cache is a write-back layer: entries live in memory until committed,
// then move to the DurableStore. The store is consulted as read-through
// before the cache registers a waiter, so already-durable-but-evicted data
// never causes a spurious wait.
package store

import (
	"context"

	"github.com/marmos91/execgate/pkg/types"
)

// VersionedObject pairs an entry with the version it is stored at, for
// latest-version queries.
type VersionedObject struct {
	Version types.Version
	Entry   types.ObjectEntry
}

// DurableStore is the persistent key to versioned-content store backing the
// availability cache.
//
// Thread Safety: implementations must be safe for concurrent use.
//
// All lookup methods return (zero, false, nil) when the key is absent;
// errors are reserved for storage faults.
type DurableStore interface {
	// GetObject returns the entry stored at (id, version).
	GetObject(ctx context.Context, id types.ObjectID, version types.Version) (types.ObjectEntry, bool, error)

	// GetLatestObject returns the highest-version entry for id.
	GetLatestObject(ctx context.Context, id types.ObjectID) (VersionedObject, bool, error)

	// HasPackage reports whether a package entry exists for id.
	HasPackage(ctx context.Context, id types.ObjectID) (bool, error)

	// GetMarker returns the marker stored at (epoch, id, version).
	GetMarker(ctx context.Context, epoch types.EpochID, id types.ObjectID, version types.Version) (types.MarkerValue, bool, error)

	// WriteBatch atomically persists a set of committed outputs.
	WriteBatch(ctx context.Context, batch Batch) error

	// Close releases the store's resources.
	Close() error
}

// ObjectRecord is one object write within a Batch.
type ObjectRecord struct {
	ID      types.ObjectID
	Version types.Version
	Entry   types.ObjectEntry
}

// MarkerRecord is one marker write within a Batch.
type MarkerRecord struct {
	Epoch   types.EpochID
	ID      types.ObjectID
	Version types.Version
	Marker  types.MarkerValue
}

// Batch is a set of outputs committed together. The cache builds one batch
// per commit so the durable store observes transaction outputs atomically.
type Batch struct {
	Objects []ObjectRecord
	Markers []MarkerRecord
}

// Empty reports whether the batch carries no writes.
func (b Batch) Empty() bool {
	return len(b.Objects) == 0 && len(b.Markers) == 0
}
