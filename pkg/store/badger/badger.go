// Package badger implements a BadgerDB-backed DurableStore.
//
// BadgerDB gives us crash-safe persistence with cheap point lookups, which
// is exactly the access pattern of the availability cache's read-through
// path: GetObject and GetMarker are single-key reads, GetLatestObject is a
// single-key read against a separately maintained latest-version index.
package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/types"
)

// BadgerStore is a DurableStore persisted in a BadgerDB database.
//
// Thread Safety: safe for concurrent use. BadgerDB transactions provide the
// required atomicity for WriteBatch.
type BadgerStore struct {
	db *badger.DB
}

// Options configures the BadgerDB store.
type Options struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory runs BadgerDB without persistence. Used in tests.
	InMemory bool

	// SyncWrites forces fsync on every commit. Slower but safest.
	SyncWrites bool
}

// New opens (or creates) a BadgerDB-backed store at opts.Path.
func New(opts Options) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil) // badger's own logger is too chatty; we log open/close ourselves

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %q: %w", opts.Path, err)
	}

	logger.Info("Opened badger object store", "path", opts.Path, "in_memory", opts.InMemory)
	return &BadgerStore{db: db}, nil
}

// GetObject returns the entry stored at (id, version).
func (s *BadgerStore) GetObject(ctx context.Context, id types.ObjectID, version types.Version) (types.ObjectEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.ObjectEntry{}, false, err
	}

	var entry types.ObjectEntry
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyObject(id, version))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, decErr := decodeEntry(val)
			if decErr != nil {
				return decErr
			}
			entry = decoded
			found = true
			return nil
		})
	})
	if err != nil {
		return types.ObjectEntry{}, false, fmt.Errorf("failed to get object %s@%d: %w", id.Short(), version, err)
	}
	return entry, found, nil
}

// GetLatestObject returns the highest-version entry for id.
func (s *BadgerStore) GetLatestObject(ctx context.Context, id types.ObjectID) (store.VersionedObject, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.VersionedObject{}, false, err
	}

	var result store.VersionedObject
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLatest(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var version types.Version
		if err := item.Value(func(val []byte) error {
			var decErr error
			version, decErr = decodeVersion(val)
			return decErr
		}); err != nil {
			return err
		}

		entryItem, err := txn.Get(keyObject(id, version))
		if err != nil {
			return fmt.Errorf("latest index points at missing entry %s@%d: %w", id.Short(), version, err)
		}
		return entryItem.Value(func(val []byte) error {
			entry, decErr := decodeEntry(val)
			if decErr != nil {
				return decErr
			}
			result = store.VersionedObject{Version: version, Entry: entry}
			found = true
			return nil
		})
	})
	if err != nil {
		return store.VersionedObject{}, false, fmt.Errorf("failed to get latest object %s: %w", id.Short(), err)
	}
	return result, found, nil
}

// HasPackage reports whether a package entry exists for id.
func (s *BadgerStore) HasPackage(ctx context.Context, id types.ObjectID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyPackage(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check package %s: %w", id.Short(), err)
	}
	return found, nil
}

// GetMarker returns the marker stored at (epoch, id, version).
func (s *BadgerStore) GetMarker(ctx context.Context, epoch types.EpochID, id types.ObjectID, version types.Version) (types.MarkerValue, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.MarkerValue{}, false, err
	}

	var marker types.MarkerValue
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMarker(epoch, id, version))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, decErr := decodeMarker(val)
			if decErr != nil {
				return decErr
			}
			marker = decoded
			found = true
			return nil
		})
	})
	if err != nil {
		return types.MarkerValue{}, false, fmt.Errorf("failed to get marker %s@%d in epoch %d: %w", id.Short(), version, epoch, err)
	}
	return marker, found, nil
}

// WriteBatch atomically persists a set of committed outputs.
//
// The latest-version index is only advanced, never regressed, so replaying
// a batch after a crash is harmless.
func (s *BadgerStore) WriteBatch(ctx context.Context, batch store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanStoreWrite)
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.StoreType("badger"),
		telemetry.BatchSize(len(batch.Objects)+len(batch.Markers)),
	)

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range batch.Objects {
			if err := txn.Set(keyObject(rec.ID, rec.Version), encodeEntry(rec.Entry)); err != nil {
				return err
			}

			advance := true
			item, err := txn.Get(keyLatest(rec.ID))
			if err == nil {
				err = item.Value(func(val []byte) error {
					current, decErr := decodeVersion(val)
					if decErr != nil {
						return decErr
					}
					advance = rec.Version > current
					return nil
				})
				if err != nil {
					return err
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if advance {
				if err := txn.Set(keyLatest(rec.ID), encodeVersion(rec.Version)); err != nil {
					return err
				}
			}

			if rec.Entry.Package {
				if err := txn.Set(keyPackage(rec.ID), nil); err != nil {
					return err
				}
			}
		}

		for _, rec := range batch.Markers {
			if err := txn.Set(keyMarker(rec.Epoch, rec.ID, rec.Version), encodeMarker(rec.Marker)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to write batch (%d objects, %d markers): %w",
			len(batch.Objects), len(batch.Markers), err)
	}
	return nil
}

// Close closes the underlying BadgerDB database.
func (s *BadgerStore) Close() error {
	logger.Debug("Closing badger object store")
	return s.db.Close()
}
