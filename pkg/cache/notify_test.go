package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/store/memory"
	"github.com/marmos91/execgate/pkg/types"
)

const waitTimeout = 2 * time.Second

// notifyAsync runs NotifyReadInputObjects in a goroutine and returns the
// channel its result lands on.
func notifyAsync(c *AvailabilityCache, ctx context.Context, keys []types.InputKey, receiving map[types.InputKey]struct{}, epoch types.EpochID) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- c.NotifyReadInputObjects(ctx, keys, receiving, epoch)
	}()
	return done
}

func awaitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("waiter did not resolve in time")
		return nil
	}
}

func assertStillWaiting(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("waiter resolved prematurely: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func testObjectID(b byte) types.ObjectID {
	var id types.ObjectID
	id[0] = b
	return id
}

// ============================================================================
// Immediate resolution
// ============================================================================

func TestNotifyRead_EmptyKeys(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), nil, nil, 1))
}

func TestNotifyRead_AlreadyAvailable(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(1)
	c.WriteObjectEntry(id, 3, types.NewObjectEntry([]byte("v3")))

	keys := []types.InputKey{types.VersionedObjectKey(id, 3)}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), keys, nil, 1))
}

func TestNotifyRead_SentinelVersionsResolveWithoutWrites(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(2)

	keys := []types.InputKey{
		types.VersionedObjectKey(id, types.VersionCancelledRead),
		types.VersionedObjectKey(id, types.VersionCongested),
		types.VersionedObjectKey(id, types.VersionRandomnessUnavailable),
	}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), keys, nil, 1))

	stats := c.Stats()
	assert.Equal(t, 0, stats.PendingWaiters)
	assert.Equal(t, 0, stats.DirtyEntries)
}

func TestNotifyRead_SystemPackagesAlwaysAvailable(t *testing.T) {
	c := New(memory.New(), Config{}, nil)

	keys := []types.InputKey{
		types.PackageKey(types.MoveStdlibPackageID),
		types.PackageKey(types.FrameworkPackageID),
		types.PackageKey(types.DeepbookPackageID),
	}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), keys, nil, 1))
}

func TestNotifyRead_DurableDataResolvesWithoutCacheEntry(t *testing.T) {
	s := memory.New()
	id := testObjectID(3)
	require.NoError(t, s.WriteBatch(context.Background(), store.Batch{
		Objects: []store.ObjectRecord{
			{ID: id, Version: 5, Entry: types.NewObjectEntry([]byte("durable"))},
		},
	}))

	c := New(s, Config{}, nil)
	keys := []types.InputKey{types.VersionedObjectKey(id, 5)}
	done := notifyAsync(c, context.Background(), keys, nil, 1)
	require.NoError(t, awaitResult(t, done))
}

// ============================================================================
// Notify-on-write
// ============================================================================

func TestNotifyRead_WakesOnExactWrite(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(4)

	keys := []types.InputKey{types.VersionedObjectKey(id, 7)}
	done := notifyAsync(c, context.Background(), keys, nil, 1)
	assertStillWaiting(t, done)

	// A write to a different key must not release the waiter.
	c.WriteObjectEntry(id, 6, types.NewObjectEntry([]byte("v6")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(id, 7, types.NewObjectEntry([]byte("v7")))
	require.NoError(t, awaitResult(t, done))
	assert.Equal(t, 0, c.Stats().PendingWaiters)
}

func TestNotifyRead_WaitsForAllKeys(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	a, b := testObjectID(5), testObjectID(6)

	keys := []types.InputKey{
		types.VersionedObjectKey(a, 1),
		types.VersionedObjectKey(b, 1),
	}
	done := notifyAsync(c, context.Background(), keys, nil, 1)
	assertStillWaiting(t, done)

	c.WriteObjectEntry(a, 1, types.NewObjectEntry([]byte("a")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(b, 1, types.NewObjectEntry([]byte("b")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_PackageWriteWakesPackageWaiter(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	pkg := testObjectID(7)

	keys := []types.InputKey{types.PackageKey(pkg)}
	done := notifyAsync(c, context.Background(), keys, nil, 1)
	assertStillWaiting(t, done)

	// A non-package write to the same id does not publish a package.
	c.WriteObjectEntry(pkg, 1, types.NewObjectEntry([]byte("not a package")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(pkg, 2, types.NewPackageEntry([]byte("module bytes")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_TombstoneSatisfiesKey(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(8)

	keys := []types.InputKey{types.VersionedObjectKey(id, 2)}
	done := notifyAsync(c, context.Background(), keys, nil, 1)
	assertStillWaiting(t, done)

	// Deletion is availability: the reader observes the tombstone.
	c.WriteObjectEntry(id, 2, types.ObjectEntry{Kind: types.EntryDeleted})
	require.NoError(t, awaitResult(t, done))
}

// ============================================================================
// Receiving keys
// ============================================================================

func TestNotifyRead_ReceivingSatisfiedByExactVersion(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(9)

	key := types.VersionedObjectKey(id, 4)
	receiving := map[types.InputKey]struct{}{key: {}}

	done := notifyAsync(c, context.Background(), []types.InputKey{key}, receiving, 1)
	assertStillWaiting(t, done)

	c.WriteObjectEntry(id, 4, types.NewObjectEntry([]byte("v4")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_ReceivingSatisfiedByLaterVersion(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(10)

	key := types.VersionedObjectKey(id, 4)
	receiving := map[types.InputKey]struct{}{key: {}}

	done := notifyAsync(c, context.Background(), []types.InputKey{key}, receiving, 1)
	assertStillWaiting(t, done)

	// Version 9 proves version 4 existed and was superseded.
	c.WriteObjectEntry(id, 9, types.NewObjectEntry([]byte("v9")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_ReceivingNotSatisfiedByEarlierVersion(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(11)

	key := types.VersionedObjectKey(id, 4)
	receiving := map[types.InputKey]struct{}{key: {}}

	done := notifyAsync(c, context.Background(), []types.InputKey{key}, receiving, 1)
	assertStillWaiting(t, done)

	c.WriteObjectEntry(id, 3, types.NewObjectEntry([]byte("v3")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(id, 4, types.NewObjectEntry([]byte("v4")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_NonReceivingNotSatisfiedByLaterVersion(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(12)
	c.WriteObjectEntry(id, 9, types.NewObjectEntry([]byte("v9")))

	// Without the receiving classification, v9 does not stand in for v4.
	key := types.VersionedObjectKey(id, 4)
	done := notifyAsync(c, context.Background(), []types.InputKey{key}, nil, 1)
	assertStillWaiting(t, done)

	c.WriteObjectEntry(id, 4, types.NewObjectEntry([]byte("v4")))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_ReceivingResolvedFromPriorState(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(13)
	c.WriteObjectEntry(id, 9, types.NewObjectEntry([]byte("v9")))

	key := types.VersionedObjectKey(id, 4)
	receiving := map[types.InputKey]struct{}{key: {}}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), []types.InputKey{key}, receiving, 1))
}

func TestNotifyRead_ReceivingSurvivesCommitAndEviction(t *testing.T) {
	c := New(memory.New(), Config{MaxCachedVersionsPerObject: 1}, nil)
	id := testObjectID(14)

	for v := types.Version(1); v <= 5; v++ {
		c.WriteObjectEntry(id, v, types.NewObjectEntry([]byte{byte(v)}))
	}
	require.NoError(t, c.Commit(context.Background()))

	// Versions 1..4 were evicted from the cached set, but the latest index
	// still proves version 3 was superseded.
	key := types.VersionedObjectKey(id, 3)
	receiving := map[types.InputKey]struct{}{key: {}}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), []types.InputKey{key}, receiving, 1))
}

// ============================================================================
// Markers
// ============================================================================

func TestNotifyRead_StreamEndedMarkerReleasesWaiter(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(15)

	keys := []types.InputKey{types.VersionedObjectKey(id, 6)}
	done := notifyAsync(c, context.Background(), keys, nil, 3)
	assertStillWaiting(t, done)

	var digest types.TransactionDigest
	digest[0] = 0xaa
	c.WriteMarkerValue(3, id, 6, types.ConsensusStreamEnded(digest))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_MarkerFromOtherEpochDoesNotRelease(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(16)

	keys := []types.InputKey{types.VersionedObjectKey(id, 6)}
	done := notifyAsync(c, context.Background(), keys, nil, 3)
	assertStillWaiting(t, done)

	c.WriteMarkerValue(2, id, 6, types.ConsensusStreamEnded(types.TransactionDigest{}))
	assertStillWaiting(t, done)

	c.WriteMarkerValue(3, id, 6, types.ConsensusStreamEnded(types.TransactionDigest{}))
	require.NoError(t, awaitResult(t, done))
}

func TestNotifyRead_PreexistingMarkerResolvesImmediately(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(17)
	c.WriteMarkerValue(3, id, 6, types.ConsensusStreamEnded(types.TransactionDigest{}))

	keys := []types.InputKey{types.VersionedObjectKey(id, 6)}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), keys, nil, 3))
}

// ============================================================================
// Cancellation
// ============================================================================

func TestNotifyRead_CancellationReturnsContextError(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(18)

	ctx, cancel := context.WithCancel(context.Background())
	keys := []types.InputKey{types.VersionedObjectKey(id, 1)}
	done := notifyAsync(c, ctx, keys, nil, 1)
	assertStillWaiting(t, done)

	cancel()
	err := awaitResult(t, done)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNotifyRead_CancellationReleasesRegistrations(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	a, b := testObjectID(19), testObjectID(20)

	ctx, cancel := context.WithCancel(context.Background())
	keys := []types.InputKey{
		types.VersionedObjectKey(a, 1),
		types.VersionedObjectKey(b, 1),
	}
	done := notifyAsync(c, ctx, keys, nil, 1)
	assertStillWaiting(t, done)
	assert.Equal(t, 1, c.Stats().PendingWaiters)
	assert.Equal(t, 2, c.Stats().PendingKeys)

	cancel()
	require.Error(t, awaitResult(t, done))
	assert.Equal(t, 0, c.Stats().PendingWaiters)
	assert.Equal(t, 0, c.Stats().PendingKeys)

	// Writes after cancellation find no stale registration to trip over.
	c.WriteObjectEntry(a, 1, types.NewObjectEntry([]byte("a")))
	c.WriteObjectEntry(b, 1, types.NewObjectEntry([]byte("b")))
}

// ============================================================================
// Concurrency
// ============================================================================

func TestNotifyRead_ManyWaitersOneKey(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(21)
	keys := []types.InputKey{types.VersionedObjectKey(id, 1)}

	const waiters = 32
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.NotifyReadInputObjects(context.Background(), keys, nil, 1)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("x")))

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(waitTimeout):
		t.Fatal("waiters did not all resolve")
	}

	for i, err := range errs {
		require.NoError(t, err, "waiter %d", i)
	}
	assert.Equal(t, 0, c.Stats().PendingWaiters)
}

func TestNotifyRead_ConcurrentWritersAndWaiters(t *testing.T) {
	c := New(memory.New(), Config{}, nil)

	const n = 64
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := testObjectID(byte(i))
			keys := []types.InputKey{types.VersionedObjectKey(id, 1)}
			errs[i] = c.NotifyReadInputObjects(context.Background(), keys, nil, 1)
		}(i)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.WriteObjectEntry(testObjectID(byte(i)), 1, types.NewObjectEntry([]byte("x")))
		}(i)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(waitTimeout):
		t.Fatal("concurrent waiters did not all resolve")
	}

	for i, err := range errs {
		require.NoError(t, err, "waiter %d", i)
	}
}

func TestNotifyRead_MixedKeyKindsResolveTogether(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	obj, pkg, recv := testObjectID(30), testObjectID(31), testObjectID(32)

	recvKey := types.VersionedObjectKey(recv, 2)
	keys := []types.InputKey{
		types.VersionedObjectKey(obj, 1),
		types.PackageKey(pkg),
		recvKey,
		types.VersionedObjectKey(obj, types.VersionCongested), // resolves at check time
	}
	receiving := map[types.InputKey]struct{}{recvKey: {}}

	done := notifyAsync(c, context.Background(), keys, receiving, 1)
	assertStillWaiting(t, done)

	c.WriteObjectEntry(obj, 1, types.NewObjectEntry([]byte("o")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(pkg, 1, types.NewPackageEntry([]byte("p")))
	assertStillWaiting(t, done)

	c.WriteObjectEntry(recv, 5, types.NewObjectEntry([]byte("r")))
	require.NoError(t, awaitResult(t, done))
}
