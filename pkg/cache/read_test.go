package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/execgate/pkg/store"
	"github.com/marmos91/execgate/pkg/store/memory"
	"github.com/marmos91/execgate/pkg/types"
)

func TestGetObject_MissReturnsNotFound(t *testing.T) {
	c := New(memory.New(), Config{}, nil)

	_, found, err := c.GetObject(context.Background(), testObjectID(1), 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetObject_ReadThroughToStore(t *testing.T) {
	s := memory.New()
	id := testObjectID(2)
	ctx := context.Background()
	require.NoError(t, s.WriteBatch(ctx, store.Batch{
		Objects: []store.ObjectRecord{
			{ID: id, Version: 3, Entry: types.NewObjectEntry([]byte("durable"))},
		},
	}))

	c := New(s, Config{}, nil)
	entry, found, err := c.GetObject(ctx, id, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("durable"), entry.Content)
}

func TestGetLatestObject_PrefersMemory(t *testing.T) {
	s := memory.New()
	id := testObjectID(3)
	ctx := context.Background()
	require.NoError(t, s.WriteBatch(ctx, store.Batch{
		Objects: []store.ObjectRecord{
			{ID: id, Version: 1, Entry: types.NewObjectEntry([]byte("old"))},
		},
	}))

	c := New(s, Config{}, nil)
	c.WriteObjectEntry(id, 2, types.NewObjectEntry([]byte("new")))

	latest, found, err := c.GetLatestObject(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.Version(2), latest.Version)
	assert.Equal(t, []byte("new"), latest.Entry.Content)
}

func TestGetLatestObject_FallsBackToStoreAfterEviction(t *testing.T) {
	c := New(memory.New(), Config{MaxCachedVersionsPerObject: 1}, nil)
	id := testObjectID(4)
	ctx := context.Background()

	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("v1")))
	c.WriteObjectEntry(id, 2, types.NewObjectEntry([]byte("v2")))
	require.NoError(t, c.Commit(ctx))

	latest, found, err := c.GetLatestObject(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.Version(2), latest.Version)
}

func TestPackageExists(t *testing.T) {
	c := New(memory.New(), Config{}, nil)
	ctx := context.Background()

	t.Run("system packages always exist", func(t *testing.T) {
		for _, id := range types.SystemPackageIDs() {
			found, err := c.PackageExists(ctx, id)
			require.NoError(t, err)
			assert.True(t, found, "system package %s", id.Short())
		}
	})

	t.Run("unknown package does not exist", func(t *testing.T) {
		found, err := c.PackageExists(ctx, testObjectID(5))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("published package exists", func(t *testing.T) {
		id := testObjectID(6)
		c.WriteObjectEntry(id, 1, types.NewPackageEntry([]byte("bytecode")))
		found, err := c.PackageExists(ctx, id)
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestGetMarker_ReadThroughToStore(t *testing.T) {
	s := memory.New()
	id := testObjectID(7)
	ctx := context.Background()
	var digest types.TransactionDigest
	digest[0] = 0x42
	require.NoError(t, s.WriteBatch(ctx, store.Batch{
		Markers: []store.MarkerRecord{
			{Epoch: 5, ID: id, Version: 2, Marker: types.ConsensusStreamEnded(digest)},
		},
	}))

	c := New(s, Config{}, nil)
	marker, found, err := c.GetMarker(ctx, 5, id, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, digest, marker.TxDigest)

	_, found, err = c.GetMarker(ctx, 4, id, 2)
	require.NoError(t, err)
	assert.False(t, found)
}
