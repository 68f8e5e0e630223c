package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/execgate/pkg/store/memory"
	"github.com/marmos91/execgate/pkg/types"
)

// installSpanRecorder routes spans into an in-memory exporter for the
// duration of the test.
func installSpanRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exporter
}

func findSpan(t *testing.T, exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStub {
	t.Helper()
	for _, stub := range exporter.GetSpans() {
		if stub.Name == name {
			return stub
		}
	}
	t.Fatalf("no span named %q recorded", name)
	return tracetest.SpanStub{}
}

func spanAttr(stub tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNotifyRead_RecordsSpan(t *testing.T) {
	exporter := installSpanRecorder(t)
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(30)

	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("ready")))

	keys := []types.InputKey{types.VersionedObjectKey(id, 1)}
	require.NoError(t, c.NotifyReadInputObjects(context.Background(), keys, nil, 4))

	stub := findSpan(t, exporter, "cache.notify_read")
	numKeys, ok := spanAttr(stub, "input.num_keys")
	require.True(t, ok)
	assert.Equal(t, int64(1), numKeys.AsInt64())
	epoch, ok := spanAttr(stub, "epoch")
	require.True(t, ok)
	assert.Equal(t, int64(4), epoch.AsInt64())
}

func TestCommit_RecordsSpanWithBatchSize(t *testing.T) {
	exporter := installSpanRecorder(t)
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(31)

	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("a")))
	c.WriteObjectEntry(id, 2, types.NewObjectEntry([]byte("b")))
	require.NoError(t, c.Commit(context.Background()))

	stub := findSpan(t, exporter, "cache.commit")
	size, ok := spanAttr(stub, "store.batch_size")
	require.True(t, ok)
	assert.Equal(t, int64(2), size.AsInt64())
}

func TestGetObject_RecordsSpanWithHit(t *testing.T) {
	exporter := installSpanRecorder(t)
	c := New(memory.New(), Config{}, nil)
	id := testObjectID(32)
	ctx := context.Background()

	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("cached")))
	_, found, err := c.GetObject(ctx, id, 1)
	require.NoError(t, err)
	require.True(t, found)

	stub := findSpan(t, exporter, "cache.read")
	hit, ok := spanAttr(stub, "cache.hit")
	require.True(t, ok)
	assert.True(t, hit.AsBool())

	exporter.Reset()
	_, found, err = c.GetObject(ctx, id, 99)
	require.NoError(t, err)
	require.False(t, found)

	stub = findSpan(t, exporter, "cache.read")
	hit, ok = spanAttr(stub, "cache.hit")
	require.True(t, ok)
	assert.False(t, hit.AsBool())
}
