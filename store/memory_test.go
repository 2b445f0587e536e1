package store

import (
	"context"
	"errors"
	"testing"

	"github.com/libfaes/eventstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(streamID string) *model.ObjectDocument {
	return &model.ObjectDocument{
		ObjectId:   "order-1",
		ObjectName: "order",
		Active: model.StreamInformation{
			StreamIdentifier: streamID,
		},
	}
}

func TestMemoryDataStore_AppendAndRead(t *testing.T) {
	ds := NewMemoryDataStore()
	ctx := context.Background()
	doc := newTestDocument("order-1")

	err := ds.Append(ctx, doc, []model.Event{
		{EventType: "OrderPlaced", EventVersion: 0, Payload: []byte(`{}`)},
		{EventType: "OrderShipped", EventVersion: 1, Payload: []byte(`{}`)},
	})
	require.NoError(t, err)

	events, err := ds.Read(ctx, doc, 0, nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "OrderPlaced", events[0].EventType)
}

func TestMemoryDataStore_RejectsNonContiguousAppend(t *testing.T) {
	ds := NewMemoryDataStore()
	ctx := context.Background()
	doc := newTestDocument("order-2")

	err := ds.Append(ctx, doc, []model.Event{{EventType: "X", EventVersion: 1}})
	assert.Error(t, err)
}

func TestMemoryDataStore_ReadRange(t *testing.T) {
	ds := NewMemoryDataStore()
	ctx := context.Background()
	doc := newTestDocument("order-3")

	require.NoError(t, ds.Append(ctx, doc, []model.Event{
		{EventVersion: 0}, {EventVersion: 1}, {EventVersion: 2},
	}))

	until := 1
	events, err := ds.Read(ctx, doc, 0, &until)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMemoryDataStore_RemoveEventsForFailedCommit(t *testing.T) {
	ds := NewMemoryDataStore()
	ctx := context.Background()
	doc := newTestDocument("order-4")

	require.NoError(t, ds.Append(ctx, doc, []model.Event{{EventVersion: 0}}))
	require.NoError(t, ds.Append(ctx, doc, []model.Event{{EventVersion: 1}, {EventVersion: 2}}))

	removed, err := ds.RemoveEventsForFailedCommit(ctx, doc, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	events, err := ds.Read(ctx, doc, 0, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryDataStore_FailAppendInjection(t *testing.T) {
	ds := NewMemoryDataStore()
	ctx := context.Background()
	doc := newTestDocument("order-5")

	boom := errors.New("boom")
	ds.FailAppend["order-5"] = boom
	ds.FailAppendTimes["order-5"] = 1

	err := ds.Append(ctx, doc, []model.Event{{EventVersion: 0}})
	assert.ErrorIs(t, err, boom)

	// Second attempt should succeed since the injected failure is consumed.
	err = ds.Append(ctx, doc, []model.Event{{EventVersion: 0}})
	assert.NoError(t, err)
}

func TestMemoryDocumentStore_SetAssignsVersionOnFirstWrite(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()
	doc := newTestDocument("order-6")

	require.NoError(t, store.Set(ctx, doc))
	assert.NotEmpty(t, doc.Version)

	fetched, err := store.Get(ctx, "order", "order-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, doc.Version, fetched.Version)
}

func TestMemoryDocumentStore_RejectsStaleVersion(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()
	doc := newTestDocument("order-7")

	require.NoError(t, store.Set(ctx, doc))
	stale := *doc
	stale.Version = "stale-version"

	err := store.Set(ctx, &stale)
	assert.ErrorIs(t, err, ErrOptimisticConflict)
}

func TestMemorySnapshotStore_SetAndGet(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()
	doc := newTestDocument("order-8")

	err := store.Set(ctx, Snapshot{UntilVersion: 5, Name: "order-v1", Data: []byte("payload")}, doc, 5, "order-v1")
	require.NoError(t, err)

	snap, err := store.Get(ctx, doc, 5, "order-v1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, []byte("payload"), snap.Data)
}

func TestMemorySnapshotStore_GetMissingReturnsNil(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()
	doc := newTestDocument("order-9")

	snap, err := store.Get(ctx, doc, 5, "unknown")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
