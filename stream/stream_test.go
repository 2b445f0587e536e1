package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/session"
	"github.com/libfaes/eventstream/store"
	"github.com/libfaes/eventstream/upcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlacedV1 struct {
	OrderID string `json:"orderId"`
}

type orderPlacedV2 struct {
	OrderID  string `json:"orderId"`
	Currency string `json:"currency"`
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Marshal(payload any) ([]byte, error) { return json.Marshal(payload) }
func (jsonCodec[T]) Unmarshal(data []byte, _ int) (any, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func newUpcastingStream(t *testing.T, document *model.ObjectDocument, dataStore store.DataStore) *EventStream {
	t.Helper()
	eventTypes := eventtype.New()
	require.NoError(t, eventTypes.Add(orderPlacedV1{}, "OrderPlaced", 1, jsonCodec[orderPlacedV1]{}))
	require.NoError(t, eventTypes.Add(orderPlacedV2{}, "OrderPlaced", 2, jsonCodec[orderPlacedV2]{}))
	eventTypes.Freeze()

	upcasters := upcast.New()
	require.NoError(t, upcasters.Add("OrderPlaced", 1, 2, func(payload any) (any, error) {
		v1 := payload.(orderPlacedV1)
		return orderPlacedV2{OrderID: v1.OrderID, Currency: "USD"}, nil
	}))
	upcasters.Freeze()

	return New(document, dataStore, store.NewMemoryDocumentStore(), store.NewMemorySnapshotStore(), eventTypes, upcasters, session.Hooks{}, nil)
}

func TestEventStream_SessionEnforcesNewConstraint(t *testing.T) {
	doc := &model.ObjectDocument{ObjectId: "1", ObjectName: "order", Active: model.StreamInformation{CurrentStreamVersion: 3}}
	es := New(doc, store.NewMemoryDataStore(), store.NewMemoryDocumentStore(), nil, eventtype.New(), nil, session.Hooks{}, nil)

	err := es.Session(ConstraintNew, func(*session.LeasedSession) error { return nil })
	require.Error(t, err)
	var constraintErr *faeserrors.ConstraintError
	assert.ErrorAs(t, err, &constraintErr)
}

func TestEventStream_SessionEnforcesExistingConstraint(t *testing.T) {
	doc := &model.ObjectDocument{ObjectId: "1", ObjectName: "order", Active: model.StreamInformation{CurrentStreamVersion: -1}}
	es := New(doc, store.NewMemoryDataStore(), store.NewMemoryDocumentStore(), nil, eventtype.New(), nil, session.Hooks{}, nil)

	err := es.Session(ConstraintExisting, func(*session.LeasedSession) error { return nil })
	require.Error(t, err)
}

func TestEventStream_ReadAsyncUpcastsToLatestSchemaVersion(t *testing.T) {
	ctx := context.Background()
	doc := &model.ObjectDocument{
		ObjectId: "1", ObjectName: "order",
		Active: model.StreamInformation{StreamIdentifier: "order-1", CurrentStreamVersion: -1},
	}
	dataStore := store.NewMemoryDataStore()
	es := newUpcastingStream(t, doc, dataStore)

	v1Payload, err := json.Marshal(orderPlacedV1{OrderID: "a"})
	require.NoError(t, err)
	require.NoError(t, dataStore.Append(ctx, doc, []model.Event{
		{EventType: "OrderPlaced", EventVersion: 0, SchemaVersion: 1, Payload: v1Payload},
	}))

	events, err := es.ReadAsync(ctx, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].SchemaVersion)

	var v2 orderPlacedV2
	require.NoError(t, json.Unmarshal(events[0].Payload, &v2))
	assert.Equal(t, "USD", v2.Currency)
}

func TestEventStream_ReadAsyncSortsByExternalSequencer(t *testing.T) {
	ctx := context.Background()
	doc := &model.ObjectDocument{
		ObjectId: "1", ObjectName: "order",
		Active: model.StreamInformation{StreamIdentifier: "order-2", CurrentStreamVersion: -1},
	}
	dataStore := store.NewMemoryDataStore()
	es := New(doc, dataStore, store.NewMemoryDocumentStore(), nil, eventtype.New(), nil, session.Hooks{}, nil)

	require.NoError(t, dataStore.Append(ctx, doc, []model.Event{
		{EventVersion: 0, ExternalSequencer: "b"},
		{EventVersion: 1, ExternalSequencer: "a"},
	}))

	events, err := es.ReadAsync(ctx, true)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ExternalSequencer)
	assert.Equal(t, "b", events[1].ExternalSequencer)
}

type orderTotal struct {
	Count int `json:"count"`
}

type orderTotalCodec struct{}

func (orderTotalCodec) Marshal(v orderTotal) ([]byte, error)     { return json.Marshal(v) }
func (orderTotalCodec) Unmarshal(data []byte) (orderTotal, error) {
	var v orderTotal
	err := json.Unmarshal(data, &v)
	return v, err
}

func TestSnapshot_FoldsAndPersists(t *testing.T) {
	ctx := context.Background()
	doc := &model.ObjectDocument{
		ObjectId: "1", ObjectName: "order",
		Active: model.StreamInformation{StreamIdentifier: "order-3", CurrentStreamVersion: -1},
	}
	dataStore := store.NewMemoryDataStore()
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))
	snapStore := store.NewMemorySnapshotStore()
	es := New(doc, dataStore, docStore, snapStore, eventtype.New(), nil, session.Hooks{}, nil)

	require.NoError(t, dataStore.Append(ctx, doc, []model.Event{{EventVersion: 0}, {EventVersion: 1}, {EventVersion: 2}}))

	total, err := Snapshot[orderTotal](ctx, es, 2, "order-total", orderTotal{}, func(acc orderTotal, _ model.Event) orderTotal {
		acc.Count++
		return acc
	}, orderTotalCodec{})
	require.NoError(t, err)
	assert.Equal(t, 3, total.Count)

	require.Len(t, doc.Active.SnapShots, 1)
	assert.Equal(t, "order-total", doc.Active.SnapShots[0].Name)

	persisted, err := snapStore.Get(ctx, doc, 2, "order-total")
	require.NoError(t, err)
	require.NotNil(t, persisted)
}

func TestSnapshot_FailsWhenCodecNil(t *testing.T) {
	doc := &model.ObjectDocument{ObjectId: "1", ObjectName: "order"}
	es := New(doc, store.NewMemoryDataStore(), store.NewMemoryDocumentStore(), nil, eventtype.New(), nil, session.Hooks{}, nil)

	_, err := Snapshot[orderTotal](context.Background(), es, 0, "x", orderTotal{}, func(a orderTotal, _ model.Event) orderTotal { return a }, nil)
	assert.ErrorIs(t, err, faeserrors.ErrSnapshotTypeNotSet)
}
