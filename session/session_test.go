package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	OrderID string `json:"orderId"`
}

type jsonCodec struct{}

func (jsonCodec) Marshal(payload any) ([]byte, error) { return json.Marshal(payload) }
func (jsonCodec) Unmarshal(data []byte, _ int) (any, error) {
	var v orderPlaced
	err := json.Unmarshal(data, &v)
	return v, err
}

func newTestRegistry(t *testing.T) *eventtype.Registry {
	t.Helper()
	reg := eventtype.New()
	require.NoError(t, reg.Add(orderPlaced{}, "OrderPlaced", 1, jsonCodec{}))
	return reg
}

func newTestSession(t *testing.T, document *model.ObjectDocument, dataStore store.DataStore, documentStore store.DocumentStore) *LeasedSession {
	t.Helper()
	return New(document, dataStore, documentStore, newTestRegistry(t), Hooks{}, nil)
}

func seedDocument(streamID string, currentVersion int) *model.ObjectDocument {
	doc := &model.ObjectDocument{
		ObjectId:   "order-1",
		ObjectName: "order",
		Active: model.StreamInformation{
			StreamIdentifier:     streamID,
			CurrentStreamVersion: currentVersion,
		},
	}
	return doc
}

func TestLeasedSession_CommitHappyPath(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-1", 5)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))

	dataStore := NewSpyDataStore()
	s := newTestSession(t, doc, dataStore, docStore)

	require.NoError(t, s.Append(orderPlaced{OrderID: "a"}))
	require.NoError(t, s.Append(orderPlaced{OrderID: "b"}))

	require.NoError(t, s.Commit(ctx))

	assert.Equal(t, 7, doc.Active.CurrentStreamVersion)
	assert.Equal(t, 0, s.BufferedCount())
	assert.Equal(t, 1, dataStore.AppendCalls)
	assert.Len(t, dataStore.LastBatch, 2)
	assert.Equal(t, 6, dataStore.LastBatch[0].EventVersion)
	assert.Equal(t, 7, dataStore.LastBatch[1].EventVersion)
}

func TestLeasedSession_CommitWithNothingBufferedIsNoOp(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-2", 3)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))
	dataStore := NewSpyDataStore()
	s := newTestSession(t, doc, dataStore, docStore)

	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 0, dataStore.AppendCalls)
	assert.Equal(t, 3, doc.Active.CurrentStreamVersion)
}

func TestLeasedSession_PhaseAFailureRestoresVersionAndBuffer(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-3", 5)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))
	doc.Version = "stale-on-purpose"

	dataStore := NewSpyDataStore()
	s := newTestSession(t, doc, dataStore, docStore)
	require.NoError(t, s.Append(orderPlaced{OrderID: "a"}))

	err := s.Commit(ctx)
	require.Error(t, err)
	var commitErr *faeserrors.CommitFailedError
	require.ErrorAs(t, err, &commitErr)
	assert.False(t, commitErr.EventsMayBeWritten)
	assert.Equal(t, 5, doc.Active.CurrentStreamVersion)
	assert.Equal(t, 0, dataStore.AppendCalls)
	assert.Equal(t, 1, s.BufferedCount())
}

func TestLeasedSession_PhaseBFailureWithSuccessfulCleanup(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-4", 10)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))

	dataStore := NewSpyDataStore()
	dataStore.AppendErr = errors.New("timeout talking to data store")
	dataStore.RecoveryRemoved = 5

	s := newTestSession(t, doc, dataStore, docStore)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(orderPlaced{OrderID: "x"}))
	}

	err := s.Commit(ctx)
	require.Error(t, err)
	var commitErr *faeserrors.CommitFailedError
	require.ErrorAs(t, err, &commitErr)
	assert.False(t, commitErr.EventsMayBeWritten)

	assert.Equal(t, 10, doc.Active.CurrentStreamVersion)
	assert.False(t, doc.Active.IsBroken)
	require.Len(t, doc.Active.RollbackHistory, 1)
	assert.Equal(t, 11, doc.Active.RollbackHistory[0].FromVersion)
	assert.Equal(t, 15, doc.Active.RollbackHistory[0].ToVersion)
	assert.Equal(t, 5, doc.Active.RollbackHistory[0].EventsRemoved)
	assert.Equal(t, 5, s.BufferedCount())
}

func TestLeasedSession_PhaseBFailureWithFailedCleanupMarksBroken(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-5", 10)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))

	dataStore := NewSpyDataStore()
	dataStore.AppendErr = errors.New("timeout talking to data store")
	dataStore.RecoveryErr = errors.New("recovery also timed out")

	s := newTestSession(t, doc, dataStore, docStore)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(orderPlaced{OrderID: "x"}))
	}

	setCallsBeforeCommit := docStore.SetCalls()
	err := s.Commit(ctx)
	require.Error(t, err)
	var cleanupErr *faeserrors.CommitCleanupFailedError
	require.ErrorAs(t, err, &cleanupErr)

	assert.True(t, doc.Active.IsBroken)
	require.NotNil(t, doc.Active.BrokenInfo)
	assert.Equal(t, 11, doc.Active.BrokenInfo.OrphanedFromVersion)
	assert.Equal(t, 15, doc.Active.BrokenInfo.OrphanedToVersion)
	assert.Equal(t, 10, doc.Active.CurrentStreamVersion)
	assert.Equal(t, 2, docStore.SetCalls()-setCallsBeforeCommit)

	// Once broken, further Append/Commit is refused.
	assert.ErrorIs(t, s.Append(orderPlaced{OrderID: "y"}), faeserrors.ErrStreamBroken)
	assert.ErrorIs(t, s.Commit(ctx), faeserrors.ErrStreamBroken)
}

func TestLeasedSession_AppendRejectsNilPayload(t *testing.T) {
	doc := seedDocument("order-6", 0)
	s := newTestSession(t, doc, NewSpyDataStore(), store.NewMemoryDocumentStore())
	err := s.Append(nil)
	assert.ErrorIs(t, err, faeserrors.ErrValidation)
}

func TestLeasedSession_ChunkedCommitFiresChunkClosedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-7", -1)
	doc.Active.ChunkSettings = model.ChunkSettings{EnableChunks: true, ChunkSize: 2}
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))

	dataStore := NewSpyDataStore()
	var closedChunks []model.StreamChunk
	hooks := Hooks{ChunkClosed: []ChunkClosedHook{
		func(_ *model.ObjectDocument, chunk model.StreamChunk) { closedChunks = append(closedChunks, chunk) },
	}}
	s := New(doc, dataStore, docStore, newTestRegistry(t), hooks, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(orderPlaced{OrderID: "x"}))
	}
	require.NoError(t, s.Commit(ctx))

	require.Len(t, closedChunks, 1)
	assert.Equal(t, 0, closedChunks[0].ChunkIdentifier)
	require.Len(t, doc.Active.StreamChunks, 2)
	assert.Equal(t, 2, dataStore.AppendCalls)
}

func TestLeasedSession_PostCommitHookObservesCommittedEvents(t *testing.T) {
	ctx := context.Background()
	doc := seedDocument("order-8", -1)
	docStore := store.NewMemoryDocumentStore()
	require.NoError(t, docStore.Set(ctx, doc))

	var seen []model.Event
	hooks := Hooks{PostCommit: []PostCommitHook{
		func(_ *model.ObjectDocument, committed []model.Event) { seen = committed },
	}}
	s := New(doc, NewSpyDataStore(), docStore, newTestRegistry(t), hooks, nil)
	require.NoError(t, s.Append(orderPlaced{OrderID: "a"}))
	require.NoError(t, s.Commit(ctx))

	assert.Len(t, seen, 1)
}

func TestLeasedSession_PreAppendHookTransformsPayload(t *testing.T) {
	doc := seedDocument("order-9", -1)
	var captured orderPlaced
	hooks := Hooks{PreAppend: []PreAppendHook{
		func(payload any, _ EventDraft, _ *model.ObjectDocument) (func() any, error) {
			op := payload.(orderPlaced)
			op.OrderID = op.OrderID + "-stamped"
			return func() any { return op }, nil
		},
	}}
	s := New(doc, NewSpyDataStore(), store.NewMemoryDocumentStore(), newTestRegistry(t), hooks, nil)
	require.NoError(t, s.Append(orderPlaced{OrderID: "a"}))

	require.NoError(t, json.Unmarshal(s.buffer[0].Payload, &captured))
	assert.Equal(t, "a-stamped", captured.OrderID)
}
