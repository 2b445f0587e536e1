package migration

import (
	"context"
	"testing"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkRunner_MigratesEveryItem(t *testing.T) {
	sourceDataStore := store.NewMemoryDataStore()
	sourceDocStore := store.NewMemoryDocumentStore()
	targetDataStore := store.NewMemoryDataStore()

	doc1 := &model.ObjectDocument{ObjectId: "1", ObjectName: "order", Active: model.StreamInformation{
		StreamIdentifier: "order-1", DataStore: "source", DocumentStore: "source", CurrentStreamVersion: -1,
	}}
	doc2 := &model.ObjectDocument{ObjectId: "2", ObjectName: "order", Active: model.StreamInformation{
		StreamIdentifier: "order-2", DataStore: "source", DocumentStore: "source", CurrentStreamVersion: -1,
	}}
	for _, doc := range []*model.ObjectDocument{doc1, doc2} {
		require.NoError(t, sourceDocStore.Set(context.Background(), doc))
		require.NoError(t, sourceDataStore.Append(context.Background(), doc, []model.Event{{EventType: "OrderPlaced", EventVersion: 0}}))
		doc.Active.CurrentStreamVersion = 0
		require.NoError(t, sourceDocStore.Set(context.Background(), doc))
	}

	resolver := NewStaticResolver(
		map[string]store.DataStore{"source": sourceDataStore, "target": targetDataStore},
		map[string]store.DocumentStore{"source": sourceDocStore},
	)

	runner, err := NewBulkMigrationBuilder([]BulkItem{
		{SourceDocument: doc1, SourceStreamIdentifier: "order-1"},
		{SourceDocument: doc2, SourceStreamIdentifier: "order-2"},
	}).
		CopyToNewStreams(func(id string) string { return id + "-v2" }).
		WithTemplate(func(b *Builder) *Builder {
			return b.WithTransformer(passthroughTransformer{}).WithDataStore("target").WithDocumentStore("source")
		}).
		Build()
	require.NoError(t, err)

	result := runner.Run(context.Background(), resolver, nil, nil)

	require.Len(t, result.Results, 2)
	assert.Empty(t, result.Failures)
	for _, r := range result.Results {
		assert.True(t, r.Success)
	}
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Empty(t, result.ErrorMessage)
	assert.NoError(t, result.Exception)
}

func TestBulkRunner_SummarizesFailuresIntoStatusAndMessage(t *testing.T) {
	badDoc1 := &model.ObjectDocument{ObjectId: "bad-1", Active: model.StreamInformation{StreamIdentifier: "same-1"}}
	badDoc2 := &model.ObjectDocument{ObjectId: "bad-2", Active: model.StreamInformation{StreamIdentifier: "same-2"}}
	runner, err := NewBulkMigrationBuilder([]BulkItem{
		{SourceDocument: badDoc1, SourceStreamIdentifier: "same-1"},
		{SourceDocument: badDoc2, SourceStreamIdentifier: "same-2"},
	}).
		CopyToNewStreams(func(id string) string { return id }). // same as source: builder rejects both
		WithBulkProgress(func(p BulkMigrationProgress) {}).
		Build()
	require.NoError(t, err)

	result := runner.Run(context.Background(), NewStaticResolver(nil, nil), nil, nil)
	assert.Equal(t, model.StatusFailed, result.Status)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.ErrorMessage, "2 failure(s)")
	assert.Error(t, result.Exception)
}

func TestBulkMigrationBuilder_RequiresTargetNamer(t *testing.T) {
	_, err := NewBulkMigrationBuilder(nil).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrValidation)
}

func TestBulkMigrationBuilder_RejectsLiveMigration(t *testing.T) {
	_, err := NewBulkMigrationBuilder(nil).
		CopyToNewStreams(func(id string) string { return id }).
		WithLiveMigration(true).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrNotImplemented)
}

func TestBulkRunner_ReportsBuildFailuresWithoutRunningThem(t *testing.T) {
	badDoc := &model.ObjectDocument{Active: model.StreamInformation{StreamIdentifier: "same"}}
	runner, err := NewBulkMigrationBuilder([]BulkItem{
		{SourceDocument: badDoc, SourceStreamIdentifier: "same"},
	}).
		CopyToNewStreams(func(id string) string { return id }). // same as source: builder rejects it
		Build()
	require.NoError(t, err)

	result := runner.Run(context.Background(), NewStaticResolver(nil, nil), nil, nil)
	assert.Empty(t, result.Results)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "same", result.Failures[0].SourceStreamIdentifier)
}
