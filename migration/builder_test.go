package migration

import (
	"testing"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSourceDocument() *model.ObjectDocument {
	return &model.ObjectDocument{
		ObjectId:   "1",
		ObjectName: "order",
		Active: model.StreamInformation{
			StreamIdentifier:     "order-1",
			DataStore:            "primary",
			DocumentStore:        "primary",
			CurrentStreamVersion: 4,
		},
	}
}

func TestBuilder_HappyPath(t *testing.T) {
	built, err := NewBuilder(testSourceDocument(), "order-1").
		CopyToNewStream("order-1-v2").
		WithDataStore("primary").
		WithDocumentStore("primary").
		Build()

	require.NoError(t, err)
	assert.Equal(t, "order-1", built.Context.SourceStreamIdentifier)
	assert.Equal(t, "order-1-v2", built.Context.TargetStreamIdentifier)
	assert.Equal(t, model.StrategyCopyAndTransform, built.Context.Strategy)
	assert.NotEmpty(t, built.Context.MigrationId)
	assert.False(t, built.Context.StartedAt.IsZero())
}

func TestBuilder_RequiresSourceDocumentAndStreamIdentifier(t *testing.T) {
	_, err := NewBuilder(nil, "").CopyToNewStream("target").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrValidation)
}

func TestBuilder_RequiresTargetStreamIdentifier(t *testing.T) {
	_, err := NewBuilder(testSourceDocument(), "order-1").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrValidation)
}

func TestBuilder_RejectsSameSourceAndTarget(t *testing.T) {
	_, err := NewBuilder(testSourceDocument(), "order-1").CopyToNewStream("order-1").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrValidation)
}

func TestBuilder_RejectsUnimplementedStrategy(t *testing.T) {
	_, err := NewBuilder(testSourceDocument(), "order-1").
		CopyToNewStream("order-1-v2").
		WithStrategy(model.StrategyLazyTransform).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, faeserrors.ErrNotImplemented)
}

func TestBuilder_FromDryRunPlanIsCarriedThrough(t *testing.T) {
	plan := &MigrationPlan{IsFeasible: true}
	built, err := NewBuilder(testSourceDocument(), "order-1").
		CopyToNewStream("order-1-v2").
		FromDryRunPlan(plan).
		Build()
	require.NoError(t, err)
	assert.Same(t, plan, built.SeedPlan)
}
