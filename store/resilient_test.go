package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDataStore fails the first N Append calls with a transient error,
// then succeeds, recording how many attempts it saw.
type countingDataStore struct {
	DataStore
	failures int
	attempts int
}

func (c *countingDataStore) Append(ctx context.Context, document *model.ObjectDocument, events []model.Event) error {
	c.attempts++
	if c.attempts <= c.failures {
		return fmt.Errorf("transient blip: %w", faeserrors.ErrTransientStorage)
	}
	return c.DataStore.Append(ctx, document, events)
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		MaxAttempts:   5,
	}
}

func TestResilientDataStore_RetriesTransientFailures(t *testing.T) {
	inner := &countingDataStore{DataStore: NewMemoryDataStore(), failures: 2}
	resilient := NewResilientDataStore(inner, fastRetryConfig(), nil)
	ctx := context.Background()
	doc := newTestDocument("resilient-1")

	err := resilient.Append(ctx, doc, []model.Event{{EventVersion: 0}})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.attempts)
}

func TestResilientDataStore_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &countingDataStore{DataStore: NewMemoryDataStore(), failures: 100}
	resilient := NewResilientDataStore(inner, fastRetryConfig(), nil)
	ctx := context.Background()
	doc := newTestDocument("resilient-2")

	err := resilient.Append(ctx, doc, []model.Event{{EventVersion: 0}})
	assert.ErrorIs(t, err, faeserrors.ErrTransientStorage)
	assert.Equal(t, 5, inner.attempts)
}

func TestResilientDataStore_DoesNotRetryNonTransientErrors(t *testing.T) {
	inner := &countingDataStore{DataStore: NewMemoryDataStore()}
	resilient := NewResilientDataStore(inner, fastRetryConfig(), nil)
	ctx := context.Background()
	doc := newTestDocument("resilient-3")

	err := resilient.Append(ctx, doc, []model.Event{{EventVersion: 7}})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.attempts)
}

func TestResilientDataStore_RemoveEventsForFailedCommitNotImplemented(t *testing.T) {
	inner := &countingDataStore{DataStore: NewMemoryDataStore()}
	resilient := NewResilientDataStore(inner, fastRetryConfig(), nil)
	ctx := context.Background()
	doc := newTestDocument("resilient-4")

	_, err := resilient.RemoveEventsForFailedCommit(ctx, doc, 0, 1)
	assert.ErrorIs(t, err, faeserrors.ErrNotImplemented)
}

func TestResilientDataStore_PingDelegates(t *testing.T) {
	inner := NewMemoryDataStore()
	resilient := NewResilientDataStore(inner, fastRetryConfig(), nil)
	assert.NoError(t, resilient.Ping(context.Background()))
}
