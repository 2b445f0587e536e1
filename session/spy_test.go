package session

import (
	"context"

	"github.com/libfaes/eventstream/model"
)

// SpyDataStore is a minimal DataStore + Recovery test double that records
// how it was called and can be made to fail Append and/or recovery on
// demand.
type SpyDataStore struct {
	AppendCalls int
	LastBatch   []model.Event

	AppendErr error

	RecoveryErr     error
	RecoveryRemoved int
}

// NewSpyDataStore creates a SpyDataStore with no injected failures.
func NewSpyDataStore() *SpyDataStore { return &SpyDataStore{} }

func (s *SpyDataStore) Append(_ context.Context, _ *model.ObjectDocument, events []model.Event) error {
	s.AppendCalls++
	s.LastBatch = events
	return s.AppendErr
}

func (s *SpyDataStore) Read(_ context.Context, _ *model.ObjectDocument, _ int, _ *int) ([]model.Event, error) {
	return nil, nil
}

func (s *SpyDataStore) RemoveEventsForFailedCommit(_ context.Context, _ *model.ObjectDocument, fromVersion, toVersion int) (int, error) {
	if s.RecoveryErr != nil {
		return 0, s.RecoveryErr
	}
	return s.RecoveryRemoved, nil
}
