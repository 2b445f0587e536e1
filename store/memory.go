package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/libfaes/eventstream/model"
)

// MemoryDataStore is an in-memory DataStore (and optional Recovery) keyed
// by stream identifier. It is the reference implementation used by this
// module's own tests, grounded on the same append-contiguity checks a real
// driver must enforce.
type MemoryDataStore struct {
	mu      sync.Mutex
	streams map[string][]model.Event

	// FailAppend, when non-nil, is returned by the next N calls to Append
	// for the named stream (N = FailAppendTimes, minimum 1) and then
	// cleared — a seam for commit-engine failure tests.
	FailAppend      map[string]error
	FailAppendTimes map[string]int
}

// NewMemoryDataStore creates an empty MemoryDataStore.
func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		streams:         make(map[string][]model.Event),
		FailAppend:      make(map[string]error),
		FailAppendTimes: make(map[string]int),
	}
}

// Append enforces contiguous EventVersion values relative to the stream's
// current length before recording events.
func (s *MemoryDataStore) Append(_ context.Context, document *model.ObjectDocument, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	streamID := document.Active.StreamIdentifier

	if err, ok := s.FailAppend[streamID]; ok && err != nil {
		s.FailAppendTimes[streamID]--
		if s.FailAppendTimes[streamID] <= 0 {
			delete(s.FailAppend, streamID)
			delete(s.FailAppendTimes, streamID)
		}
		return err
	}

	existing := s.streams[streamID]
	next := len(existing)
	for i, e := range events {
		if e.EventVersion != next+i {
			return fmt.Errorf("memory data store: non-contiguous append on %q: expected version %d, got %d",
				streamID, next+i, e.EventVersion)
		}
	}
	s.streams[streamID] = append(existing, events...)
	return nil
}

// Read returns events in [startVersion, untilVersion], or to the end of
// the stream when untilVersion is nil.
func (s *MemoryDataStore) Read(_ context.Context, document *model.ObjectDocument, startVersion int, untilVersion *int) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.streams[document.Active.StreamIdentifier]
	if all == nil {
		return []model.Event{}, nil
	}

	end := len(all)
	if untilVersion != nil && *untilVersion+1 < end {
		end = *untilVersion + 1
	}
	if startVersion >= end {
		return []model.Event{}, nil
	}
	out := make([]model.Event, end-startVersion)
	copy(out, all[startVersion:end])
	return out, nil
}

// RemoveEventsForFailedCommit implements Recovery by truncating the tail of
// the stream back to fromVersion-1, provided the tail actually matches
// [fromVersion, toVersion] (anything else indicates a bug upstream, and is
// reported rather than silently "fixed").
func (s *MemoryDataStore) RemoveEventsForFailedCommit(_ context.Context, document *model.ObjectDocument, fromVersion, toVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	streamID := document.Active.StreamIdentifier
	existing := s.streams[streamID]
	want := toVersion - fromVersion + 1
	if len(existing) < fromVersion || len(existing) != toVersion+1 {
		return 0, fmt.Errorf("memory data store: cannot recover [%d,%d] from stream %q of length %d",
			fromVersion, toVersion, streamID, len(existing))
	}
	s.streams[streamID] = existing[:fromVersion]
	return want, nil
}

// Ping implements Pinger and always succeeds — the in-memory store has
// nothing external to reach.
func (s *MemoryDataStore) Ping(_ context.Context) error { return nil }

// MemoryDocumentStore is an in-memory DocumentStore keyed by
// "objectName/objectId", enforcing optimistic concurrency on Set the same
// way a CouchDB-style _rev check would: the caller's Version must match
// the stored one, or the write is rejected.
type MemoryDocumentStore struct {
	mu       sync.Mutex
	docs     map[string]*model.ObjectDocument
	setCalls int
}

// NewMemoryDocumentStore creates an empty MemoryDocumentStore.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]*model.ObjectDocument)}
}

// SetCalls returns how many times Set has been called, for tests that
// assert on the commit engine's two-phase write pattern.
func (s *MemoryDocumentStore) SetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

func key(objectName, objectId string) string {
	return objectName + "/" + objectId
}

// Get returns a copy of the stored document, or nil if none exists yet.
func (s *MemoryDocumentStore) Get(_ context.Context, objectName, objectId string) (*model.ObjectDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key(objectName, objectId)]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

// Set persists document, assigning a fresh Version on first write and
// rejecting the write with ErrOptimisticConflict when document.Version
// does not match the stored one.
func (s *MemoryDocumentStore) Set(_ context.Context, document *model.ObjectDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++

	k := key(document.ObjectName, document.ObjectId)
	existing, ok := s.docs[k]
	if ok && existing.Version != document.Version {
		return fmt.Errorf("memory document store: %w: stored version %q does not match %q",
			ErrOptimisticConflict, existing.Version, document.Version)
	}

	cp := *document
	cp.Version = uuid.NewString()
	s.docs[k] = &cp
	document.Version = cp.Version
	return nil
}

// MemorySnapshotStore is an in-memory SnapshotStore keyed by
// stream/untilVersion/name.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
}

// NewMemorySnapshotStore creates an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string]Snapshot)}
}

func snapshotKey(streamID string, untilVersion int, name string) string {
	return fmt.Sprintf("%s@%d#%s", streamID, untilVersion, name)
}

// Get returns the persisted snapshot, or nil if none exists.
func (s *MemorySnapshotStore) Get(_ context.Context, document *model.ObjectDocument, untilVersion int, name string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[snapshotKey(document.Active.StreamIdentifier, untilVersion, name)]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// Set persists snapshot.
func (s *MemorySnapshotStore) Set(_ context.Context, snapshot Snapshot, document *model.ObjectDocument, untilVersion int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey(document.Active.StreamIdentifier, untilVersion, name)] = snapshot
	return nil
}
