// Package store defines the storage contracts the commit engine and the
// migration orchestrator are built against (DataStore, DocumentStore,
// SnapshotStore, and the optional Recovery sibling of DataStore), plus a
// couple of concrete implementations: in-memory data, document and
// snapshot stores used throughout this module's own tests, and a resilient decorator that retries
// transient failures with exponential backoff.
//
// Concrete production drivers (a real blob store, Cosmos DB, and so on)
// are out of scope here — see store/couchdocstore for one example
// DocumentStore implementation, and backup/s3backup for the BackupProvider
// contract from the model package.
package store

import (
	"context"
	"fmt"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
)

// ErrOptimisticConflict is returned by DocumentStore.Set when the caller's
// document.Version does not match what is currently stored. It wraps
// faeserrors.ErrOptimisticConcurrency so callers can classify it generically
// without depending on a particular DocumentStore implementation.
var ErrOptimisticConflict = fmt.Errorf("document store: %w", faeserrors.ErrOptimisticConcurrency)

// DataStore appends events to a stream and reads them back. Implementations
// must reject Append when any event's EventVersion does not continue the
// document's current stream version contiguously.
type DataStore interface {
	Append(ctx context.Context, document *model.ObjectDocument, events []model.Event) error
	Read(ctx context.Context, document *model.ObjectDocument, startVersion int, untilVersion *int) ([]model.Event, error)
}

// Recovery is an optional sibling contract a DataStore may implement to
// support compensating cleanup after a failed commit. Implementations that
// don't support it simply don't implement the interface — the commit
// engine type-asserts for it.
type Recovery interface {
	RemoveEventsForFailedCommit(ctx context.Context, document *model.ObjectDocument, fromVersion, toVersion int) (int, error)
}

// Pinger is an optional contract a DataStore may implement to support the
// health-check surface (spec §6). It is deliberately independent of
// DataStore/Recovery so a driver can opt in without otherwise changing its
// shape.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentStore loads and persists ObjectDocuments under optimistic
// concurrency keyed by the document's opaque Version field.
type DocumentStore interface {
	Get(ctx context.Context, objectName, objectId string) (*model.ObjectDocument, error)
	Set(ctx context.Context, document *model.ObjectDocument) error
}

// Snapshot is an opaque, codec-specific folded aggregate state persisted by
// a SnapshotStore.
type Snapshot struct {
	UntilVersion int
	Name         string
	Data         []byte
}

// SnapshotStore persists and retrieves folded aggregate snapshots.
type SnapshotStore interface {
	Get(ctx context.Context, document *model.ObjectDocument, untilVersion int, name string) (*Snapshot, error)
	Set(ctx context.Context, snapshot Snapshot, document *model.ObjectDocument, untilVersion int, name string) error
}
