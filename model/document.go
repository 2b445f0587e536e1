// Package model defines the persisted data structures shared by the commit
// engine and the migration orchestrator: object documents, stream
// information, events, and the records that accumulate on a stream's
// history (rollbacks, broken-stream markers, terminated streams).
//
// None of these types know how to persist themselves — that is the job of
// the store package's DataStore/DocumentStore contracts. This package only
// carries the shape and the invariants documented on each field.
package model

import "time"

// ObjectDocument is the identity record for one aggregate instance. It
// names the stream currently receiving writes (Active) and keeps a record
// of every stream that used to be active before a migration or rollover
// closed it (TerminatedStreams, oldest first).
//
// Invariant: Active.StreamIdentifier is unique across the set formed by
// Active and every entry of TerminatedStreams. Callers must not construct
// an ObjectDocument that violates this without going through a migration
// cutover, which is the only operation allowed to retire a stream.
type ObjectDocument struct {
	ObjectId          string             `json:"objectId"`
	ObjectName        string             `json:"objectName"`
	Active            StreamInformation  `json:"active"`
	TerminatedStreams []TerminatedStream `json:"terminatedStreams,omitempty"`

	// Version is the opaque optimistic-concurrency token handed back by the
	// document store on Get and required (unchanged) on the next Set. It is
	// never interpreted by this package — only compared by the store.
	Version string `json:"-"`
}

// IsStreamTerminated reports whether streamIdentifier names one of the
// document's terminated streams.
func (d *ObjectDocument) IsStreamTerminated(streamIdentifier string) bool {
	for _, t := range d.TerminatedStreams {
		if t.StreamIdentifier == streamIdentifier {
			return true
		}
	}
	return false
}

// TerminatedStreamByIdentifier returns a pointer into TerminatedStreams so
// callers (book-closing, in particular) can mutate it in place. Returns nil
// when no terminated stream matches.
func (d *ObjectDocument) TerminatedStreamByIdentifier(streamIdentifier string) *TerminatedStream {
	for i := range d.TerminatedStreams {
		if d.TerminatedStreams[i].StreamIdentifier == streamIdentifier {
			return &d.TerminatedStreams[i]
		}
	}
	return nil
}

// ChunkSettings controls whether a stream's events are partitioned into
// fixed-capacity chunks for physical storage locality.
type ChunkSettings struct {
	EnableChunks bool `json:"enableChunks"`
	ChunkSize    int  `json:"chunkSize"`
}

// StreamChunk is one dense, contiguous partition of a stream's event
// version space. Chunks are ordered by ChunkIdentifier, and
// StreamChunk[i].LastEventVersion+1 must equal StreamChunk[i+1].FirstEventVersion.
type StreamChunk struct {
	ChunkIdentifier   int `json:"chunkIdentifier"`
	FirstEventVersion int `json:"firstEventVersion"`
	LastEventVersion  int `json:"lastEventVersion"`
}

// Len returns the number of events currently recorded in the chunk.
func (c StreamChunk) Len() int {
	return c.LastEventVersion - c.FirstEventVersion + 1
}

// StreamSnapShot records that an aggregate fold up to UntilVersion was
// persisted to the snapshot store under the given Name (or the default
// name when Name is empty).
type StreamSnapShot struct {
	UntilVersion int    `json:"untilVersion"`
	Name         string `json:"name,omitempty"`
}

// RollbackRecord is appended to a stream whenever a failed commit's
// orphaned events were successfully removed from the data store. It exists
// purely for audit and support — the runtime never reads it back to make a
// decision.
type RollbackRecord struct {
	RolledBackAt           time.Time `json:"rolledBackAt"`
	FromVersion             int       `json:"fromVersion"`
	ToVersion               int       `json:"toVersion"`
	EventsRemoved           int       `json:"eventsRemoved"`
	OriginalError           string    `json:"originalError"`
	OriginalExceptionType   string    `json:"originalExceptionType"`
}

// BrokenStreamInfo is populated the moment a stream is marked broken: its
// compensating cleanup after a failed commit also failed, leaving orphaned
// events in the data store that the document does not account for.
type BrokenStreamInfo struct {
	BrokenAt             time.Time `json:"brokenAt"`
	OrphanedFromVersion  int       `json:"orphanedFromVersion"`
	OrphanedToVersion    int       `json:"orphanedToVersion"`
	ErrorMessage         string    `json:"errorMessage"`
	OriginalExceptionType string   `json:"originalExceptionType"`
	CleanupExceptionType string    `json:"cleanupExceptionType"`
}

// TerminationReason enumerates why a stream stopped receiving writes.
type TerminationReason string

const (
	TerminationMigration TerminationReason = "Migration"
	TerminationSizeLimit TerminationReason = "SizeLimit"
	TerminationArchival  TerminationReason = "Archival"
	TerminationManual    TerminationReason = "Manual"
)

// TerminatedStream is the closure record for a stream that is no longer
// active: it names the stream that continues it (when termination was a
// migration) and the reason and moment of closure.
type TerminatedStream struct {
	StreamIdentifier         string             `json:"streamIdentifier"`
	ContinuationStreamId     string             `json:"continuationStreamId,omitempty"`
	ContinuationStreamType   string             `json:"continuationStreamType,omitempty"`
	ContinuationDataStore    string             `json:"continuationDataStore,omitempty"`
	ContinuationDocumentStore string            `json:"continuationDocumentStore,omitempty"`
	Reason                   TerminationReason  `json:"reason"`
	ClosedAt                 time.Time          `json:"closedAt"`
	MigrationId              string             `json:"migrationId,omitempty"`
	LastBusinessEventVersion int                `json:"lastBusinessEventVersion"`
	Metadata                 map[string]string  `json:"metadata,omitempty"`
	Deleted                  bool               `json:"deleted"`
}

// StreamInformation describes one append-only stream belonging to an
// object: where it lives (StreamType/DataStore/DocumentStore route to a
// storage driver by logical name), how far it has been written
// (CurrentStreamVersion), how it is chunked, and what has gone wrong with
// it, if anything.
//
// CurrentStreamVersion of -1 means the stream has never had an event
// appended to it; 0 means exactly one event (version 0) has been
// committed.
type StreamInformation struct {
	StreamIdentifier string `json:"streamIdentifier"`
	StreamType       string `json:"streamType"`
	DataStore        string `json:"dataStore"`
	DocumentStore    string `json:"documentStore"`

	CurrentStreamVersion int `json:"currentStreamVersion"`

	ChunkSettings ChunkSettings `json:"chunkSettings"`
	StreamChunks  []StreamChunk `json:"streamChunks,omitempty"`

	SnapShots []StreamSnapShot `json:"snapShots,omitempty"`

	RollbackHistory []RollbackRecord `json:"rollbackHistory,omitempty"`

	IsBroken   bool              `json:"isBroken"`
	BrokenInfo *BrokenStreamInfo `json:"brokenInfo,omitempty"`
}

// IsNew reports whether the stream has never received an event.
func (s StreamInformation) IsNew() bool {
	return s.CurrentStreamVersion < 0
}

// LastChunk returns a pointer to the tail chunk, or nil when the stream has
// no chunks yet.
func (s *StreamInformation) LastChunk() *StreamChunk {
	if len(s.StreamChunks) == 0 {
		return nil
	}
	return &s.StreamChunks[len(s.StreamChunks)-1]
}
