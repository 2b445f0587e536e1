package model

// ActionMetadata carries the identifiers needed to correlate an event back
// to the business action that produced it.
type ActionMetadata struct {
	CorrelationId string `json:"correlationId,omitempty"`
}

// Event is an immutable, persisted record in a stream. Its identity is the
// pair (stream, EventVersion); once appended, none of its fields change.
//
// Payload is opaque to everything except the codec selected by
// (EventType, SchemaVersion) through the event type registry — the commit
// engine and the migration saga never interpret it.
type Event struct {
	EventType     string            `json:"eventType"`
	EventVersion  int               `json:"eventVersion"`
	SchemaVersion int               `json:"schemaVersion"`
	Payload       []byte            `json:"payload"`

	// ExternalSequencer, when set, lexicographically orders events across
	// streams for callers that need a total order spanning more than one
	// object (e.g. a read model consumer). It is never required for
	// ordering within a single stream — EventVersion already does that.
	ExternalSequencer string `json:"externalSequencer,omitempty"`

	ActionMetadata *ActionMetadata   `json:"actionMetadata,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// StreamClosedEventType is the wire event-type name used for the closure
// marker appended to a source stream's tail during migration cutover. The
// payload of that event is a JSON-encoded StreamClosedEvent.
const StreamClosedEventType = "EventStream.Closed"

// StreamClosedEvent is the payload of the last business event appended to
// a stream before it is terminated by a migration cutover. It duplicates
// the shape of TerminatedStream because it travels inside an Event payload
// rather than as a document field — a reader replaying the stream in
// isolation (without the owning ObjectDocument) still needs to know where
// the stream was continued.
type StreamClosedEvent struct {
	StreamIdentifier         string            `json:"streamIdentifier"`
	ContinuationStreamId     string            `json:"continuationStreamId"`
	ContinuationStreamType   string            `json:"continuationStreamType,omitempty"`
	ContinuationDataStore    string            `json:"continuationDataStore,omitempty"`
	ContinuationDocumentStore string           `json:"continuationDocumentStore,omitempty"`
	Reason                   TerminationReason `json:"reason"`
	ClosedAt                 string            `json:"closedAt"`
	MigrationId              string            `json:"migrationId,omitempty"`
	LastBusinessEventVersion int               `json:"lastBusinessEventVersion"`
	Metadata                 map[string]string `json:"metadata,omitempty"`
}
