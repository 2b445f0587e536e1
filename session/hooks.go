package session

import "github.com/libfaes/eventstream/model"

// EventDraft carries the header fields of an event still being built by
// Append, before the final payload has been serialized.
type EventDraft struct {
	EventType     string
	SchemaVersion int
	EventVersion  int
}

// PreAppendHook observes the live payload object (possibly already
// transformed by an earlier hook) and returns a thunk producing the next
// payload. Hooks run in registration order; the draft event is serialized
// exactly once, after the last hook has run.
type PreAppendHook func(payload any, draft EventDraft, document *model.ObjectDocument) (func() any, error)

// PostCommitHook runs after a commit has successfully written all of its
// batches, receiving the document and the events that were just committed.
type PostCommitHook func(document *model.ObjectDocument, committed []model.Event)

// ChunkClosedHook fires exactly once per chunk that becomes full as a
// result of a commit.
type ChunkClosedHook func(document *model.ObjectDocument, chunk model.StreamChunk)

// Hooks groups the hook families a LeasedSession dispatches, mirroring the
// commit engine's small family of notification points (pre-append,
// post-commit, chunk-closed). A zero-value Hooks registers nothing.
type Hooks struct {
	PreAppend   []PreAppendHook
	PostCommit  []PostCommitHook
	ChunkClosed []ChunkClosedHook
}
