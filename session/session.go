// Package session implements the commit engine: LeasedSession serializes
// in-memory event appends against a single stream under optimistic
// concurrency, via the two-phase commit protocol (document metadata first,
// then event data), with compensating cleanup and stream-broken
// quarantine when cleanup itself fails.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/store"
	"github.com/sirupsen/logrus"
)

// LeasedSession is not reentrant: callers must not invoke Append or Commit
// concurrently on the same instance. The internal mutex only serializes
// such calls so they do not race on the buffer; it does not detect or
// report the misuse.
type LeasedSession struct {
	mu sync.Mutex

	document      *model.ObjectDocument
	dataStore     store.DataStore
	documentStore store.DocumentStore
	eventTypes    *eventtype.Registry
	hooks         Hooks
	logger        *logrus.Entry

	buffer []model.Event
}

// New creates a LeasedSession bound to document. A nil logger falls back
// to a bare entry over logrus.StandardLogger().
func New(document *model.ObjectDocument, dataStore store.DataStore, documentStore store.DocumentStore, eventTypes *eventtype.Registry, hooks Hooks, logger *logrus.Entry) *LeasedSession {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LeasedSession{
		document:      document,
		dataStore:     dataStore,
		documentStore: documentStore,
		eventTypes:    eventTypes,
		hooks:         hooks,
		logger:        logger,
	}
}

// BufferedCount returns the number of events appended but not yet
// committed.
func (s *LeasedSession) BufferedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Append resolves payload's registered (EventType, SchemaVersion, codec),
// runs all pre-append hooks against the live payload, serializes the final
// result once, and buffers the event with a tentative EventVersion. The
// buffer is not visible to readers until Commit succeeds.
func (s *LeasedSession) Append(payload any, opts ...AppendOption) error {
	if payload == nil {
		return fmt.Errorf("session: %w: payload must not be nil", faeserrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document.Active.IsBroken {
		return fmt.Errorf("session: %w: stream %q", faeserrors.ErrStreamBroken, s.document.Active.StreamIdentifier)
	}

	cfg := appendOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	name, schemaVersion, codec, ok := s.eventTypes.Resolve(payload)
	if !ok {
		return fmt.Errorf("session: %w: no event type registered for %T", faeserrors.ErrValidation, payload)
	}
	if cfg.overrideEventType != "" {
		name = cfg.overrideEventType
	}

	eventVersion := s.document.Active.CurrentStreamVersion + 1 + len(s.buffer)
	draft := EventDraft{EventType: name, SchemaVersion: schemaVersion, EventVersion: eventVersion}

	current := payload
	for _, hook := range s.hooks.PreAppend {
		thunk, err := hook(current, draft, s.document)
		if err != nil {
			return fmt.Errorf("session: pre-append hook failed: %w", err)
		}
		current = thunk()
	}

	data, err := codec.Marshal(current)
	if err != nil {
		return fmt.Errorf("session: marshal event %q: %w", name, err)
	}

	s.buffer = append(s.buffer, model.Event{
		EventType:         name,
		EventVersion:      eventVersion,
		SchemaVersion:     schemaVersion,
		Payload:           data,
		ExternalSequencer: cfg.externalSequencer,
		ActionMetadata:    cfg.actionMetadata,
		Metadata:          cfg.metadata,
	})
	return nil
}

// Read delegates to the underlying data store, returning an empty slice
// (never nil) when the stream has no events in range.
func (s *LeasedSession) Read(ctx context.Context, startVersion int, untilVersion *int) ([]model.Event, error) {
	events, err := s.dataStore.Read(ctx, s.document, startVersion, untilVersion)
	if err != nil {
		return nil, err
	}
	if events == nil {
		return []model.Event{}, nil
	}
	return events, nil
}

// IsTerminated reports whether streamIdentifier appears in the document's
// TerminatedStreams.
func (s *LeasedSession) IsTerminated(streamIdentifier string) bool {
	return s.document.IsStreamTerminated(streamIdentifier)
}

// Commit runs the two-phase commit protocol against the buffered events.
// An empty buffer commits trivially as a success with no storage calls.
func (s *LeasedSession) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document.Active.IsBroken {
		return fmt.Errorf("session: %w: stream %q", faeserrors.ErrStreamBroken, s.document.Active.StreamIdentifier)
	}
	if len(s.buffer) == 0 {
		return nil
	}

	originalVersion := s.document.Active.CurrentStreamVersion
	bufferLen := len(s.buffer)
	attemptedVersion := originalVersion + bufferLen

	newChunks, batches, closedIDs := planChunks(s.document.Active, originalVersion, s.buffer)

	savedChunks := s.document.Active.StreamChunks
	s.document.Active.StreamChunks = newChunks
	s.document.Active.CurrentStreamVersion = attemptedVersion

	if err := s.documentStore.Set(ctx, s.document); err != nil {
		s.document.Active.StreamChunks = savedChunks
		s.document.Active.CurrentStreamVersion = originalVersion
		return &faeserrors.CommitFailedError{
			Code:               faeserrors.CodeCommitFailed,
			StreamIdentifier:   s.document.Active.StreamIdentifier,
			EventsMayBeWritten: false,
			OriginalVersion:    originalVersion,
			AttemptedVersion:   attemptedVersion,
			Cause:              err,
		}
	}

	for _, batch := range batches {
		if err := s.dataStore.Append(ctx, s.document, batch); err != nil {
			return s.recoverFromPhaseBFailure(ctx, originalVersion, attemptedVersion, bufferLen, savedChunks, err)
		}
	}

	for _, id := range closedIDs {
		if chunk, ok := findChunk(s.document.Active.StreamChunks, id); ok {
			for _, hook := range s.hooks.ChunkClosed {
				hook(s.document, chunk)
			}
		}
	}
	for _, hook := range s.hooks.PostCommit {
		hook(s.document, s.buffer)
	}
	s.logger.WithFields(logrus.Fields{
		"stream":  s.document.Active.StreamIdentifier,
		"events":  bufferLen,
		"version": attemptedVersion,
	}).Debug("session: commit succeeded")
	s.buffer = nil
	return nil
}

// recoverFromPhaseBFailure implements the Commit protocol's cleanup branch:
// attempt compensating removal of the orphaned events if the data store
// supports it, otherwise quarantine the stream as broken directly.
func (s *LeasedSession) recoverFromPhaseBFailure(ctx context.Context, originalVersion, attemptedVersion, bufferLen int, savedChunks []model.StreamChunk, originalErr error) error {
	cleanupFrom := originalVersion + 1
	cleanupTo := originalVersion + bufferLen

	recovery, supportsRecovery := s.dataStore.(store.Recovery)
	if supportsRecovery {
		removed, cleanupErr := recovery.RemoveEventsForFailedCommit(ctx, s.document, cleanupFrom, cleanupTo)
		if cleanupErr == nil {
			s.logger.WithFields(logrus.Fields{
				"stream":        s.document.Active.StreamIdentifier,
				"fromVersion":   cleanupFrom,
				"toVersion":     cleanupTo,
				"eventsRemoved": removed,
			}).WithError(originalErr).Warn("session: phase B commit failed, cleaned up orphaned events")
			s.document.Active.RollbackHistory = append(s.document.Active.RollbackHistory, model.RollbackRecord{
				RolledBackAt:          time.Now(),
				FromVersion:           cleanupFrom,
				ToVersion:             cleanupTo,
				EventsRemoved:         removed,
				OriginalError:         originalErr.Error(),
				OriginalExceptionType: fmt.Sprintf("%T", originalErr),
			})
			s.document.Active.StreamChunks = savedChunks
			s.document.Active.CurrentStreamVersion = originalVersion
			return &faeserrors.CommitFailedError{
				Code:               faeserrors.CodeCommitFailed,
				StreamIdentifier:   s.document.Active.StreamIdentifier,
				EventsMayBeWritten: false,
				OriginalVersion:    originalVersion,
				AttemptedVersion:   attemptedVersion,
				Cause:              originalErr,
			}
		}
		return s.markBroken(ctx, originalVersion, attemptedVersion, cleanupFrom, cleanupTo, savedChunks, originalErr, cleanupErr)
	}

	return s.markBroken(ctx, originalVersion, attemptedVersion, cleanupFrom, cleanupTo, savedChunks, originalErr,
		fmt.Errorf("session: %w: data store does not implement Recovery", faeserrors.ErrNotImplemented))
}

func (s *LeasedSession) markBroken(ctx context.Context, originalVersion, attemptedVersion, cleanupFrom, cleanupTo int, savedChunks []model.StreamChunk, originalErr, cleanupErr error) error {
	s.document.Active.IsBroken = true
	s.document.Active.BrokenInfo = &model.BrokenStreamInfo{
		BrokenAt:             time.Now(),
		OrphanedFromVersion:  cleanupFrom,
		OrphanedToVersion:    cleanupTo,
		ErrorMessage:         originalErr.Error(),
		OriginalExceptionType: fmt.Sprintf("%T", originalErr),
		CleanupExceptionType: fmt.Sprintf("%T", cleanupErr),
	}

	s.logger.WithFields(logrus.Fields{
		"stream":      s.document.Active.StreamIdentifier,
		"fromVersion": cleanupFrom,
		"toVersion":   cleanupTo,
	}).WithError(originalErr).Error("session: stream marked broken, cleanup could not recover it")

	if err := s.documentStore.Set(ctx, s.document); err != nil {
		s.logger.WithError(err).WithField("stream", s.document.Active.StreamIdentifier).
			Warn("session: failed to persist broken-stream marker; broken state retained in memory only")
	}

	s.document.Active.StreamChunks = savedChunks
	s.document.Active.CurrentStreamVersion = originalVersion

	return &faeserrors.CommitCleanupFailedError{
		Code:                faeserrors.CodeCommitCleanupFailed,
		StreamIdentifier:    s.document.Active.StreamIdentifier,
		OriginalVersion:     originalVersion,
		AttemptedVersion:    attemptedVersion,
		CleanupFromVersion:  cleanupFrom,
		CleanupToVersion:    cleanupTo,
		OriginalCommitError: originalErr,
		CleanupError:        cleanupErr,
	}
}
