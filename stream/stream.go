// Package stream provides EventStream, a thin facade tying a document to
// its storage dependencies: it opens commit-engine sessions under an
// existence constraint, replays a stream through the upcast pipeline, and
// folds snapshots.
package stream

import (
	"context"
	"fmt"
	"sort"

	"github.com/libfaes/eventstream/eventtype"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/session"
	"github.com/libfaes/eventstream/store"
	"github.com/libfaes/eventstream/upcast"
	"github.com/sirupsen/logrus"
)

// Constraint restricts the stream's existence state a Session call is
// allowed to open against.
type Constraint int

const (
	// ConstraintAny permits opening a session regardless of whether the
	// stream already has events.
	ConstraintAny Constraint = iota
	// ConstraintNew requires CurrentStreamVersion == -1.
	ConstraintNew
	// ConstraintExisting requires CurrentStreamVersion >= 0.
	ConstraintExisting
)

func (c Constraint) String() string {
	switch c {
	case ConstraintNew:
		return "New"
	case ConstraintExisting:
		return "Existing"
	default:
		return "Any"
	}
}

// EventStream is bound to exactly one ObjectDocument and its storage
// dependencies.
type EventStream struct {
	document      *model.ObjectDocument
	dataStore     store.DataStore
	documentStore store.DocumentStore
	snapshotStore store.SnapshotStore
	eventTypes    *eventtype.Registry
	upcasters     *upcast.Registry
	hooks         session.Hooks
	logger        *logrus.Entry
}

// New creates an EventStream. snapshotStore and upcasters may be nil if
// the stream never snapshots or never needs upcasting.
func New(document *model.ObjectDocument, dataStore store.DataStore, documentStore store.DocumentStore, snapshotStore store.SnapshotStore, eventTypes *eventtype.Registry, upcasters *upcast.Registry, hooks session.Hooks, logger *logrus.Entry) *EventStream {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EventStream{
		document:      document,
		dataStore:     dataStore,
		documentStore: documentStore,
		snapshotStore: snapshotStore,
		eventTypes:    eventTypes,
		upcasters:     upcasters,
		hooks:         hooks,
		logger:        logger,
	}
}

// Document returns the stream's underlying document.
func (es *EventStream) Document() *model.ObjectDocument { return es.document }

// Session opens a commit-engine session against the stream after checking
// constraint against the document's current existence state.
func (es *EventStream) Session(constraint Constraint, body func(*session.LeasedSession) error) error {
	current := es.document.Active.CurrentStreamVersion
	switch constraint {
	case ConstraintNew:
		if current != -1 {
			return &faeserrors.ConstraintError{
				StreamIdentifier: es.document.Active.StreamIdentifier,
				Constraint:       constraint.String(),
				CurrentVersion:   current,
			}
		}
	case ConstraintExisting:
		if current < 0 {
			return &faeserrors.ConstraintError{
				StreamIdentifier: es.document.Active.StreamIdentifier,
				Constraint:       constraint.String(),
				CurrentVersion:   current,
			}
		}
	}

	sess := session.New(es.document, es.dataStore, es.documentStore, es.eventTypes, es.hooks, es.logger)
	return body(sess)
}

// ReadAsync reads the entire stream, upcasts every event to the latest
// registered schema version for its type, and optionally sorts the result
// by ExternalSequencer (lexicographic, empty sequencers sort first and
// preserve their relative order).
func (es *EventStream) ReadAsync(ctx context.Context, useExternalSequencer bool) ([]model.Event, error) {
	raw, err := es.dataStore.Read(ctx, es.document, 0, nil)
	if err != nil {
		return nil, err
	}

	out := make([]model.Event, 0, len(raw))
	for _, e := range raw {
		upcasted, dropped, err := es.upcastEvent(e)
		if err != nil {
			return nil, err
		}
		if dropped {
			continue
		}
		out = append(out, upcasted)
	}

	if useExternalSequencer {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ExternalSequencer < out[j].ExternalSequencer
		})
	}
	return out, nil
}

// upcastEvent walks e's payload through the upcaster chain to the latest
// registered schema version for its type, re-encoding it with that
// version's codec. A chain step that yields a nil payload drops the event
// from the read result, mirroring an upcaster that produces an empty
// sequence. When no upcast registry is configured, or the event is already
// at the latest version, e is returned unchanged.
func (es *EventStream) upcastEvent(e model.Event) (model.Event, bool, error) {
	if es.upcasters == nil {
		return e, false, nil
	}
	latest, ok := es.eventTypes.LatestSchemaVersion(e.EventType)
	if !ok || latest <= e.SchemaVersion {
		return e, false, nil
	}

	codec, ok := es.eventTypes.Lookup(e.EventType, e.SchemaVersion)
	if !ok {
		return e, false, nil
	}
	decoded, err := codec.Unmarshal(e.Payload, e.SchemaVersion)
	if err != nil {
		return model.Event{}, false, fmt.Errorf("stream: decode %q v%d: %w", e.EventType, e.SchemaVersion, err)
	}

	upcasted, reached, err := es.upcasters.UpcastToVersion(e.EventType, e.SchemaVersion, latest, decoded)
	if err != nil {
		return model.Event{}, false, err
	}
	if upcasted == nil {
		return model.Event{}, true, nil
	}

	targetCodec, ok := es.eventTypes.Lookup(e.EventType, reached)
	if !ok {
		return e, false, nil
	}
	reencoded, err := targetCodec.Marshal(upcasted)
	if err != nil {
		return model.Event{}, false, fmt.Errorf("stream: re-encode %q v%d: %w", e.EventType, reached, err)
	}

	e.Payload = reencoded
	e.SchemaVersion = reached
	return e, false, nil
}

// SnapshotCodec (de)serializes a folded aggregate of type TAgg for
// persistence in a store.SnapshotStore.
type SnapshotCodec[TAgg any] interface {
	Marshal(TAgg) ([]byte, error)
	Unmarshal([]byte) (TAgg, error)
}

// Snapshot folds es's events up to untilVersion into an aggregate of type
// TAgg via fold, starting from zero, persists it through the snapshot
// store under name, appends a StreamSnapShot record, and saves the
// document. It fails with faeserrors.ErrSnapshotTypeNotSet when codec is
// nil or the stream has no snapshot store configured.
func Snapshot[TAgg any](ctx context.Context, es *EventStream, untilVersion int, name string, zero TAgg, fold func(TAgg, model.Event) TAgg, codec SnapshotCodec[TAgg]) (TAgg, error) {
	if codec == nil || es.snapshotStore == nil {
		return zero, faeserrors.ErrSnapshotTypeNotSet
	}

	until := untilVersion
	events, err := es.dataStore.Read(ctx, es.document, 0, &until)
	if err != nil {
		return zero, err
	}

	agg := zero
	for _, e := range events {
		upcasted, dropped, err := es.upcastEvent(e)
		if err != nil {
			return zero, err
		}
		if dropped {
			continue
		}
		agg = fold(agg, upcasted)
	}

	data, err := codec.Marshal(agg)
	if err != nil {
		return zero, fmt.Errorf("stream: marshal snapshot %q: %w", name, err)
	}

	if err := es.snapshotStore.Set(ctx, store.Snapshot{UntilVersion: untilVersion, Name: name, Data: data}, es.document, untilVersion, name); err != nil {
		return zero, fmt.Errorf("stream: persist snapshot %q: %w", name, err)
	}

	es.document.Active.SnapShots = append(es.document.Active.SnapShots, model.StreamSnapShot{UntilVersion: untilVersion, Name: name})
	if err := es.documentStore.Set(ctx, es.document); err != nil {
		return zero, fmt.Errorf("stream: persist document after snapshot: %w", err)
	}

	return agg, nil
}
