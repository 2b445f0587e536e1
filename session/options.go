package session

import "github.com/libfaes/eventstream/model"

type appendOptions struct {
	overrideEventType string
	actionMetadata    *model.ActionMetadata
	externalSequencer string
	metadata          map[string]string
}

// AppendOption configures a single Append call.
type AppendOption func(*appendOptions)

// WithEventTypeOverride replaces the event type name resolved from the
// payload's registered type, without affecting its schema version or codec.
func WithEventTypeOverride(name string) AppendOption {
	return func(o *appendOptions) { o.overrideEventType = name }
}

// WithActionMetadata attaches correlation metadata to the appended event.
func WithActionMetadata(meta *model.ActionMetadata) AppendOption {
	return func(o *appendOptions) { o.actionMetadata = meta }
}

// WithExternalSequencer sets the lexicographically sortable external
// sequencer token used by EventStream.ReadAsync's optional sort.
func WithExternalSequencer(seq string) AppendOption {
	return func(o *appendOptions) { o.externalSequencer = seq }
}

// WithMetadata attaches free-form metadata to the appended event.
func WithMetadata(metadata map[string]string) AppendOption {
	return func(o *appendOptions) { o.metadata = metadata }
}
