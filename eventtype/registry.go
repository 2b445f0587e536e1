// Package eventtype maps payload types to their wire representation: an
// event name, a schema version, and the codec that (de)serializes the
// payload. The registry is mutable while the application wires up its
// types at startup and is then frozen so that no further types can be
// added. Lookups take a shared read lock both before and after Freeze.
package eventtype

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Codec (de)serializes a payload of a specific Go type to and from the
// opaque bytes stored on an Event. Implementations are expected to be safe
// for concurrent use once registered.
type Codec interface {
	Marshal(payload any) ([]byte, error)
	Unmarshal(data []byte, schemaVersion int) (any, error)
}

// entry is the registered record for one (type, name, schemaVersion)
// triple.
type entry struct {
	goType        reflect.Type
	eventName     string
	schemaVersion int
	codec         Codec
}

// nameKey is the lookup key used for wire → code resolution.
type nameKey struct {
	name    string
	version int
}

// Registry maps payload types to (event name, schema version, codec) and
// back. Add is only valid before Freeze; after Freeze it always fails.
// Lookups take a read lock in either state; they are not lock-free.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]*entry
	byName   map[nameKey]*entry
	frozen   atomic.Bool
}

// New creates an empty, unfrozen Registry.
func New() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*entry),
		byName: make(map[nameKey]*entry),
	}
}

// Add registers payload as mapping to (name, schemaVersion) via codec.
// schemaVersion defaults to 1 when 0 is passed. Returns InvalidOperation
// if the registry has already been frozen.
func (r *Registry) Add(payload any, name string, schemaVersion int, codec Codec) error {
	if r.frozen.Load() {
		return fmt.Errorf("eventtype: %w: registry is frozen", ErrInvalidOperation)
	}
	if schemaVersion == 0 {
		schemaVersion = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("eventtype: %w: registry is frozen", ErrInvalidOperation)
	}

	t := reflect.TypeOf(payload)
	e := &entry{
		goType:        t,
		eventName:     name,
		schemaVersion: schemaVersion,
		codec:         codec,
	}
	r.byType[t] = e
	r.byName[nameKey{name: name, version: schemaVersion}] = e
	return nil
}

// Freeze prevents any further Add calls. Freeze is idempotent.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// IsFrozen reports whether Freeze has been called.
func (r *Registry) IsFrozen() bool {
	return r.frozen.Load()
}

// Resolve looks up the wire representation for payload's concrete type.
// ok is false when no type was registered for it.
func (r *Registry) Resolve(payload any) (name string, schemaVersion int, codec Codec, ok bool) {
	t := reflect.TypeOf(payload)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.byType[t]
	if !found {
		return "", 0, nil, false
	}
	return e.eventName, e.schemaVersion, e.codec, true
}

// Lookup resolves (name, schemaVersion) back to a codec, for decoding an
// event read off the wire. ok is false when nothing was registered for
// that pair.
func (r *Registry) Lookup(name string, schemaVersion int) (codec Codec, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.byName[nameKey{name: name, version: schemaVersion}]
	if !found {
		return nil, false
	}
	return e.codec, true
}

// LatestSchemaVersion returns the highest schema version registered under
// name, used by readers to decide how far an upcast chain needs to walk.
// ok is false when no version of name has been registered at all.
func (r *Registry) LatestSchemaVersion(name string) (version int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.byName {
		if k.name != name {
			continue
		}
		if !ok || k.version > version {
			version = k.version
			ok = true
		}
	}
	return version, ok
}
