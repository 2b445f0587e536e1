// Package upcast chains pure functions that transform an older-versioned
// event payload into the next schema version. Chains are walked greedily
// from a starting version toward a target; a gap in the chain stops the
// walk at the highest version actually reachable.
package upcast

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libfaes/eventstream/eventtype"
)

// Fn transforms a payload at fromVersion into the payload at fromVersion+1.
type Fn func(payload any) (any, error)

type stepKey struct {
	name        string
	fromVersion int
}

// Registry maps (event name, from-version) to a transform function. Add is
// only valid before Freeze.
type Registry struct {
	mu     sync.RWMutex
	steps  map[stepKey]Fn
	frozen atomic.Bool
}

// New creates an empty, unfrozen Registry.
func New() *Registry {
	return &Registry{steps: make(map[stepKey]Fn)}
}

// Add registers fn as the transform from fromVersion to toVersion for the
// named event type. toVersion is currently only used for documentation and
// validation purposes — the chain walk always advances one version per
// step, so toVersion must equal fromVersion+1.
func (r *Registry) Add(name string, fromVersion, toVersion int, fn Fn) error {
	if r.frozen.Load() {
		return fmt.Errorf("upcast: %w", eventtype.ErrInvalidOperation)
	}
	if toVersion != fromVersion+1 {
		return fmt.Errorf("upcast: toVersion must be fromVersion+1, got %d -> %d", fromVersion, toVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("upcast: %w", eventtype.ErrInvalidOperation)
	}
	r.steps[stepKey{name: name, fromVersion: fromVersion}] = fn
	return nil
}

// Freeze prevents further Add calls. Idempotent.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// IsFrozen reports whether Freeze has been called.
func (r *Registry) IsFrozen() bool {
	return r.frozen.Load()
}

// UpcastToVersion walks the chain for name starting at fromVersion,
// applying each registered step in turn, until it either reaches
// targetVersion or hits a version with no registered step. It returns the
// payload and the version actually reached — callers that need to know
// whether the target was hit should compare the returned version against
// targetVersion.
//
// UpcastToVersion(name, v, v, p) always returns (p, v) unchanged.
func (r *Registry) UpcastToVersion(name string, fromVersion, targetVersion int, payload any) (any, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := payload
	version := fromVersion
	for version < targetVersion {
		fn, ok := r.steps[stepKey{name: name, fromVersion: version}]
		if !ok {
			break
		}
		next, err := fn(current)
		if err != nil {
			return current, version, fmt.Errorf("upcast: %s v%d->v%d: %w", name, version, version+1, err)
		}
		current = next
		version++
	}
	return current, version, nil
}
