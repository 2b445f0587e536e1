package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// infiniteExpiry is the ExpiresAt value reported by a no-op lock, which
// never actually expires.
var infiniteExpiry = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// NoOpProvider grants every lock request immediately and never contends
// with anything else — useful for single-process deployments and for
// exercising the migration orchestrator's saga logic in tests without
// standing up Redis.
type NoOpProvider struct{}

// NewNoOpProvider creates a NoOpProvider.
func NewNoOpProvider() *NoOpProvider { return &NoOpProvider{} }

func (p *NoOpProvider) Acquire(_ context.Context, key string, _ time.Duration, _ time.Duration) (Handle, error) {
	return &noOpHandle{
		id:       uuid.NewString(),
		key:      key,
		acquired: time.Now(),
	}, nil
}

// IsLocked always reports false: a NoOpProvider never tracks contention.
func (p *NoOpProvider) IsLocked(_ string) bool { return false }

type noOpHandle struct {
	id       string
	key      string
	acquired time.Time
}

func (h *noOpHandle) LockId() string        { return h.id }
func (h *noOpHandle) LockKey() string       { return h.key }
func (h *noOpHandle) AcquiredAt() time.Time { return h.acquired }
func (h *noOpHandle) ExpiresAt() time.Time  { return infiniteExpiry }
func (h *noOpHandle) IsValid() bool         { return true }

func (h *noOpHandle) Renew(_ context.Context, _ time.Duration) error { return nil }

func (h *noOpHandle) Release(_ context.Context) error { return nil }
