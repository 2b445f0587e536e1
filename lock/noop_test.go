package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpProvider_AlwaysGrants(t *testing.T) {
	provider := NewNoOpProvider()
	ctx := context.Background()

	h1, err := provider.Acquire(ctx, "same-key", time.Second, time.Second)
	require.NoError(t, err)
	h2, err := provider.Acquire(ctx, "same-key", time.Second, time.Second)
	require.NoError(t, err)

	assert.NotEqual(t, h1.LockId(), h2.LockId())
	assert.NoError(t, h1.Release(ctx))
	assert.NoError(t, h2.Renew(ctx, time.Minute))
}

func TestNoOpProvider_NeverExpiresOrContends(t *testing.T) {
	provider := NewNoOpProvider()
	ctx := context.Background()

	h, err := provider.Acquire(ctx, "some-key", time.Millisecond, time.Second)
	require.NoError(t, err)

	assert.True(t, h.IsValid())
	assert.Equal(t, infiniteExpiry, h.ExpiresAt())
	assert.False(t, provider.IsLocked("some-key"))
}
