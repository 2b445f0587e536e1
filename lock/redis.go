package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/libfaes/eventstream/faeserrors"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds this handle's token,
// so a handle can never release a lock another holder has since acquired
// after this one expired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// renewScript extends the key's TTL only if it still holds this handle's
// token, for the same reason releaseScript checks ownership first.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// RedisProvider acquires locks via SET key token NX PX ttl, the standard
// single-instance Redis locking primitive. It polls at a fixed interval
// while waiting for a contended key to free up.
type RedisProvider struct {
	client    *redis.Client
	keyPrefix string
	pollEvery time.Duration
}

// RedisProviderConfig configures a RedisProvider.
type RedisProviderConfig struct {
	KeyPrefix string        // defaults to "eventstream:lock:"
	PollEvery time.Duration // defaults to 100ms
}

// NewRedisProvider wraps an existing go-redis client.
func NewRedisProvider(client *redis.Client, config RedisProviderConfig) *RedisProvider {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "eventstream:lock:"
	}
	poll := config.PollEvery
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &RedisProvider{client: client, keyPrefix: prefix, pollEvery: poll}
}

func (p *RedisProvider) fullKey(key string) string {
	return p.keyPrefix + key
}

// IsLocked reports whether key is currently held by anyone. It uses
// context.Background() internally since the Provider interface's
// IsLocked has no ctx parameter.
func (p *RedisProvider) IsLocked(key string) bool {
	n, err := p.client.Exists(context.Background(), p.fullKey(key)).Result()
	return err == nil && n > 0
}

// Acquire polls SET NX until it succeeds, ctx is cancelled, or timeout
// elapses.
func (p *RedisProvider) Acquire(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (Handle, error) {
	fullKey := p.fullKey(key)
	token := uuid.NewString()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		ok, err := p.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: redis SETNX failed for %q: %w", fullKey, err)
		}
		if ok {
			now := time.Now()
			return &redisHandle{
				provider:  p,
				id:        token,
				key:       fullKey,
				acquired:  now,
				expiresAt: now.Add(ttl),
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, &faeserrors.LockAcquisitionError{LockKey: fullKey, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, &faeserrors.LockAcquisitionError{LockKey: fullKey, Timeout: timeout, Cause: ctx.Err()}
		case <-ticker.C:
		}
	}
}

type redisHandle struct {
	provider  *RedisProvider
	id        string
	key       string
	acquired  time.Time
	expiresAt time.Time
}

func (h *redisHandle) LockId() string        { return h.id }
func (h *redisHandle) LockKey() string       { return h.key }
func (h *redisHandle) AcquiredAt() time.Time { return h.acquired }
func (h *redisHandle) ExpiresAt() time.Time  { return h.expiresAt }

// IsValid reports whether the lease has not yet expired, as observed
// locally — it does not round-trip to Redis to check actual ownership.
func (h *redisHandle) IsValid() bool { return time.Now().Before(h.expiresAt) }

// Renew extends the lock's TTL, failing with faeserrors.ErrLockLost if
// another holder has since taken the key (e.g. because it expired and was
// re-acquired before this renewal ran).
func (h *redisHandle) Renew(ctx context.Context, ttl time.Duration) error {
	res, err := h.provider.client.Eval(ctx, renewScript, []string{h.key}, h.id, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("lock: renew failed for %q: %w", h.key, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return fmt.Errorf("lock: %w: %q no longer held by this handle", faeserrors.ErrLockLost, h.key)
	}
	h.expiresAt = time.Now().Add(ttl)
	return nil
}

// Release deletes the lock key, but only if this handle still owns it.
// Releasing a lock that has already expired and been reacquired elsewhere
// is a no-op, not an error — by the time Release runs there is nothing
// left for this handle to give up.
func (h *redisHandle) Release(ctx context.Context) error {
	_, err := h.provider.client.Eval(ctx, releaseScript, []string{h.key}, h.id).Result()
	if err != nil {
		return fmt.Errorf("lock: release failed for %q: %w", h.key, err)
	}
	return nil
}
