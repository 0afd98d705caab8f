package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises sweep runs across expiry-worker replicas. Sweeps are
// idempotent without it; the lock only avoids redundant full scans.
type Locker interface {
	WithSweepLock(ctx context.Context, fn func(ctx context.Context) error) error
}

type redisSweepLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSweepLocker creates a locker backed by a single Redis key.
func NewRedisSweepLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSweepLocker{
		client: client,
		key:    "lock:expiry-sweep",
		ttl:    ttl,
	}
}

// WithSweepLock runs fn while holding the lock. When another replica holds it
// the call returns nil without running fn: the other replica's sweep covers
// this interval.
func (l *redisSweepLocker) WithSweepLock(ctx context.Context, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil
	}

	defer func() {
		_ = l.release(ctx, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSweepLocker) release(ctx context.Context, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release sweep lock: %w", err)
	}
	return nil
}
