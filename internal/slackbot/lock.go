package slackbot

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long a processed event id stays locked. Slack
// retries event deliveries for a few minutes; anything older is a new event.
const DefaultDedupTTL = 10 * time.Minute

// Locker claims an event id exactly once within a TTL window. Acquire
// reports true when the caller won the claim and should process the event.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker claims event ids with SET NX so deduplication holds across
// server replicas.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker wraps an existing redis client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

var _ Locker = (*RedisLocker)(nil)

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// MemoryLocker is a per-process Locker for tests and redis-less deployments.
// Expired entries are reaped lazily on each Acquire.
type MemoryLocker struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	now     func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		claimed: make(map[string]time.Time),
		now:     time.Now,
	}
}

var _ Locker = (*MemoryLocker)(nil)

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, expiry := range l.claimed {
		if now.After(expiry) {
			delete(l.claimed, k)
		}
	}
	if _, ok := l.claimed[key]; ok {
		return false, nil
	}
	l.claimed[key] = now.Add(ttl)
	return true, nil
}
