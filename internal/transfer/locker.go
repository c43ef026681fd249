package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// The chain assigns nonces per account, and two unsynchronized submissions
// from the same account race each other. Every transfer therefore runs under
// a per-account lock: an in-process mutex always, plus a Redis lock when
// configured so multiple replicas sharing one key do not collide.

// DistributedLocker guards an account across service replicas.
type DistributedLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// RedisLocker implements DistributedLocker on a Redis SETNX lock.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lockKey := "claim:lock:" + key
	ok, err := l.client.SetNX(ctx, lockKey, "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to acquire lock")
	}
	return ok, nil
}

func (l *RedisLocker) ReleaseLock(ctx context.Context, key string) error {
	lockKey := "claim:lock:" + key
	if err := l.client.Del(ctx, lockKey).Err(); err != nil {
		return errors.Wrap(err, "failed to release lock")
	}
	return nil
}

// accountLocks serializes submissions per account within this process.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (a *accountLocks) lock(account string) *sync.Mutex {
	a.mu.Lock()
	m, ok := a.locks[account]
	if !ok {
		m = &sync.Mutex{}
		a.locks[account] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m
}
