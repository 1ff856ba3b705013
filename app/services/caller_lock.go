package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived exclusive locks keyed by name
type Locker interface {
	// TryLock returns a release func when the lock was taken, or nil when someone else holds it
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker implements Locker with SET NX and an owner token
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a Redis-backed Locker; keys are stored under prefix + "lock:"
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := fmt.Sprintf("%slock:%s", l.prefix, key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, nil
	}

	return func(ctx context.Context) error {
		if _, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Result(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments without Redis.
// Expired entries are reclaimed on the next TryLock for the same key.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLease
	nowFn func() time.Time
}

type localLease struct {
	token     string
	expiresAt time.Time
}

// NewLocalLocker creates an in-process Locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), nowFn: time.Now}
}

// TryLock implements Locker
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if lease, ok := l.held[key]; ok && now.Before(lease.expiresAt) {
		return nil, nil
	}

	token := uuid.NewString()
	l.held[key] = localLease{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[key]; ok && lease.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
