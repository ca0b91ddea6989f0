// Package lock keeps two poll runs from overlapping across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"issuesync/logger"
)

// ErrHeld is returned when another run holds the lock.
var ErrHeld = errors.New("poll run already in progress")

// DefaultKey is the Redis key guarding poll runs.
const DefaultKey = "issuesync:poll"

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker acquires the run lock for one poll run.
type Locker interface {
	Acquire(ctx context.Context, token string, ttl time.Duration) (Release, error)
	Close() error
}

// New returns a Redis-backed Locker, or a no-op Locker when redisURL is empty.
func New(redisURL string) (Locker, error) {
	if redisURL == "" {
		return Noop{}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisLock(client, DefaultKey), nil
}

// Noop grants every Acquire.
type Noop struct{}

// Acquire implements Locker
func (Noop) Acquire(context.Context, string, time.Duration) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// Close implements Locker
func (Noop) Close() error { return nil }

// redisClient is the subset of *redis.Client the lock needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLock is a SET NX lock with a TTL.
type RedisLock struct {
	client redisClient
	key    string
}

// NewRedisLock creates a RedisLock on key
func NewRedisLock(client redisClient, key string) *RedisLock {
	return &RedisLock{client: client, key: key}
}

// Acquire takes the lock for ttl, tagging it with token (the run id).
func (l *RedisLock) Acquire(ctx context.Context, token string, ttl time.Duration) (Release, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	logger.Debug("Run lock acquired",
		zap.String("key", l.key),
		zap.String("run_id", token),
		zap.Duration("ttl", ttl))

	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}, nil
}

// Close closes the Redis connection
func (l *RedisLock) Close() error {
	return l.client.Close()
}
