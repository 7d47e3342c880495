package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockPrefix   = "crm:ingestion:lock:"
	defaultPollInterval = 50 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the key only if it still holds the caller's token,
// so a holder whose ttl lapsed cannot free a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements shared.Locker with SET NX PX, shared by every
// replica that talks to the same Redis.
type RedisLocker struct {
	client       *redis.Client
	keyPrefix    string
	pollInterval time.Duration
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ""), nil
}

// NewRedisLockerWithClient wraps an existing client
func NewRedisLockerWithClient(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisLocker{
		client:       client,
		keyPrefix:    keyPrefix,
		pollInterval: defaultPollInterval,
	}
}

// Acquire polls SET NX until it wins, wait elapses or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	k := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(k, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, shared.ErrLockTimeout
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ shared.Locker = (*RedisLocker)(nil)
