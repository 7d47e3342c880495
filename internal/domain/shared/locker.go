package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when a key stays held past the wait budget
var ErrLockTimeout = errors.New("lock: wait timeout")

// Locker serializes work on a key across concurrent callers
type Locker interface {
	// Acquire blocks until key is held by the caller, ctx is done, or wait
	// elapses (ErrLockTimeout). The lock expires on its own after ttl.
	// The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)

	// Close releases resources held by the locker
	Close() error
}

// NopLocker never blocks and never coordinates
type NopLocker struct{}

// Acquire returns immediately
func (NopLocker) Acquire(context.Context, string, time.Duration, time.Duration) (func(), error) {
	return func() {}, nil
}

// Close is a no-op
func (NopLocker) Close() error { return nil }
