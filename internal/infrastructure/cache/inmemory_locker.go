package cache

import (
	"context"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

type heldLock struct {
	expiresAt time.Time
	released  chan struct{}
}

// InMemoryLocker implements shared.Locker inside one process. It serializes
// webhook calls only for replicas that share the process, so it suits
// single-instance deployments and tests.
type InMemoryLocker struct {
	mu        sync.Mutex
	locks     map[string]*heldLock
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryLocker creates a locker and starts its cleanup goroutine
func NewInMemoryLocker() *InMemoryLocker {
	l := &InMemoryLocker{
		locks:    make(map[string]*heldLock),
		stopChan: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanupLoop()
	return l
}

// Acquire waits until key is free, its holder's ttl lapses, wait runs out or
// ctx is done.
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	deadline := time.NewTimer(max(wait, 0))
	defer deadline.Stop()

	for {
		l.mu.Lock()
		cur, held := l.locks[key]
		now := time.Now()
		if !held || !now.Before(cur.expiresAt) {
			if held {
				close(cur.released)
			}
			lk := &heldLock{expiresAt: now.Add(ttl), released: make(chan struct{})}
			l.locks[key] = lk
			l.mu.Unlock()
			return l.releaser(key, lk), nil
		}
		released := cur.released
		expiry := time.NewTimer(cur.expiresAt.Sub(now))
		l.mu.Unlock()

		if wait <= 0 {
			expiry.Stop()
			return nil, shared.ErrLockTimeout
		}

		select {
		case <-released:
		case <-expiry.C:
		case <-deadline.C:
			expiry.Stop()
			return nil, shared.ErrLockTimeout
		case <-ctx.Done():
			expiry.Stop()
			return nil, ctx.Err()
		}
		expiry.Stop()
	}
}

// releaser frees lk only while it is still the current holder of key
func (l *InMemoryLocker) releaser(key string, lk *heldLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.locks[key] == lk {
				delete(l.locks, key)
				close(lk.released)
			}
		})
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryLocker) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryLocker) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup drops locks whose holders never released them
func (l *InMemoryLocker) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, lk := range l.locks {
		if !now.Before(lk.expiresAt) {
			delete(l.locks, key)
			close(lk.released)
		}
	}
}

// Size returns the number of held locks
func (l *InMemoryLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ shared.Locker = (*InMemoryLocker)(nil)
