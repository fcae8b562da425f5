// Package distlock guards work that must not run twice concurrently across
// invocations, such as two deliveries of the same storage event.
package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/batch-email/internal/pkg/logger"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker hands out locks for arbitrary keys.
type Locker interface {
	NewLock(key string) DistLock
}

// RedisLocker creates RedisLocks sharing one client and TTL.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisLocker returns a Locker whose keys are namespaced by prefix.
func NewRedisLocker(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, prefix: prefix}
}

// NewLock returns an unacquired lock for key.
func (l *RedisLocker) NewLock(key string) DistLock {
	if l.prefix != "" {
		key = l.prefix + ":" + key
	}
	return NewRedisLock(l.client, key, l.ttl)
}

// Renewable is a lock whose expiry can be pushed back while work runs.
type Renewable interface {
	TTL() time.Duration
	Extend(ctx context.Context, ttl time.Duration) error
}

// Run executes fn while holding lock. When the lock is held elsewhere fn is
// not called and Run returns false. Release errors are returned only when fn
// succeeded. A Renewable lock has its TTL extended every half TTL until fn
// returns.
func Run(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) (bool, error) {
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}

	stop := keepAlive(ctx, lock)
	fnErr := fn(ctx)
	stop()

	// Release on a fresh context so a cancelled run still frees the key.
	relErr := lock.Release(context.WithoutCancel(ctx))
	if fnErr != nil {
		return true, fnErr
	}
	return true, relErr
}

// keepAlive starts renewing lock and returns a func that stops renewal and
// waits for it to finish.
func keepAlive(ctx context.Context, lock DistLock) func() {
	r, ok := lock.(Renewable)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.TTL() / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Extend(ctx, r.TTL()); err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("distlock: failed to extend lock", "error", err)
					if errors.Is(err, ErrNotHeld) {
						return
					}
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
