// Package lock serialises cart mutations per session key.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNoClient is returned by a Locker without a Redis client.
	ErrNoClient = errors.New("lock: redis client not configured")
	// ErrNoCallback is returned when WithLock gets a nil callback.
	ErrNoCallback = errors.New("lock: callback not provided")
)

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another holder is left alone.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker is a Redis SET NX lock. Waiters poll every RetryBackoff until the
// key frees up or their context ends.
type Locker struct {
	R            redis.UniversalClient
	RetryBackoff time.Duration
}

// WithLock runs fn while holding key. The lock expires after ttl if the
// holder dies and is released when fn returns, whatever its result.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return ErrNoClient
	case fn == nil:
		return ErrNoCallback
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultRetry
	}

	token := uuid.NewString()
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		acquired, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	defer func() {
		// the caller's context may already be done
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

// Local is an in-process keyed lock for single instance deployments.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// WithLock runs fn while holding key. ttl is ignored.
func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return ErrNoCallback
	}
	slot := l.slot(key)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-slot }()
	return fn(ctx)
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}
