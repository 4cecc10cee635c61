package coupon

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// UsageRecorder persists a redemption once an order is placed.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, code, userID string) error
}

// RedisUsage keeps per user redemption counts in one Redis hash per coupon.
type RedisUsage struct {
	Client redis.UniversalClient
	Prefix string
}

func (u RedisUsage) key(code string) string { return u.Prefix + "coupon-usage:" + NormalizeCode(code) }

// CountUsage implements UsageCounter.
func (u RedisUsage) CountUsage(ctx context.Context, code, userID string) (int, error) {
	n, err := u.Client.HGet(ctx, u.key(code), userID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("coupon usage %s: %w", code, err)
	}
	return n, nil
}

// RecordUsage implements UsageRecorder.
func (u RedisUsage) RecordUsage(ctx context.Context, code, userID string) error {
	if err := u.Client.HIncrBy(ctx, u.key(code), userID, 1).Err(); err != nil {
		return fmt.Errorf("record coupon usage %s: %w", code, err)
	}
	return nil
}

// MemoryUsage is the in-process counterpart of RedisUsage.
type MemoryUsage struct {
	mu     sync.Mutex
	counts map[string]int
}

// CountUsage implements UsageCounter.
func (u *MemoryUsage) CountUsage(_ context.Context, code, userID string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[NormalizeCode(code)+"|"+userID], nil
}

// RecordUsage implements UsageRecorder.
func (u *MemoryUsage) RecordUsage(_ context.Context, code, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts == nil {
		u.counts = make(map[string]int)
	}
	u.counts[NormalizeCode(code)+"|"+userID]++
	return nil
}
