package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding is a sliding window limiter backed by Redis sorted sets.
type Sliding struct {
	Client redis.UniversalClient
	Prefix string
	Window time.Duration
	Max    int
	Now    func() time.Time
}

// Allow implements Allower. A missing client or a non-positive limit admits
// everything.
func (s Sliding) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	reset := now.Add(s.Window)
	if s.Client == nil || s.Max <= 0 || s.Window <= 0 {
		return Decision{Allowed: true, Limit: s.Max, Remaining: s.Max, Reset: reset}, nil
	}

	redisKey := s.Prefix + key
	cutoff := float64(now.Add(-s.Window).UnixNano())

	pipe := s.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: key + ":" + uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, s.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("sliding window %s: %w", key, err)
	}

	current := int(count.Val())
	remaining := s.Max - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: current <= s.Max, Limit: s.Max, Remaining: remaining, Reset: reset}, nil
}
