// Package ratelimit throttles cart mutations per session.
package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allower admits or rejects one event for key.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Fixed is a fixed window limiter backed by a ulule/limiter store. It is used
// when Redis is not configured.
type Fixed struct {
	l *limiter.Limiter
}

// NewFixed builds a Fixed limiter. A nil store selects the in-memory store.
func NewFixed(store limiter.Store, window time.Duration, max int) *Fixed {
	if store == nil {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "cart-limit", CleanUpInterval: window})
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return &Fixed{l: limiter.New(store, rate)}
}

// Allow implements Allower.
func (f *Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := f.l.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
