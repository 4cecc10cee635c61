package coupon_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/coupon"
)

type usageStore interface {
	coupon.UsageCounter
	coupon.UsageRecorder
}

func TestUsageStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]usageStore{
		"redis":  coupon.RedisUsage{Client: client, Prefix: "test:"},
		"memory": &coupon.MemoryUsage{},
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, err := store.CountUsage(ctx, "TEN", "u1")
			require.NoError(t, err)
			require.Zero(t, n)

			require.NoError(t, store.RecordUsage(ctx, "ten", "u1"))
			require.NoError(t, store.RecordUsage(ctx, "TEN", "u1"))

			n, err = store.CountUsage(ctx, "TEN", "u1")
			require.NoError(t, err)
			require.Equal(t, 2, n)

			n, err = store.CountUsage(ctx, "TEN", "u2")
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestPerUserLimitUsesRecordedCount(t *testing.T) {
	usage := &coupon.MemoryUsage{}
	limit := 1
	c := coupon.Coupon{Code: "ONCE", Type: coupon.TypePercentage, Active: true, PerUserLimit: &limit}
	v := &coupon.Validator{Usage: usage}
	ctx := context.Background()

	require.True(t, v.Validate(ctx, coupon.Subject{Coupon: c, UserID: "u1"}).Passed)
	require.NoError(t, usage.RecordUsage(ctx, "ONCE", "u1"))
	res := v.Validate(ctx, coupon.Subject{Coupon: c, UserID: "u1"})
	require.False(t, res.Passed)
	require.Equal(t, "uses_left", res.Rule)
}
