package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cache"
)

type payload struct {
	Locality string `json:"locality"`
}

func TestJSONRoundTripWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewJSON(client, "geo:", time.Minute)
	ctx := context.Background()

	var out payload
	hit, err := c.Get(ctx, "1000:001", &out)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Set(ctx, "1000:001", payload{Locality: "Lisboa"}))
	require.True(t, mr.Exists("geo:1000:001"))

	hit, err = c.Get(ctx, "1000:001", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "Lisboa", out.Locality)

	mr.FastForward(2 * time.Minute)
	hit, err = c.Get(ctx, "1000:001", &out)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNilClientNeverHits(t *testing.T) {
	c := cache.NewJSON(nil, "x:", time.Minute)
	var out payload
	hit, err := c.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, c.Set(context.Background(), "k", out))
	require.Equal(t, "a:b", cache.Key(" A ", "b"))
}
