package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/ratelimit"
)

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := ratelimit.Sliding{Client: client, Prefix: "test:", Window: 2 * time.Second, Max: 2, Now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := lim.Allow(ctx, "key")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 2-(i+1), d.Remaining)
	}
	d, err := lim.Allow(ctx, "key")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)

	now = now.Add(3 * time.Second)
	d, err = lim.Allow(ctx, "key")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestSlidingWithoutClientAdmits(t *testing.T) {
	d, err := ratelimit.Sliding{Max: 1, Window: time.Second}.Allow(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestFixedMemoryStore(t *testing.T) {
	lim := ratelimit.NewFixed(nil, time.Minute, 1)
	ctx := context.Background()

	d, err := lim.Allow(ctx, "s1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Limit)

	d, err = lim.Allow(ctx, "s1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = lim.Allow(ctx, "s2")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

type failing struct{}

func (failing) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store down")
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("rejects over limit", func(t *testing.T) {
		h := ratelimit.Handler{Limiter: ratelimit.NewFixed(nil, time.Minute, 1), Key: ratelimit.SessionKey("X-Session-Key")}.Middleware(ok)
		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
			req.Header.Set("X-Session-Key", "abc")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			return rr
		}
		require.Equal(t, http.StatusOK, send().Code)
		rr := send()
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
		require.NotEmpty(t, rr.Header().Get("Retry-After"))
		require.Contains(t, rr.Body.String(), "RATE_LIMITED")
	})

	t.Run("reads are not limited", func(t *testing.T) {
		h := ratelimit.Handler{Limiter: ratelimit.NewFixed(nil, time.Minute, 1), Key: ratelimit.SessionKey("X-Session-Key")}.Middleware(ok)
		for i := 0; i < 3; i++ {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
			require.Equal(t, http.StatusOK, rr.Code)
		}
	})

	t.Run("fails open", func(t *testing.T) {
		var reported error
		h := ratelimit.Handler{
			Limiter: failing{},
			Key:     ratelimit.SessionKey("X-Session-Key"),
			OnError: func(err error) { reported = err },
		}.Middleware(ok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/items", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Error(t, reported)
	})
}

func TestSessionKeyFallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "addr:10.0.0.1", ratelimit.SessionKey("X-Session-Key")(req))
	req.Header.Set("X-Session-Key", "abc")
	require.Equal(t, "session:abc", ratelimit.SessionKey("X-Session-Key")(req))
}
