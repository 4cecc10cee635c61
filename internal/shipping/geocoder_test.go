package shipping_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/cache"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

var cartOwner = adjustment.CartOwner("cart-1")

func TestHTTPGeocoderCachesLocality(t *testing.T) {
	var (
		calls atomic.Int32
		query atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		query.Store(r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"localidade":"Campanhã","nome_concelho":"Porto","nome_distrito":"Porto"}]`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	geo := shipping.NewHTTPGeocoder(shipping.GeocoderConfig{
		BaseURL: srv.URL,
		Timeout: time.Second,
		Cache:   cache.NewJSON(client, "geocode:", time.Hour),
	})

	for i := 0; i < 2; i++ {
		locality, err := geo.Locality(context.Background(), "4000", "100")
		require.NoError(t, err)
		require.Equal(t, "Campanhã", locality)
	}
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, "codpostal1=4000&codpostal2=100", query.Load())
	require.True(t, mr.Exists("geocode:4000:100"))
}

func TestHTTPGeocoderEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	geo := shipping.NewHTTPGeocoder(shipping.GeocoderConfig{BaseURL: srv.URL})
	_, err := geo.Locality(context.Background(), "4000", "100")
	require.ErrorIs(t, err, shipping.ErrLocalityNotFound)
}

func TestHTTPGeocoderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	geo := shipping.NewHTTPGeocoder(shipping.GeocoderConfig{BaseURL: srv.URL})
	_, err := geo.Locality(context.Background(), "4000", "100")
	require.Error(t, err)
}
