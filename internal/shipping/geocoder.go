package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/toko-cart/internal/cache"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/resilience"
)

// ErrLocalityNotFound is returned when the geocoder knows nothing about a postal code.
var ErrLocalityNotFound = errors.New("geocoder returned no locality")

// Place is one geocoder answer for a postal code.
type Place struct {
	Locality     string `json:"localidade"`
	Municipality string `json:"nome_concelho"`
	District     string `json:"nome_distrito"`
}

// HTTPGeocoder resolves localities through a postal code web service.
// Answers are cached and concurrent lookups for the same code are collapsed.
type HTTPGeocoder struct {
	BaseURL string
	Client  resilience.HTTPClient
	Cache   *cache.JSON
	Logger  zerolog.Logger

	group singleflight.Group
}

// GeocoderConfig groups HTTPGeocoder settings.
type GeocoderConfig struct {
	BaseURL string
	Timeout time.Duration
	Cache   *cache.JSON
	Logger  zerolog.Logger
}

// NewHTTPGeocoder builds a traced geocoder client that retries transient failures.
func NewHTTPGeocoder(cfg GeocoderConfig) *HTTPGeocoder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPGeocoder{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("geocoder").WithLogger(cfg.Logger),
			Target:      "geocoder",
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Cache:  cfg.Cache,
		Logger: cfg.Logger,
	}
}

// Locality implements Geocoder.
func (g *HTTPGeocoder) Locality(ctx context.Context, prefix, suffix string) (string, error) {
	key := cache.Key(prefix, suffix)
	var cached Place
	if hit, err := g.Cache.Get(ctx, key, &cached); err != nil {
		g.Logger.Warn().Err(err).Str("postal_code", prefix+"-"+suffix).Msg("geocode_cache_read_failed")
	} else if hit {
		countGeocode("cache_hit")
		return cached.Locality, nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.fetch(ctx, prefix, suffix)
	})
	if err != nil {
		countGeocode("error")
		return "", err
	}
	place := v.(Place)
	if err := g.Cache.Set(ctx, key, place); err != nil {
		g.Logger.Warn().Err(err).Str("postal_code", prefix+"-"+suffix).Msg("geocode_cache_write_failed")
	}
	countGeocode("success")
	return place.Locality, nil
}

func (g *HTTPGeocoder) fetch(ctx context.Context, prefix, suffix string) (Place, error) {
	q := url.Values{}
	q.Set("codpostal1", prefix)
	q.Set("codpostal2", suffix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("build geocoder request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(ctx, req)
	if err != nil {
		return Place{}, fmt.Errorf("geocoder request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocoder request: %w", &resilience.StatusError{StatusCode: resp.StatusCode})
	}

	var places []Place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Place{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(places) == 0 || strings.TrimSpace(places[0].Locality) == "" {
		return Place{}, ErrLocalityNotFound
	}
	return places[0], nil
}

func countGeocode(result string) {
	if obs.GeocoderRequestsTotal != nil {
		obs.GeocoderRequestsTotal.WithLabelValues(result).Inc()
	}
}
