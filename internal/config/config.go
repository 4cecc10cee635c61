// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CatalogFile        string

	Cart      Cart
	Card      Card
	Geocoder  Geocoder
	RateLimit RateLimit
	Obs       Obs
}

// Cart groups the recalculation and stock settings.
type Cart struct {
	SessionKey                   string
	ExtraProductAttributes       string
	StoreDiscount                decimal.Decimal
	CampaignsIgnoreStoreDiscount bool
	// PackagingFee is nil when the fee is disabled.
	PackagingFee  *decimal.Decimal
	InfiniteStock bool
	MaxStockCart  int
	LockTTL       time.Duration
}

// Card groups loyalty card credit settings.
type Card struct {
	Percentage        decimal.Decimal
	MedicalPercentage decimal.Decimal
	PriceCeiling      decimal.Decimal
}

// Geocoder configures the postal code locality lookup.
type Geocoder struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// RateLimit bounds cart mutations per session.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// Obs configures logging, metrics and tracing.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	p := &parser{k: k}
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CatalogFile:        valueOrDefault(k.String("CATALOG_FILE"), "catalog.yaml"),
		Cart: Cart{
			SessionKey:                   strings.TrimSpace(k.String("CART_SESSION_KEY")),
			ExtraProductAttributes:       k.String("CART_EXTRA_PRODUCT_ATTRIBUTES"),
			StoreDiscount:                p.decimal("STORE_DISCOUNT", "0"),
			CampaignsIgnoreStoreDiscount: parseBool(k.String("CAMPAIGN_IGNORE_STORE_DISCOUNT")),
			PackagingFee:                 p.optionalDecimal("CHECKOUT_PACKAGING_FEE"),
			InfiniteStock:                parseBool(k.String("INFINITE_STOCK")),
			MaxStockCart:                 p.int("MAX_STOCK_CART", 0),
			LockTTL:                      p.duration("CART_LOCK_TTL", "5s"),
		},
		Card: Card{
			Percentage:        p.decimal("CARD_PERCENTAGE", "0"),
			MedicalPercentage: p.decimal("CARD_MEDICAL_PERCENTAGE", "0"),
			PriceCeiling:      p.decimal("CARD_PRICE_CEILING", "0"),
		},
		Geocoder: Geocoder{
			URL:      strings.TrimSpace(k.String("GEOCODER_URL")),
			Timeout:  p.duration("GEOCODER_TIMEOUT", "3s"),
			CacheTTL: p.duration("GEOCODE_CACHE_TTL", "24h"),
		},
		RateLimit: RateLimit{
			Max:    p.int("RATE_LIMIT_MAX", 60),
			Window: p.duration("RATE_LIMIT_WINDOW", "1m"),
		},
		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko_cart"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS"),
			TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    p.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
		},
	}

	if cfg.Cart.SessionKey == "" {
		p.errs = append(p.errs, errors.New("CART_SESSION_KEY is required"))
	}
	if cfg.Cart.MaxStockCart < 0 {
		p.errs = append(p.errs, errors.New("MAX_STOCK_CART must not be negative"))
	}
	if cfg.Cart.PackagingFee != nil && cfg.Cart.PackagingFee.IsNegative() {
		p.errs = append(p.errs, errors.New("CHECKOUT_PACKAGING_FEE must not be negative"))
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// parser reads typed values and collects every malformed setting.
type parser struct {
	k    *koanf.Koanf
	errs []error
}

func (p *parser) raw(key, fallback string) string {
	if v := strings.TrimSpace(p.k.String(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *parser) decimal(key, fallback string) decimal.Decimal {
	v := p.raw(key, fallback)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return decimal.Zero
	}
	return d
}

func (p *parser) optionalDecimal(key string) *decimal.Decimal {
	v := p.raw(key, "")
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return nil
	}
	return &d
}

func (p *parser) int(key string, fallback int) int {
	v := p.raw(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := p.raw(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) duration(key, fallback string) time.Duration {
	v := p.raw(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
