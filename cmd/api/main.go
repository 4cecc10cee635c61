package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/cache"
	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/discount"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/lock"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/shipping"
	"github.com/noah-isme/toko-cart/internal/store"
)

// usageStore both counts and records coupon redemptions.
type usageStore interface {
	coupon.UsageCounter
	coupon.UsageRecorder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(nil)
	}

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-cart",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	snap, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("load catalog")
	}
	logger.Info().Int("products", len(snap.Products())).Int("methods", len(snap.Methods())).Msg("catalog loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	probes := map[string]health.Probe{}

	var directory shipping.PostalDirectory = shipping.NewMemoryDirectory(snap.PostalCodes())
	if cfg.DatabaseURL != "" {
		pool := connectDatabase(ctx, cfg, logger)
		defer pool.Close()
		directory = shipping.NewPGDirectory(pool)
		probes["db"] = pool.Ping
	}

	var (
		redisClient *redis.Client
		locker      cart.Locker = &lock.Local{}
		limiter     ratelimit.Allower
		usage       usageStore = &coupon.MemoryUsage{}
	)
	if cfg.RedisURL != "" {
		redisClient = connectRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		locker = lock.Locker{R: redisClient}
		limiter = ratelimit.Sliding{Client: redisClient, Prefix: "ratelimit:", Window: cfg.RateLimit.Window, Max: cfg.RateLimit.Max}
		usage = coupon.RedisUsage{Client: redisClient}
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		limiter = ratelimit.NewFixed(nil, cfg.RateLimit.Window, cfg.RateLimit.Max)
	}

	fees := &shipping.Calculator{Directory: directory, Logger: logger}
	if cfg.Geocoder.URL != "" {
		var geocodeCache *cache.JSON
		if redisClient != nil {
			geocodeCache = cache.NewJSON(redisClient, "geocode:", cfg.Geocoder.CacheTTL)
		}
		fees.Geocoder = shipping.NewHTTPGeocoder(shipping.GeocoderConfig{
			BaseURL: cfg.Geocoder.URL,
			Timeout: cfg.Geocoder.Timeout,
			Cache:   geocodeCache,
			Logger:  logger,
		})
	}

	packaging := decimal.Zero
	if cfg.Cart.PackagingFee != nil {
		packaging = *cfg.Cart.PackagingFee
	}
	engine := cart.NewEngine(cart.EngineConfig{
		Discounts: discount.Settings{
			StoreDiscount:                cfg.Cart.StoreDiscount,
			CampaignsIgnoreStoreDiscount: cfg.Cart.CampaignsIgnoreStoreDiscount,
		},
		Card: card.Settings{
			Percentage:        cfg.Card.Percentage,
			MedicalPercentage: cfg.Card.MedicalPercentage,
			PriceCeiling:      cfg.Card.PriceCeiling,
		},
		PackagingFee: packaging,
		Fees:         fees,
		Methods:      snap,
		Coupons:      &coupon.Validator{Usage: usage, Logger: logger},
		Logger:       logger,
	})

	attributes, err := cart.ParseAttributes(cfg.Cart.ExtraProductAttributes)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse CART_EXTRA_PRODUCT_ATTRIBUTES")
	}
	cartSvc, err := cart.NewService(cart.ServiceConfig{
		Engine:     engine,
		Products:   snap,
		Coupons:    snap,
		Stock:      cart.StockPolicy{Infinite: cfg.Cart.InfiniteStock, MaxPerLine: cfg.Cart.MaxStockCart},
		Attributes: attributes,
		Usage:      usage,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	manager := cart.NewManager(cart.ManagerConfig{
		Namespace: cfg.Cart.SessionKey,
		Service:   cartSvc,
		Locker:    locker,
		LockTTL:   cfg.Cart.LockTTL,
		Logger:    logger,
	})

	limit := ratelimit.Handler{
		Limiter: limiter,
		Key:     ratelimit.SessionKey(cart.SessionHeader),
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	idem := common.Idem{TTL: 24 * time.Hour}
	if redisClient != nil {
		idem.R = redisClient
	}
	cartHandler := cart.NewHandler(cart.HandlerConfig{
		Manager:    manager,
		Validator:  validator.New(validator.WithRequiredStructEnabled()),
		Mutations:  []func(http.Handler) http.Handler{limit.Middleware},
		Completion: []func(http.Handler) http.Handler{idem.Middleware},
	})
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Snapshot: snap, InfiniteStock: cfg.Cart.InfiniteStock})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 << 20))
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, SessionHeader: cart.SessionHeader}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", cart.SessionHeader, common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"), os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	health.Handler{Probes: probes}.Routes(r)
	r.Route("/api/v1", func(v chi.Router) {
		catalogHandler.Routes(v)
		cartHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-sigCtx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-cart"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
