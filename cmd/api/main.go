package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-financials/internal/common"
	"github.com/noah-isme/order-financials/internal/config"
	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/health"
	"github.com/noah-isme/order-financials/internal/lock"
	"github.com/noah-isme/order-financials/internal/obs"
	"github.com/noah-isme/order-financials/internal/order"
	"github.com/noah-isme/order-financials/internal/ratelimit"
	"github.com/noah-isme/order-financials/internal/resilience"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	if cfg.MetricsEnabled {
		resilience.MustRegisterMetrics(cfg.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "order-financials-api",
			ServiceVersion: version,
			Endpoint:       cfg.OTLPEndpoint,
			Exporter:       cfg.TracingExporter,
			SamplingRatio:  cfg.TracingSampling,
			Environment:    cfg.AppEnv,
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

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	var (
		store   order.Store
		locker  lock.Locker
		checker health.Checker
	)
	if redisClient != nil {
		breaker := resilience.NewBreaker("draft_store", 5, 0.5, 30*time.Second).WithLogger(logger)
		store = order.BreakerStore{Store: order.NewRedisStore(redisClient, cfg.DraftTTL), Breaker: breaker}
		locker = lock.Redis{R: redisClient, Prefix: "lock:", TTL: 10 * time.Second}
		checker = readinessChecker{redis: redisClient}
	} else {
		logger.Warn().Msg("REDIS_URL not set; drafts are kept in memory")
		store = order.NewMemoryStore()
		locker = lock.NewLocal()
	}

	classifier := gst.NewClassifier(cfg.GSTHomeState)
	calculator := gst.NewCalculator(cfg.GSTRates)
	validate := common.NewValidator()

	orderSvc := order.NewService(classifier, calculator, store, logger.With().Str("component", "order").Logger())
	orderSvc.Locker = locker

	rateLimiter, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, cfg.MetricsBuckets, nil)
	}

	r := newRouter(routerDeps{
		Config:      cfg,
		Logger:      logger,
		Tracing:     tracingEnabled,
		HTTPMetrics: httpMetrics,
		RateLimit: ratelimit.Handler{
			Limiter: rateLimiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
		},
		Idem:   common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		Health: health.Handler{Checker: checker, RedisTimeout: cfg.ReadyRedisTimeout},
		GST:    gst.Handler{Classifier: classifier, Calculator: calculator, Validate: validate},
		Orders: &order.Handler{Svc: orderSvc, Validate: validate},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("home_state", classifier.HomeState()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// connectRedis returns nil when REDIS_URL is empty. A configured but unreachable Redis is fatal.
func connectRedis(cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

type readinessChecker struct {
	redis *redis.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
