package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/asheth-dev/backend-daan/internal/config"
	"github.com/asheth-dev/backend-daan/internal/events"
	"github.com/asheth-dev/backend-daan/internal/gateway"
	"github.com/asheth-dev/backend-daan/internal/lock"
	"github.com/asheth-dev/backend-daan/internal/notify"
	"github.com/asheth-dev/backend-daan/internal/obs"
	"github.com/asheth-dev/backend-daan/internal/payment"
	"github.com/asheth-dev/backend-daan/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "daan"), nil)

	if !cfg.ReconcileEnabled {
		logger.Info().Msg("reconciliation disabled; nothing to run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	gatewayBreaker := resilience.NewBreaker(
		cfg.CircuitGatewayMinReq,
		cfg.CircuitGatewayFailureRate,
		cfg.CircuitGatewayOpenFor,
	).WithTarget("razorpay").WithLogger(logger)

	razorpay := &gateway.Razorpay{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
		HTTP: &resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   cfg.OutboundTimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     gatewayBreaker,
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
			Timeout:     cfg.OutboundTimeout,
		},
	}

	store := payment.NewStore(pool)
	bus := &events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notify.LogNotifier{Logger: logger}},
	}

	handler := &payment.ReconcileTaskHandler{
		Reconciler: &payment.Reconciler{
			Store:     store,
			Gateway:   razorpay,
			Bus:       bus,
			Logger:    logger,
			After:     cfg.ReconcileAfter,
			Abandon:   cfg.ReconcileAbandon,
			BatchSize: int32(cfg.ReconcileBatchSize),
		},
		Locker: &lock.Locker{Client: redisClient, TTL: cfg.LockTTL},
		Logger: logger,
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for task queue")
	}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"payments": 1},
	})
	mux := asynq.NewServeMux()
	mux.Handle(payment.TypeReconcile, handler)

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	spec := fmt.Sprintf("@every %s", cfg.ReconcileInterval)
	if _, err := scheduler.Register(spec, payment.NewReconcileTask(), asynq.Queue("payments")); err != nil {
		logger.Fatal().Err(err).Msg("register reconcile schedule")
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
			stop()
		}
	}()
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Error().Err(err).Msg("task server stopped")
			stop()
		}
	}()

	logger.Info().Dur("interval", cfg.ReconcileInterval).Msg("reconcile worker started")
	<-shutdownCtx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("reconcile worker stopped")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
