package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/dentalreserve/internal/api"
	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/auth"
	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/internal/config"
	"github.com/hackgods/dentalreserve/internal/eventlog"
	"github.com/hackgods/dentalreserve/internal/metrics"
	redisclient "github.com/hackgods/dentalreserve/internal/redis"
	"github.com/hackgods/dentalreserve/internal/telemetry"
	"github.com/hackgods/dentalreserve/internal/user"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal(err, "config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With("service", "api-server")
	logger.Info("api-server starting up", "env", cfg.Env, "port", cfg.Port, "version", cfg.Version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(rootCtx, telemetry.Options{
		ServiceName:    "dentalreserve",
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	}, logger)

	var sinks eventlog.Multi

	// Postgres is optional and only backs the event log.
	var pgRecorder *eventlog.PgRecorder
	var pgPool *pgxpool.Pool
	if cfg.PostgresEnabled() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, pgRecorder, err = eventlog.OpenPostgres(pgCtx, eventlog.PgOptions{
			DSN:      cfg.PostgresDSN,
			MaxConns: cfg.PostgresMaxConns,
			AppName:  "dentalreserve",
		})
		cancelPg()
		if err != nil {
			logger.Fatal(err, "postgres setup error")
		}
		defer pgPool.Close()
		sinks = append(sinks, pgRecorder)
		logger.Info("connected to Postgres, event log table ready")
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal(err, "redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error(err, "error closing redis")
			}
		}()
		sinks = append(sinks, redisclient.NewStreamRecorder(rdb, cfg.EventStream, cfg.EventStreamMaxLen))
		logger.Info("connected to Redis", "stream", cfg.EventStream)
	}

	var events eventlog.Recorder = eventlog.Nop{}
	if len(sinks) > 0 {
		events = sinks
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	clinics := clinic.NewRegistry(clinic.SeedClinics())
	users := user.NewDirectory(user.DemoUsers())
	svc := appointment.NewService(appointment.Deps{
		Clinics: clinics,
		Phones:  appointment.NewPhoneAllocator(rand.NewSource(time.Now().UnixNano())),
		Events:  events,
		Metrics: m,
		Logger:  logger.With("component", "appointments"),
	})

	router := api.NewRouter(api.RouterConfig{
		Clinics:            clinics,
		Users:              users,
		Appointments:       svc,
		Tokens:             auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL),
		Events:             events,
		Metrics:            m,
		MetricsHandler:     promhttp.Handler(),
		Logger:             logger,
		PgPool:             pgPool,
		Redis:              rdb,
		Env:                cfg.Env,
		Version:            cfg.Version,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LegacyErrorStatus:  cfg.LegacyErrorStatus,
		AdminAuthRequired:  cfg.AdminAuthRequired,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           otelhttp.NewHandler(router, "dentalreserve"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "clinics", clinics.Count(), "users", users.Count())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutting down api-server")
	case err := <-serverErr:
		if err != nil {
			logger.Error(err, "http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "http server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error(err, "tracer shutdown error")
	}

	logger.Info("api-server stopped")
}
