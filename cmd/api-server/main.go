package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldline/engineer-scheduling/internal/api"
	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/config"
	"github.com/fieldline/engineer-scheduling/internal/db"
	"github.com/fieldline/engineer-scheduling/internal/logger"
	"github.com/fieldline/engineer-scheduling/internal/metrics"
	redisclient "github.com/fieldline/engineer-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("lock_ttl", cfg.LockTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{MaxConns: cfg.PgMaxConns})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	if cfg.AutoMigrate {
		if err := db.Migrate(rootCtx, pgPool); err != nil {
			lg.Fatal("schema migration error", zap.Error(err))
		}
		lg.Info("schema applied")
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

	m := metrics.New()
	repo := appointment.NewPgRepository(pgPool, cfg.TenantID)
	locker := redisclient.NewRedisEngineerLocker(rdb, cfg.TenantID, cfg.LockTTL)
	svc := appointment.NewService(repo, locker, lg, m)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Postgres: pgPool.Ping,
		Redis:    redisPing(rdb),
		Logger:   lg,
		Metrics:  m,
		Env:      cfg.Env,
		Version:  cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		lg.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}

	lg.Info("api-server stopped")
}

func redisPing(rdb *redis.Client) api.PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
