package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

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
	lg = lg.Named("completion-worker")

	lg.Info("starting up", zap.String("env", cfg.Env), zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{MaxConns: 2})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

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

	repo := appointment.NewPgRepository(pgPool, cfg.TenantID)
	locker := redisclient.NewRedisEngineerLocker(rdb, cfg.TenantID, cfg.LockTTL)
	svc := appointment.NewService(repo, locker, lg, metrics.New())

	runOnce(rootCtx, svc, lg)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			lg.Info("shutdown signal received, stopping")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, lg)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsed(runCtx)
	if err != nil {
		lg.Error("completion run failed", zap.Int("completed", n), zap.Error(err))
		return
	}
	lg.Info("completion run finished", zap.Int("completed", n), zap.Duration("took", time.Since(start)))
}
