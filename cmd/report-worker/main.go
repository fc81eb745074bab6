package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/quoteflow/internal/cron"
	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/pkg/config"
	"github.com/angelmondragon/quoteflow/pkg/db"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/migrate"
	"github.com/angelmondragon/quoteflow/pkg/redis"
)

const serviceName = "report-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := redis.NewLock(redisClient, redisClient.LockKey(serviceName, env), cfg.Reports.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}
	lock.WithLabel(serviceName)

	report, err := cron.NewUnrecordedReportJob(payments.NewRepository(dbClient.DB()), cfg.Reports.BatchSize, logg, jobMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create report job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{report},
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reports.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Reports.Interval.String(),
	})
	logg.Info(ctx, "starting report worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "report worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "report worker shutting down gracefully")
}
