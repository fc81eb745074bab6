package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/quoteflow/api"
	"github.com/angelmondragon/quoteflow/api/controllers"
	"github.com/angelmondragon/quoteflow/api/routes"
	"github.com/angelmondragon/quoteflow/internal/flow"
	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/internal/products"
	"github.com/angelmondragon/quoteflow/internal/quotes"
	"github.com/angelmondragon/quoteflow/internal/sharedquotes"
	"github.com/angelmondragon/quoteflow/internal/shares"
	"github.com/angelmondragon/quoteflow/internal/vehicles"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/config"
	"github.com/angelmondragon/quoteflow/pkg/db"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/migrate"
	"github.com/angelmondragon/quoteflow/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	flowMetrics := metrics.NewFlowMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	backendClient, err := backend.New(cfg.Backend, logg, backend.WithMetrics(flowMetrics))
	if err != nil {
		return err
	}

	flowService, productService, err := buildServices(ctx, cfg, logg, dbClient, redisClient, backendClient, flowMetrics)
	if err != nil {
		return err
	}

	readiness := []controllers.ReadinessCheck{
		{Name: "database", Ping: dbClient.Ping},
		{Name: "redis", Ping: redisClient.Ping},
		{Name: "backend", Ping: backendClient.Ping},
	}
	router := routes.NewRouter(
		cfg,
		logg,
		redisClient,
		httpMetrics,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		readiness,
		productService,
		flowService,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	backendClient *backend.Client,
	flowMetrics *metrics.FlowMetrics,
) (flow.Service, products.Service, error) {
	vehicleService, err := vehicles.NewService(backendClient, cfg.Flow.VINDebounce, logg)
	if err != nil {
		return nil, nil, err
	}
	quoteService, err := quotes.NewService(backendClient, logg, flowMetrics)
	if err != nil {
		return nil, nil, err
	}
	shareService, err := shares.NewService(backendClient, logg, flowMetrics)
	if err != nil {
		return nil, nil, err
	}
	sharedService, err := sharedquotes.NewService(backendClient, logg)
	if err != nil {
		return nil, nil, err
	}
	productService, err := products.NewService(backendClient, redisClient, cfg.Flow.CatalogCacheTTL, logg)
	if err != nil {
		return nil, nil, err
	}

	gateway, err := payments.NewGateway(ctx, cfg, logg, nil)
	if err != nil {
		return nil, nil, err
	}
	paymentService, err := payments.NewService(
		gateway,
		backendClient,
		payments.NewRepository(dbClient.DB()),
		cfg.Gateway.Currency,
		logg,
		flowMetrics,
	)
	if err != nil {
		return nil, nil, err
	}

	store, err := flow.NewRedisStore(redisClient, cfg.Flow.TTL)
	if err != nil {
		return nil, nil, err
	}
	locker, err := flow.NewRedisLocker(redisClient, cfg.Flow.ActionLockTTL)
	if err != nil {
		return nil, nil, err
	}
	flowService, err := flow.NewService(store, locker, vehicleService, quoteService, paymentService, shareService, sharedService, logg)
	if err != nil {
		return nil, nil, err
	}
	return flowService, productService, nil
}
