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

	"github.com/mylagoscommunity/cart-service/api/controllers"
	"github.com/mylagoscommunity/cart-service/api/routes"
	"github.com/mylagoscommunity/cart-service/internal/cart"
	"github.com/mylagoscommunity/cart-service/internal/products"
	"github.com/mylagoscommunity/cart-service/pkg/config"
	"github.com/mylagoscommunity/cart-service/pkg/db"
	"github.com/mylagoscommunity/cart-service/pkg/instance"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
	"github.com/mylagoscommunity/cart-service/pkg/metrics"
	"github.com/mylagoscommunity/cart-service/pkg/migrate"
	"github.com/mylagoscommunity/cart-service/pkg/redis"
	"github.com/mylagoscommunity/cart-service/pkg/xano"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readiness := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
	}

	var dbClient *db.Client
	if cfg.GuestStore.UsesSQL() {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		readiness["db"] = dbClient
	}

	guestRepo, err := newGuestRepository(cfg, redisClient, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to build guest cart repository", err)
		os.Exit(1)
	}
	guard, err := newMigrationGuard(cfg, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to build migration guard", err)
		os.Exit(1)
	}

	xanoClient, err := xano.NewClient(cfg.Xano.BaseURL, xano.WithTimeout(cfg.Xano.Timeout))
	if err != nil {
		logg.Error(ctx, "failed to create xano client", err)
		os.Exit(1)
	}
	productService, err := products.NewService(xanoClient)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}
	remoteStore, err := cart.NewXanoRemoteStore(xanoClient)
	if err != nil {
		logg.Error(ctx, "failed to create remote cart store", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(promRegistry)

	registry, err := cart.NewRegistry(cart.RegistryParams{
		Factory: func(sessionID string) (*cart.Engine, error) {
			return cart.NewEngine(cart.EngineParams{
				SessionID:         sessionID,
				Catalog:           productService,
				Remote:            remoteStore,
				Guest:             guestRepo,
				Guard:             guard,
				Recorder:          cartMetrics,
				Logger:            logg,
				LookupConcurrency: cfg.Catalog.LookupConcurrency,
			})
		},
		IdleTTL:    cfg.Session.IdleTTL,
		SweepEvery: cfg.Session.SweepEvery,
		Logger:     logg,
		OnEvict:    evictionHook(guard),
		AfterSweep: guestPruneHook(cfg, guestRepo, logg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart registry", err)
		os.Exit(1)
	}
	go registry.Run(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"guest_store": cfg.GuestStore.NormalizedDriver(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Readiness:      readiness,
			Carts:          registry,
			Products:       productService,
			MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}
