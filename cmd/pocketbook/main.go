package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/adapters"
	"pocketbook/internal/amqp"
	"pocketbook/internal/backend"
	"pocketbook/internal/cache"
	"pocketbook/internal/cli"
	apphttp "pocketbook/internal/http"
	applog "pocketbook/internal/log"
	"pocketbook/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting pocketbook", applog.FieldOperation, applog.OpStartup, "version", version)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	appLogger := applog.FromContext(context.Background())
	factory := backend.NewFactory(appLogger)

	store, closeStore, err := factory.OpenStore(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	// Without a broker the API still serves; events are simply not published.
	events, closeEvents, err := factory.OpenEvents(backendCfg)
	if err != nil {
		logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		events, closeEvents = nil, func() error { return nil }
	}
	defer closeEvents()

	svc := backend.NewServices(store, events, backendCfg)

	caches := cache.NewManager()
	caches.Register("allotments", svc.AllotmentCache)
	caches.StartCleanup(5 * time.Minute)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		Logger:             appLogger.WithComponent(applog.ComponentHTTP),
	}, apphttp.Deps{
		Ledger: svc.Ledger,
		Budget: svc.Budget,
		Users:  svc.Users,
		Goals:  svc.Goals,
		Tools:  adapters.NewToolAdapter(svc.Budget),
		Ready:  store.Ping,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()

		m := srv.Metrics()
		logger.Info("Request metrics",
			applog.FieldOperation, applog.OpShutdown,
			"requests", m.Requests,
			"server_errors", m.ServerErrors,
			"avg_latency_us", m.AvgLatencyUs,
			"rate_limited", m.RateLimited,
			"suspicious", m.Suspicious)
	})

	if events != nil {
		closeInvalidation, err := startCacheInvalidation(ctx, factory, backendCfg, svc)
		if err != nil {
			logger.Warn("Cross-process cache invalidation disabled", "error", err)
		} else {
			defer closeInvalidation()
		}
	}

	logger.Info("HTTP server listening",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// startCacheInvalidation subscribes this process to every ledger event so
// writes committed by the ledger worker drop the allotments cached here.
func startCacheInvalidation(ctx context.Context, factory backend.Factory, cfg backend.Config, svc *backend.Services) (func() error, error) {
	client, closeClient, err := factory.OpenEvents(cfg)
	if err != nil {
		return nil, err
	}

	queue := "pocketbook.allotments." + uuid.NewString()
	keys := []string{amqp.LedgerRoutingPrefix + "#"}
	if err := client.BindTransient(queue, keys...); err != nil {
		closeClient()
		return nil, err
	}

	inv := worker.NewCacheInvalidator(svc.Budget)
	go func() {
		if err := client.ConsumeWithRetry(ctx, queue, keys, inv.Handler()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Cache invalidation consumer stopped", "error", err, "queue", queue)
		}
	}()
	return closeClient, nil
}
