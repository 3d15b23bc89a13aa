package main

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pocketbook/internal/amqp"
	"pocketbook/internal/backend"
	"pocketbook/internal/cli"
	applog "pocketbook/internal/log"
	"pocketbook/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting ledger-worker", applog.FieldOperation, applog.OpStartup)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	factory := backend.NewFactory(applog.FromContext(context.Background()).WithComponent(applog.ComponentWorker))

	store, closeStore, err := factory.OpenStore(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	// Each consumer gets its own connection so reconnects do not interfere.
	publisher, closePublisher, err := factory.OpenEvents(backendCfg)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	svc := backend.NewServices(store, publisher, backendCfg)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)
	g, gctx := errgroup.WithContext(ctx)

	mirror, err := factory.OpenMirror(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open ledger mirror", "error", err, "mirror", cfg.MirrorBackend)
		os.Exit(1)
	}
	if mirror != nil {
		events, closeEvents, err := factory.OpenEvents(backendCfg)
		if err != nil {
			logger.Error("Failed to connect mirror consumer", "error", err)
			os.Exit(1)
		}
		defer closeEvents()

		keys := []string{amqp.LedgerRoutingPrefix + "#"}
		if err := events.Bind(cfg.AMQPEventsQueue, keys...); err != nil {
			logger.Error("Failed to bind events queue", "error", err, "queue", cfg.AMQPEventsQueue)
			os.Exit(1)
		}
		mw := worker.NewMirrorWorker(mirror, cfg.Currency)
		g.Go(func() error {
			return events.ConsumeWithRetry(gctx, cfg.AMQPEventsQueue, keys, mw.Handler())
		})
	} else {
		logger.Info("Ledger mirror disabled")
	}

	imports, closeImports, err := factory.OpenEvents(backendCfg)
	if err != nil {
		logger.Error("Failed to connect import consumer", "error", err)
		os.Exit(1)
	}
	defer closeImports()

	if err := imports.Bind(cfg.AMQPImportQueue, amqp.ImportRoutingKey); err != nil {
		logger.Error("Failed to bind import queue", "error", err, "queue", cfg.AMQPImportQueue)
		os.Exit(1)
	}
	iw := worker.NewImportWorker(svc.Imports)
	g.Go(func() error {
		return imports.ConsumeWithRetry(gctx, cfg.AMQPImportQueue, []string{amqp.ImportRoutingKey}, iw.Handler())
	})

	// Spend checks here read cached allotments, so API writes must drop them too.
	invalidations, closeInvalidations, err := factory.OpenEvents(backendCfg)
	if err != nil {
		logger.Error("Failed to connect cache invalidation consumer", "error", err)
		os.Exit(1)
	}
	defer closeInvalidations()

	invalidationQueue := "ledger-worker.allotments." + uuid.NewString()
	ledgerKeys := []string{amqp.LedgerRoutingPrefix + "#"}
	if err := invalidations.BindTransient(invalidationQueue, ledgerKeys...); err != nil {
		logger.Error("Failed to bind cache invalidation queue", "error", err)
		os.Exit(1)
	}
	inv := worker.NewCacheInvalidator(svc.Budget)
	g.Go(func() error {
		return invalidations.ConsumeWithRetry(gctx, invalidationQueue, ledgerKeys, inv.Handler())
	})

	var auditor *worker.BalanceAuditor
	if cfg.AuditInterval > 0 {
		auditor = worker.NewBalanceAuditor(svc.Ledger, worker.AuditorConfig{
			Interval: cfg.AuditInterval,
			Fix:      cfg.AuditFix,
		})
		g.Go(func() error {
			return auditor.Run(gctx)
		})
	} else {
		logger.Info("Balance audit disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	if auditor != nil {
		stats := auditor.Stats()
		logger.Info("Balance audit summary",
			applog.FieldOperation, applog.OpShutdown,
			"runs", stats.Runs,
			"failures", stats.Failures,
			"last_drifted", stats.LastDrifted)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
