package backend

import (
	"context"
	"fmt"

	"pocketbook/internal/amqp"
	applog "pocketbook/internal/log"
	"pocketbook/internal/sheets"
	gsheet "pocketbook/internal/sheets/google"
	"pocketbook/internal/sheets/memory"
	"pocketbook/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentStorage)}
}

func (f *DefaultFactory) OpenStore(ctx context.Context, cfg Config) (*storage.Store, CleanupFunc, error) {
	var (
		store *storage.Store
		err   error
	)
	switch cfg.Data {
	case SQLiteBackend:
		store, err = storage.NewSQLiteStore(cfg.SQLiteDBPath)
	case PostgresBackend:
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
	default:
		return nil, nil, fmt.Errorf("unsupported data backend: %s", cfg.Data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Data, err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ping %s store: %w", cfg.Data, err)
	}

	f.logger.InfoContext(ctx, "Store ready", "backend", cfg.Data.String())
	return store, store.Close, nil
}

func (f *DefaultFactory) OpenEvents(cfg Config) (*amqp.Client, CleanupFunc, error) {
	if cfg.AMQPURL == "" {
		f.logger.Info("AMQP not configured, ledger events disabled")
		return nil, func() error { return nil }, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp client: %w", err)
	}
	f.logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange)
	return client, client.Close, nil
}

func (f *DefaultFactory) OpenMirror(ctx context.Context, cfg Config) (sheets.LedgerMirror, error) {
	switch cfg.Mirror {
	case MirrorNone, "":
		return nil, nil
	case MirrorMemory:
		f.logger.InfoContext(ctx, "Using in-memory ledger mirror")
		return memory.New(), nil
	case MirrorSheets:
		client, err := gsheet.New(ctx, cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("google sheets mirror: %w", err)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			return nil, fmt.Errorf("google sheets header: %w", err)
		}
		f.logger.InfoContext(ctx, "Using Google Sheets ledger mirror",
			"spreadsheet_id", cfg.Google.SpreadsheetID,
			"sheet", cfg.Google.SheetName)
		return client, nil
	}
	return nil, fmt.Errorf("unsupported mirror backend: %s", cfg.Mirror)
}
