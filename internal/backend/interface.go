package backend

import (
	"context"

	"pocketbook/internal/amqp"
	"pocketbook/internal/sheets"
	"pocketbook/internal/storage"
)

// DataBackend names the SQL dialect holding the ledger.
type DataBackend string

const (
	SQLiteBackend   DataBackend = "sqlite"
	PostgresBackend DataBackend = "postgres"
)

func (b DataBackend) IsValid() bool {
	return b == SQLiteBackend || b == PostgresBackend
}

func (b DataBackend) String() string { return string(b) }

// MirrorType names where ledger events are mirrored.
type MirrorType string

const (
	MirrorNone   MirrorType = "none"
	MirrorMemory MirrorType = "memory"
	MirrorSheets MirrorType = "sheets"
)

func (m MirrorType) IsValid() bool {
	return m == MirrorNone || m == MirrorMemory || m == MirrorSheets
}

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Factory opens the infrastructure the binaries share.
type Factory interface {
	// OpenStore opens the configured database and brings its schema up to date.
	OpenStore(ctx context.Context, cfg Config) (*storage.Store, CleanupFunc, error)
	// OpenEvents dials the broker. It returns a nil client when AMQP is not
	// configured.
	OpenEvents(cfg Config) (*amqp.Client, CleanupFunc, error)
	// OpenMirror returns the configured ledger mirror, or nil for MirrorNone.
	OpenMirror(ctx context.Context, cfg Config) (sheets.LedgerMirror, error)
}
