// Package worker holds the background consumers run by ledger-worker.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pocketbook/internal/amqp"
	applog "pocketbook/internal/log"
	"pocketbook/internal/sheets"
)

// MirrorWorker appends every ledger event to a sheet mirror.
type MirrorWorker struct {
	mirror   sheets.LedgerMirror
	currency string
}

func NewMirrorWorker(mirror sheets.LedgerMirror, currency string) *MirrorWorker {
	return &MirrorWorker{mirror: mirror, currency: currency}
}

// HandleLedgerEvent writes one row for e. A failed append is returned so the
// delivery is retried.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	ref, err := w.mirror.AppendRow(ctx, sheets.RowFromEvent(e, w.currency))
	if err != nil {
		return fmt.Errorf("append ledger event %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Ledger event mirrored",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpMirror,
		applog.FieldMessageID, e.ID,
		applog.FieldEventType, e.Type,
		"row", ref)
	return nil
}

// Handler decodes deliveries for the AMQP consumer. Bodies that are not
// ledger events are dropped.
func (w *MirrorWorker) Handler() amqp.Handler {
	return func(ctx context.Context, body []byte) error {
		e, err := amqp.LedgerEventFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: decode ledger event: %v", amqp.ErrPoisonMessage, err)
		}
		if e.ID == "" || e.Type == "" {
			return fmt.Errorf("%w: ledger event without id or type", amqp.ErrPoisonMessage)
		}
		return w.HandleLedgerEvent(ctx, e)
	}
}
