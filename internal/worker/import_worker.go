package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

// Importer applies one provider batch to the ledger.
type Importer interface {
	Handle(ctx context.Context, m *amqp.ImportMessage) (services.ImportResult, error)
}

// ImportWorker feeds provider import batches from the queue into the ledger.
type ImportWorker struct {
	importer Importer
}

func NewImportWorker(importer Importer) *ImportWorker {
	return &ImportWorker{importer: importer}
}

// HandleImportMessage imports m. Batches that can never succeed, such as an
// unknown user or account, are marked poison so they are not requeued.
func (w *ImportWorker) HandleImportMessage(ctx context.Context, m *amqp.ImportMessage) error {
	if m.UserID <= 0 {
		return fmt.Errorf("%w: import message %s has no user", amqp.ErrPoisonMessage, m.ID)
	}

	res, err := w.importer.Handle(ctx, m)
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: import %s: %v", amqp.ErrPoisonMessage, m.ID, err)
		}
		return fmt.Errorf("import %s: %w", m.ID, err)
	}

	if res.Duplicates > 0 {
		slog.InfoContext(ctx, "Redelivered provider records ignored",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldOperation, applog.OpImport,
			applog.FieldMessageID, m.ID,
			applog.FieldAccountID, res.AccountID,
			"duplicates", res.Duplicates)
	}
	if res.Skipped > 0 {
		slog.WarnContext(ctx, "Provider records skipped",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldOperation, applog.OpImport,
			applog.FieldMessageID, m.ID,
			applog.FieldAccountID, res.AccountID,
			"skipped", res.Skipped)
	}
	return nil
}

// Handler decodes deliveries for the AMQP consumer.
func (w *ImportWorker) Handler() amqp.Handler {
	return func(ctx context.Context, body []byte) error {
		m, err := amqp.ImportMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: decode import message: %v", amqp.ErrPoisonMessage, err)
		}
		return w.HandleImportMessage(ctx, m)
	}
}

func permanent(err error) bool {
	return core.IsValidation(err) ||
		errors.Is(err, services.ErrNoImportAccount) ||
		errors.Is(err, services.ErrNoImportRef) ||
		errors.Is(err, core.ErrAccountNotFound) ||
		errors.Is(err, core.ErrUserNotFound)
}
