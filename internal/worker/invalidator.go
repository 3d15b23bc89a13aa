package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pocketbook/internal/amqp"
	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

// CacheInvalidator drops a process's cached allotments when any process
// commits a ledger change for the user.
type CacheInvalidator struct {
	budget services.Invalidator
}

func NewCacheInvalidator(budget services.Invalidator) *CacheInvalidator {
	return &CacheInvalidator{budget: budget}
}

// HandleLedgerEvent invalidates the event's user.
func (c *CacheInvalidator) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	if e.UserID <= 0 {
		return fmt.Errorf("%w: event %s has no user", amqp.ErrPoisonMessage, e.ID)
	}
	c.budget.Invalidate(e.UserID)

	slog.DebugContext(ctx, "Allotment cache invalidated",
		applog.FieldComponent, applog.ComponentCache,
		applog.FieldEventType, e.Type,
		applog.FieldUserID, e.UserID)
	return nil
}

// Handler decodes deliveries for the AMQP consumer.
func (c *CacheInvalidator) Handler() amqp.Handler {
	return func(ctx context.Context, body []byte) error {
		e, err := amqp.LedgerEventFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: decode ledger event: %v", amqp.ErrPoisonMessage, err)
		}
		return c.HandleLedgerEvent(ctx, e)
	}
}
