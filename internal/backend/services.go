package backend

import (
	"time"

	"pocketbook/internal/amqp"
	"pocketbook/internal/cache"
	"pocketbook/internal/services"
	"pocketbook/internal/storage"
)

// Services is the service layer wired over one store.
type Services struct {
	Ledger  *services.LedgerService
	Budget  *services.BudgetService
	Users   *services.UserService
	Goals   *services.GoalService
	Imports *services.ImportService

	// AllotmentCache is exposed so callers can register it for periodic sweeps.
	AllotmentCache *cache.LRUCache[services.Allotment]
}

// NewServices assembles the services. events may be nil, in which case ledger
// events are not published.
func NewServices(store *storage.Store, events *amqp.Client, cfg Config) *Services {
	size, ttl := cfg.AllotmentCacheSize, cfg.AllotmentCacheTTL
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	allotments := cache.NewLRUCache[services.Allotment](size, ttl)
	budget := services.NewBudgetService(store, allotments)

	// A nil *amqp.Client inside the interface would not compare equal to nil.
	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}
	ledger := services.NewLedgerService(store, budget, publisher)

	return &Services{
		Ledger:         ledger,
		Budget:         budget,
		Users:          services.NewUserService(store, budget),
		Goals:          services.NewGoalService(store, budget),
		Imports:        services.NewImportService(ledger),
		AllotmentCache: allotments,
	}
}
