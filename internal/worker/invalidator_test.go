package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/amqp"
	"pocketbook/internal/backend"
	"pocketbook/internal/core"
	"pocketbook/internal/services"
	"pocketbook/internal/storage"
)

type recordingInvalidator struct {
	users []int64
}

func (r *recordingInvalidator) Invalidate(userID int64) {
	r.users = append(r.users, userID)
}

type eventLog struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (l *eventLog) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bodies = append(l.bodies, body)
	return nil
}

func TestCacheInvalidator_Handler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantUsers  []int64
		wantPoison bool
	}{
		{"ledger event", `{"id":"e1","type":"transaction.created","user_id":4}`, []int64{4}, false},
		{"no user", `{"id":"e2","type":"transaction.created"}`, nil, true},
		{"not json", `{`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &recordingInvalidator{}
			err := NewCacheInvalidator(inv).Handler()(context.Background(), []byte(tt.body))
			if got := errors.Is(err, amqp.ErrPoisonMessage); got != tt.wantPoison {
				t.Fatalf("poison = %v, want %v (err %v)", got, tt.wantPoison, err)
			}
			if !tt.wantPoison && err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if len(inv.users) != len(tt.wantUsers) || (len(tt.wantUsers) > 0 && inv.users[0] != tt.wantUsers[0]) {
				t.Errorf("invalidated %v, want %v", inv.users, tt.wantUsers)
			}
		})
	}
}

func TestCacheInvalidator_ImportElsewhereRefreshesAllotment(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user, err := store.CreateUser(ctx, "lee@example.com", "Lee")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// The API process owns the cache; the import runs in another process.
	api := backend.NewServices(store, nil, backend.Config{})
	published := &eventLog{}
	importer := services.NewImportService(services.NewLedgerService(store, nil, published))

	before, err := api.Budget.Allotment(ctx, user.ID)
	if err != nil {
		t.Fatalf("Allotment: %v", err)
	}
	if before.HasPaycheck {
		t.Fatal("allotment has a paycheck before the import")
	}

	acct, err := api.Ledger.CreateAccount(ctx, user.ID, core.Account{Name: "Checking", Type: "depository"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	m := amqp.NewImportMessage(user.ID, acct.ID, []amqp.ProviderTransaction{
		{Name: "Payroll", Amount: decimal.NewFromInt(-2000), Date: time.Now().Format("2006-01-02"), Category: []string{"Work"}},
	})
	if _, err := importer.Handle(ctx, m); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(published.bodies) == 0 {
		t.Fatal("import published no ledger events")
	}
	h := NewCacheInvalidator(api.Budget).Handler()
	for _, body := range published.bodies {
		if err := h(ctx, body); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
	}

	after, err := api.Budget.Allotment(ctx, user.ID)
	if err != nil {
		t.Fatalf("Allotment: %v", err)
	}
	if !after.HasPaycheck || !after.Paycheck.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("allotment after import = %+v, want the imported paycheck", after)
	}
}
