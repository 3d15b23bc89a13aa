package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger event types. They double as routing keys under the "ledger." prefix.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventAccountDeleted     = "account.deleted"
	EventSpendWarning       = "spend.warning"
)

const (
	// LedgerRoutingPrefix prefixes every ledger event routing key.
	LedgerRoutingPrefix = "ledger."
	// ImportRoutingKey routes provider import batches.
	ImportRoutingKey = "import.batch"
)

// LedgerEvent describes one committed change to one account. A transfer emits
// one event per account it touched.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	UserID        int64     `json:"user_id"`
	AccountID     int64     `json:"account_id,omitempty"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	Title         string    `json:"title,omitempty"`
	Category      string    `json:"category,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Balance       string    `json:"balance,omitempty"`
	Date          string    `json:"date,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and timestamp.
func NewLedgerEvent(eventType string, userID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is the key the event is published under.
func (e *LedgerEvent) RoutingKey() string {
	return LedgerRoutingPrefix + e.Type
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ProviderAccount is account metadata as delivered by the bank-data provider.
type ProviderAccount struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balances struct {
		Limit *decimal.Decimal `json:"limit"`
	} `json:"balances"`
}

// ProviderTransaction uses the provider's sign convention: positive amounts
// are money leaving the account.
type ProviderTransaction struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	Category []string        `json:"category"`
}

// ImportMessage asks the worker to import provider data for a user. When
// AccountID is zero, Account describes a new account to create first.
type ImportMessage struct {
	ID           string                `json:"id"`
	UserID       int64                 `json:"user_id"`
	AccountID    int64                 `json:"account_id,omitempty"`
	Account      *ProviderAccount      `json:"account,omitempty"`
	Transactions []ProviderTransaction `json:"transactions"`
	Timestamp    time.Time             `json:"timestamp"`
}

func NewImportMessage(userID, accountID int64, txs []ProviderTransaction) *ImportMessage {
	return &ImportMessage{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccountID:    accountID,
		Transactions: txs,
		Timestamp:    time.Now().UTC(),
	}
}

func (m *ImportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportMessageFromJSON(data []byte) (*ImportMessage, error) {
	var m ImportMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
