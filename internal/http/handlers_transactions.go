package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

type transactionRequest struct {
	Kind       core.Kind       `json:"kind"`
	AccountID  int64           `json:"account_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Date       core.Date       `json:"date"`
	Category   string          `json:"category"`
	Recurrence *core.Cadence   `json:"recurrence"`
}

func (req transactionRequest) transaction() core.Transaction {
	t := core.Transaction{
		Kind:      req.Kind,
		AccountID: req.AccountID,
		Title:     sanitizeInput(req.Title),
		Amount:    req.Amount,
		Date:      req.Date,
		Category:  sanitizeInput(req.Category),
	}
	if req.Recurrence != nil {
		t.Recurrence = *req.Recurrence
	}
	return t
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	t, err := s.deps.Ledger.CreateTransaction(r.Context(), userID, req.transaction())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newTransactionView(t)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	t, err := s.deps.Ledger.GetTransaction(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newTransactionView(t)).Write(w)
}

// handleUpdateTransaction replaces every field. A different account_id moves
// the transaction between accounts.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	t := req.transaction()
	t.ID = id
	updated, err := s.deps.Ledger.UpdateTransaction(r.Context(), userID, t)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newTransactionView(updated)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Ledger.DeleteTransaction(r.Context(), userID, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultRecentLimit)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	txs, err := s.deps.Ledger.RecentTransactions(r.Context(), userID, limit)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newTransactionViews(txs)).Write(w)
}
