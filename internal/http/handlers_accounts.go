package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
)

type createAccountRequest struct {
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	CreditLimit decimal.NullDecimal `json:"credit_limit"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	accounts, err := s.deps.Ledger.ListAccounts(r.Context(), userID)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountView(a))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	a, err := s.deps.Ledger.CreateAccount(r.Context(), userID, core.Account{
		Name:        sanitizeInput(req.Name),
		Type:        sanitizeInput(req.Type),
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newAccountView(a)).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	a, err := s.deps.Ledger.GetAccount(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newAccountView(a)).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Ledger.DeleteAccount(r.Context(), userID, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	// Distinguish an unknown account from an empty one.
	if _, err := s.deps.Ledger.GetAccount(r.Context(), userID, id); err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	txs, err := s.deps.Ledger.ListTransactions(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newTransactionViews(txs)).Write(w)
}

// userAndID returns the caller and the {id} path parameter.
func userAndID(r *http.Request) (int64, int64, error) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		return 0, 0, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	return userID, id, nil
}
