package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

type createGoalRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        core.Date       `json:"date"`
	Progress    decimal.Decimal `json:"progress"`
}

type updateGoalRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        *core.Date       `json:"date"`
	Completed   *bool            `json:"completed"`
	Progress    *decimal.Decimal `json:"progress"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	goals, err := s.deps.Goals.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	g, err := s.deps.Goals.Create(r.Context(), userID, core.Goal{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Date:        req.Date,
		Progress:    req.Progress,
	})
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newGoalView(g)).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	g, err := s.deps.Goals.Get(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newGoalView(g)).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req updateGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		req.Name = &name
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		req.Description = &desc
	}

	g, err := s.deps.Goals.Update(r.Context(), userID, id, services.GoalPatch{
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        req.Date,
		Completed:   req.Completed,
		Progress:    req.Progress,
	})
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newGoalView(g)).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, id, err := userAndID(r)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Goals.Delete(r.Context(), userID, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
