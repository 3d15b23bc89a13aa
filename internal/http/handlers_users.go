package http

import (
	"net/http"

	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

type settingsRequest struct {
	SpendWarning   *int `json:"spend_warning"`
	SavingsPercent *int `json:"savings_percent"`
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	u, err := s.deps.Users.Get(r.Context(), userID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newUserView(u)).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	u, err := s.deps.Users.UpdateSettings(r.Context(), userID, services.SettingsPatch{
		SpendWarning:   req.SpendWarning,
		SavingsPercent: req.SavingsPercent,
	})
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newUserView(u)).Write(w)
}
