package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

func (s *Server) handleAllotment(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	a, err := s.deps.Budget.Allotment(r.Context(), userID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newAllotmentView(a)).Write(w)
}

// handleSpendOverTime sums discretionary spend in [start, end]. Both default
// to the trailing spend window ending today.
func (s *Server) handleSpendOverTime(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	today := core.DateOf(time.Now())
	end, err := queryDate(r, "end", today)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	start, err := queryDate(r, "start", end.AddDays(-(services.SpendWindowDays - 1)))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	spend, err := s.deps.Budget.SpendOverTime(r.Context(), userID, start, end)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(spendView{Start: start, End: end, Spend: spend.Round(2)}).Write(w)
}

func (s *Server) handleSpendStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	st, err := s.deps.Budget.SpendStatus(r.Context(), userID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newSpendStatusView(st)).Write(w)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.deps.Tools.Tools()).Write(w)
}

// handleCallTool runs a named assistant tool. The body, when present, is
// passed to the tool as its arguments.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, applog.OpRead, fmt.Errorf("%w: %v", ErrMalformedRequest, err))
		return
	}
	var args json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			s.fail(w, r, applog.OpRead, fmt.Errorf("%w: tool arguments are not JSON", ErrMalformedRequest))
			return
		}
		args = body
	}

	res, err := s.deps.Tools.Call(r.Context(), userID, chi.URLParam(r, "name"), args)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}
