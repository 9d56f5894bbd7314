package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inamate/tokamak/internal/auth"
	"github.com/inamate/tokamak/internal/cache"
	"github.com/inamate/tokamak/internal/engine"
	"github.com/inamate/tokamak/internal/record"
)

type lockResponse struct {
	Locked  bool             `json:"locked"`
	State   *cache.LockState `json:"state,omitempty"`
	Summary *record.Summary  `json:"summary,omitempty"`
}

func newLockResponse(s *cache.LockState) lockResponse {
	sum := s.Record.Summary()
	return lockResponse{Locked: true, State: s, Summary: &sum}
}

func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	operator := auth.OperatorFromContext(r.Context())
	if operator == "" {
		operator = auth.Anonymous
	}
	state, err := h.engine.Lock(r.Context(), operator)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLockResponse(state))
}

// LockStatus reports the locked design. Nothing locked is not an error.
func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.LockStatus(r.Context())
	if errors.Is(err, engine.ErrNotLocked) {
		writeJSON(w, http.StatusOK, lockResponse{})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLockResponse(state))
}

func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.RunAnalysis(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLockResponse(state))
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Results(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearResults removes the results and records. A partial clear still
// answers 200 with what was removed, plus the error.
func (h *Handler) ClearResults(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Clear(r.Context())
	if err != nil {
		if report == nil {
			handleServiceError(w, err)
			return
		}
		slog.Warn("clear incomplete", "removed", report.Removed, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"removed": report.Removed, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
