// Package api exposes the design engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/tokamak/internal/analysis"
	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/engine"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
	"github.com/inamate/tokamak/internal/record"
)

type Handler struct {
	engine *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// Routes mounts the design endpoints on r. guard wraps the operator-only
// routes (lock, run, clear).
func (h *Handler) Routes(r *mux.Router, guard mux.MiddlewareFunc) {
	r.HandleFunc("/design", h.GetDesign).Methods("GET")
	r.HandleFunc("/params/shape", h.SetShape).Methods("PUT")
	r.HandleFunc("/params/advanced", h.SetAdvanced).Methods("PUT")
	r.HandleFunc("/vessel/vertices", h.AddVesselVertex).Methods("POST")
	r.HandleFunc("/vessel/vertices/last", h.RemoveVesselVertex).Methods("DELETE")
	r.HandleFunc("/coils", h.AddCoil).Methods("POST")
	r.HandleFunc("/coils/last", h.RemoveCoil).Methods("DELETE")
	r.HandleFunc("/coils/validate", h.ValidateCoils).Methods("POST")
	r.HandleFunc("/reset/{target}", h.Reset).Methods("POST")

	r.HandleFunc("/scene", h.GetScene).Methods("GET")
	r.HandleFunc("/preview.png", h.Preview).Methods("GET")

	r.HandleFunc("/select", h.Select).Methods("POST")
	r.HandleFunc("/edit", h.Adjust).Methods("PUT")
	r.HandleFunc("/edit/commit", h.Commit).Methods("POST")
	r.HandleFunc("/edit/cancel", h.Cancel).Methods("POST")

	r.HandleFunc("/lock", h.LockStatus).Methods("GET")
	r.HandleFunc("/results", h.Results).Methods("GET")

	protected := r.NewRoute().Subrouter()
	if guard != nil {
		protected.Use(guard)
	}
	protected.HandleFunc("/lock", h.Lock).Methods("POST")
	protected.HandleFunc("/analysis/run", h.RunAnalysis).Methods("POST")
	protected.HandleFunc("/results", h.ClearResults).Methods("DELETE")
}

func handleServiceError(w http.ResponseWriter, err error) {
	var exitErr *analysis.ExitError
	var missing *analysis.MissingEntryPointError

	switch {
	case errors.Is(err, design.ErrVesselFloor),
		errors.Is(err, design.ErrVesselCeiling),
		errors.Is(err, design.ErrCoilFloor),
		errors.Is(err, design.ErrCoilCeiling),
		errors.Is(err, editor.ErrSessionActive),
		errors.Is(err, editor.ErrNoSession),
		errors.Is(err, analysis.ErrRunInProgress),
		errors.Is(err, engine.ErrNotLocked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, plasma.ErrOutOfRange),
		errors.Is(err, editor.ErrOutOfRange),
		errors.Is(err, design.ErrNonFinite),
		errors.Is(err, design.ErrInvalidAdvanced),
		errors.Is(err, design.ErrTooFewPoints),
		errors.Is(err, geometry.ErrDegenerate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, design.ErrMalformedOperation),
		errors.Is(err, design.ErrUnknownResetKind),
		errors.Is(err, design.ErrUnknownKind),
		errors.Is(err, design.ErrIndexOutOfRange),
		errors.Is(err, editor.ErrUnrecognizedSelection):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNothingHit),
		errors.Is(err, record.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":       err.Error(),
			"notebook":    missing.Notebook,
			"projectRoot": missing.ProjectRoot,
			"cwd":         missing.Cwd,
		})
	case errors.As(err, &exitErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "analysis failed",
			"code":   exitErr.Code,
			"stderr": exitErr.Stderr,
		})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
