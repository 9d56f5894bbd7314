package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
	"github.com/inamate/tokamak/internal/render"
)

const maxImageSide = 4096

func (h *Handler) GetDesign(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, http.StatusOK)
}

// writeView answers a mutation with the refreshed design view.
func (h *Handler) writeView(w http.ResponseWriter, status int) {
	v, err := h.engine.View()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, status, v)
}

func (h *Handler) apply(w http.ResponseWriter, op design.Operation, status int) {
	if _, err := h.engine.Apply(op); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeView(w, status)
}

func (h *Handler) SetShape(w http.ResponseWriter, r *http.Request) {
	var shape plasma.Shape
	if !decode(w, r, &shape) {
		return
	}
	h.apply(w, design.Operation{Type: design.OpShapeSet, Shape: &shape}, http.StatusOK)
}

func (h *Handler) SetAdvanced(w http.ResponseWriter, r *http.Request) {
	var p design.AdvancedParams
	if !decode(w, r, &p) {
		return
	}
	h.apply(w, design.Operation{Type: design.OpAdvancedSet, Advanced: &p}, http.StatusOK)
}

func (h *Handler) AddVesselVertex(w http.ResponseWriter, r *http.Request) {
	h.apply(w, design.Operation{Type: design.OpVesselAdd}, http.StatusCreated)
}

func (h *Handler) RemoveVesselVertex(w http.ResponseWriter, r *http.Request) {
	h.apply(w, design.Operation{Type: design.OpVesselRemoveLast}, http.StatusOK)
}

func (h *Handler) AddCoil(w http.ResponseWriter, r *http.Request) {
	h.apply(w, design.Operation{Type: design.OpCoilAdd}, http.StatusCreated)
}

func (h *Handler) RemoveCoil(w http.ResponseWriter, r *http.Request) {
	h.apply(w, design.Operation{Type: design.OpCoilRemoveLast}, http.StatusOK)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	target := design.ResetTarget(mux.Vars(r)["target"])
	h.apply(w, design.Operation{Type: design.OpReset, Target: target}, http.StatusOK)
}

type validateResponse struct {
	Coils []geometry.Point `json:"coils"`
	Moved []int            `json:"moved"`
}

func (h *Handler) ValidateCoils(w http.ResponseWriter, r *http.Request) {
	before := h.engine.Snapshot().Coils
	coils, err := h.engine.ValidateCoils()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	moved := []int{}
	for i, c := range coils {
		if i < len(before) && c != before[i] {
			moved = append(moved, i)
		}
	}
	writeJSON(w, http.StatusOK, validateResponse{Coils: coils, Moved: moved})
}

type sceneResponse struct {
	Scene    *render.Scene        `json:"scene"`
	Commands []render.DrawCommand `json:"commands"`
}

// GetScene returns the scene and the draw commands that paint it at the
// requested canvas size.
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	width, height, ok := imageSize(w, r)
	if !ok {
		return
	}
	s, err := h.engine.Scene()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	s.Width, s.Height = width, height
	writeJSON(w, http.StatusOK, sceneResponse{Scene: s, Commands: render.Compile(s, s.View(width, height))})
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	width, height, ok := imageSize(w, r)
	if !ok {
		return
	}
	s, err := h.engine.Scene()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, s, width, height); err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// imageSize reads the optional width and height query params.
func imageSize(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	width, height := render.Width, render.Height
	for name, dst := range map[string]*int{"width": &width, "height": &height} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxImageSide {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
			return 0, 0, false
		}
		*dst = n
	}
	return width, height, true
}
