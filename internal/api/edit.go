package api

import (
	"net/http"

	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/render"
)

const (
	defaultWorldTolerance = 0.25
	defaultPixelTolerance = 12
)

// selectRequest carries one of three selection forms: a curve/point pair
// from a client-side renderer, a click in world coordinates, or a click in
// pixels on a canvas of the given size.
type selectRequest struct {
	CurveIndex *int `json:"curve_index"`
	PointIndex *int `json:"point_index"`

	R *float64 `json:"r"`
	Z *float64 `json:"z"`

	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  int      `json:"width"`
	Height int      `json:"height"`

	Tolerance float64 `json:"tolerance"`
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		sess editor.Session
		err  error
	)
	switch {
	case req.CurveIndex != nil && req.PointIndex != nil:
		sess, err = h.engine.SelectEvent(editor.SelectionEvent{CurveIndex: *req.CurveIndex, PointIndex: *req.PointIndex})
	case req.R != nil && req.Z != nil:
		tol := req.Tolerance
		if tol <= 0 {
			tol = defaultWorldTolerance
		}
		sess, err = h.engine.SelectAt(geometry.Point{R: *req.R, Z: *req.Z}, tol)
	case req.X != nil && req.Y != nil:
		sess, err = h.selectPixel(req)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "selection needs curve_index/point_index, r/z or x/y"})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) selectPixel(req selectRequest) (editor.Session, error) {
	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = render.Width, render.Height
	}
	tolPx := req.Tolerance
	if tolPx <= 0 {
		tolPx = defaultPixelTolerance
	}
	s, err := h.engine.Scene()
	if err != nil {
		return editor.Session{}, err
	}
	view := s.View(width, height)
	r, z := view.Invert().TransformPoint(*req.X, *req.Y)
	tol := defaultWorldTolerance
	if scale := view[0]; scale > 0 {
		tol = tolPx / scale
	}
	return h.engine.SelectAt(geometry.Point{R: r, Z: z}, tol)
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var pt geometry.Point
	if !decode(w, r, &pt) {
		return
	}
	preview, err := h.engine.Adjust(pt)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Commit()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Cancel()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
