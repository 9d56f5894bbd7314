package editor

import (
	"fmt"

	"github.com/inamate/tokamak/internal/design"
)

// Curve indices of the rendered scene that carry editable points.
const (
	CurveVesselPoints = 3
	CurveCoils        = 4
)

// SelectionEvent is what the render layer reports for a click on a point.
type SelectionEvent struct {
	CurveIndex int `json:"curve_index"`
	PointIndex int `json:"point_index"`
}

// Resolve maps a selection to the point it refers to.
func Resolve(ev SelectionEvent) (Target, error) {
	switch ev.CurveIndex {
	case CurveVesselPoints:
		return Target{Kind: design.KindVesselVertex, Index: ev.PointIndex}, nil
	case CurveCoils:
		return Target{Kind: design.KindCoil, Index: ev.PointIndex}, nil
	}
	return Target{}, fmt.Errorf("curve %d point %d: %w", ev.CurveIndex, ev.PointIndex, ErrUnrecognizedSelection)
}
