// Package render turns a design into the plotted cross-section: the five
// curves the dashboard draws, a hit test that maps clicks back to editable
// points, draw commands for the browser and a PNG preview.
package render

import (
	"fmt"
	"math"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/geometry"
)

// Default figure size in pixels.
const (
	Width  = 800
	Height = 600
)

// Curve indices in drawing order. Points and coils sit at the indices the
// selection contract expects.
const (
	CurveVesselOuter  = 0
	CurveVesselInner  = 1
	CurvePlasma       = 2
	CurveVesselPoints = editor.CurveVesselPoints
	CurveCoils        = editor.CurveCoils
)

type Mode string

const (
	ModeLines   Mode = "lines"
	ModeMarkers Mode = "markers"
)

// Trace is one plotted curve. Line traces are closed polygons; marker traces
// carry a color and label per point.
type Trace struct {
	Name        string           `json:"name"`
	Mode        Mode             `json:"mode"`
	Points      []geometry.Point `json:"points"`
	Fill        string           `json:"fill,omitempty"`
	Line        string           `json:"line,omitempty"`
	LineWidth   float64          `json:"lineWidth,omitempty"`
	MarkerSize  float64          `json:"markerSize,omitempty"`
	Colors      []string         `json:"colors,omitempty"`
	Labels      []string         `json:"labels,omitempty"`
	Interactive bool             `json:"interactive"`
}

// Scene is everything needed to draw the cross-section.
type Scene struct {
	Traces  []Trace       `json:"traces"`
	Bounds  geometry.Rect `json:"-"`
	Extent  [4]float64    `json:"extent"` // rMin, zMin, rMax, zMax
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	XTitle  string        `json:"xTitle"`
	YTitle  string        `json:"yTitle"`
	Valid   []int         `json:"valid"`
	Invalid []int         `json:"invalid"`
}

// Build derives the scene for d. boundary is the plasma boundary for d.Shape
// and wall the vessel wall thickness drawn around the inner contour.
func Build(d design.Design, boundary geometry.Polygon, wall float64) (*Scene, error) {
	outer, err := geometry.OffsetPolygon(d.Vessel, wall)
	if err != nil {
		return nil, fmt.Errorf("offset vessel: %w", err)
	}
	valid, invalid, err := geometry.ClassifyCoils(d.Coils, d.Vessel, boundary)
	if err != nil {
		return nil, fmt.Errorf("classify coils: %w", err)
	}

	vesselLabels := make([]string, len(d.Vessel))
	for i := range d.Vessel {
		vesselLabels[i] = fmt.Sprintf("VV Point %d", i)
	}
	vesselColors := make([]string, len(d.Vessel))
	for i := range vesselColors {
		vesselColors[i] = "orange"
	}

	coilLabels := make([]string, len(d.Coils))
	coilColors := make([]string, len(d.Coils))
	for i := range d.Coils {
		coilLabels[i] = fmt.Sprintf("Coil %d", i+1)
		coilColors[i] = "darkred"
	}
	for _, i := range invalid {
		coilLabels[i] = fmt.Sprintf("Coil %d (INVALID)", i+1)
		coilColors[i] = "red"
	}

	s := &Scene{
		Traces: []Trace{
			{Name: "VV Outer", Mode: ModeLines, Points: outer, Fill: "rgba(25,31,52,1.0)", Line: "black", LineWidth: 2},
			{Name: "VV Inner", Mode: ModeLines, Points: d.Vessel.Clone(), Fill: "white", Line: "black", LineWidth: 2},
			{Name: "Plasma", Mode: ModeLines, Points: boundary.Clone(), Fill: "rgba(0,100,255,0.3)", Line: "blue", LineWidth: 2},
			{Name: "VV Points", Mode: ModeMarkers, Points: d.Vessel.Clone(), MarkerSize: 15, Colors: vesselColors, Labels: vesselLabels, Interactive: true},
			{Name: "Coils", Mode: ModeMarkers, Points: geometry.Polygon(d.Coils).Clone(), MarkerSize: 18, Colors: coilColors, Labels: coilLabels, Interactive: true},
		},
		Width:   Width,
		Height:  Height,
		XTitle:  "R (m)",
		YTitle:  "Z (m)",
		Valid:   valid,
		Invalid: invalid,
	}

	b := outer.Bounds().Union(boundary.Bounds())
	for _, c := range d.Coils {
		b = b.ExpandToInclude(c)
	}
	s.Bounds = b.Expand(0.3)
	s.Extent = [4]float64{s.Bounds.Min.R, s.Bounds.Min.Z, s.Bounds.Max.R, s.Bounds.Max.Z}
	return s, nil
}

// View returns the world to pixel transform for a width x height image.
func (s *Scene) View(width, height int) Matrix2D {
	return Fit(s.Bounds, width, height, 60)
}

// HitTest returns the editable point nearest to pt within tolerance (world
// units). Curves drawn later sit on top and are tested first, so a coil over
// a vessel vertex wins.
func (s *Scene) HitTest(pt geometry.Point, tolerance float64) (editor.SelectionEvent, bool) {
	for ci := len(s.Traces) - 1; ci >= 0; ci-- {
		t := s.Traces[ci]
		if !t.Interactive {
			continue
		}
		best, bestDist := -1, math.Inf(1)
		for i, p := range t.Points {
			if d := p.Dist(pt); d <= tolerance && d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			return editor.SelectionEvent{CurveIndex: ci, PointIndex: best}, true
		}
	}
	return editor.SelectionEvent{}, false
}

// HitTestPixel is HitTest for a click at pixel (x, y) in an image drawn with
// view. The tolerance is in pixels.
func (s *Scene) HitTestPixel(view Matrix2D, x, y, tolerance float64) (editor.SelectionEvent, bool) {
	r, z := view.Invert().TransformPoint(x, y)
	scale := view[0]
	if scale <= 0 {
		return editor.SelectionEvent{}, false
	}
	return s.HitTest(geometry.Pt(r, z), tolerance/scale)
}
