// Package geometry is the pure kernel behind the design editor: points and
// polygons in the (R, Z) poloidal plane, containment tests, the tangential
// wall offset and coil clearance checks. Nothing in here holds state.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a position in the poloidal plane. R is the major-radius
// coordinate and Z the vertical one, both in meters.
type Point struct {
	R float64
	Z float64
}

// Pt is shorthand for Point{R: r, Z: z}.
func Pt(r, z float64) Point { return Point{R: r, Z: z} }

func (p Point) Add(q Point) Point      { return Point{p.R + q.R, p.Z + q.Z} }
func (p Point) Sub(q Point) Point      { return Point{p.R - q.R, p.Z - q.Z} }
func (p Point) Scale(s float64) Point  { return Point{p.R * s, p.Z * s} }
func (p Point) Norm() float64          { return math.Hypot(p.R, p.Z) }
func (p Point) Dist(q Point) float64   { return p.Sub(q).Norm() }
func (p Point) Midpoint(q Point) Point { return Point{(p.R + q.R) / 2, (p.Z + q.Z) / 2} }
func (p Point) String() string         { return fmt.Sprintf("(%.3f, %.3f)", p.R, p.Z) }
func (p Point) IsFinite() bool         { return finite(p.R) && finite(p.Z) }
func (p Point) Equal(q Point) bool     { return p.R == q.R && p.Z == q.Z }
func (p Point) Within(q Point, eps float64) bool {
	return math.Abs(p.R-q.R) <= eps && math.Abs(p.Z-q.Z) <= eps
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// MarshalJSON encodes a point as a two element array, the layout the
// analysis pipeline reads coordinates in.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.R, p.Z})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode point: want 2 coordinates, got %d", len(pair))
	}
	p.R, p.Z = pair[0], pair[1]
	return nil
}
