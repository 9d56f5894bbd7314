// Package plasma produces the plasma boundary polygon from the four shape
// parameters the designer exposes.
package plasma

import (
	"errors"
	"fmt"
	"math"

	"github.com/inamate/tokamak/internal/geometry"
)

// BoundaryPoints is the resolution the editor always requests.
const BoundaryPoints = 30

// ErrOutOfRange is returned when a shape parameter leaves its allowed band.
var ErrOutOfRange = errors.New("shape parameter out of range")

// Range is a closed interval for one slider.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

var (
	MajorRadiusRange   = Range{3.0, 6.0, 0.05}
	MinorRadiusRange   = Range{0.8, 2.0, 0.05}
	ElongationRange    = Range{1.0, 2.0, 0.05}
	TriangularityRange = Range{-0.8, 0.8, 0.05}
)

// Shape holds the plasma cross-section parameters.
type Shape struct {
	MajorRadius   float64 `json:"major_radius"`
	MinorRadius   float64 `json:"minor_radius"`
	Elongation    float64 `json:"elongation"`
	Triangularity float64 `json:"triangularity"`
}

// DefaultShape is the starting point of every session.
func DefaultShape() Shape {
	return Shape{
		MajorRadius:   4.55,
		MinorRadius:   1.2,
		Elongation:    1.4,
		Triangularity: -0.5,
	}
}

// Validate checks every parameter against its range.
func (s Shape) Validate() error {
	checks := []struct {
		name string
		v    float64
		r    Range
	}{
		{"major_radius", s.MajorRadius, MajorRadiusRange},
		{"minor_radius", s.MinorRadius, MinorRadiusRange},
		{"elongation", s.Elongation, ElongationRange},
		{"triangularity", s.Triangularity, TriangularityRange},
	}
	for _, c := range checks {
		if !c.r.Contains(c.v) {
			return fmt.Errorf("%s=%g not in [%g, %g]: %w", c.name, c.v, c.r.Min, c.r.Max, ErrOutOfRange)
		}
	}
	return nil
}

// Generator turns shape parameters into an ordered boundary polygon.
type Generator interface {
	Generate(n int, majorRadius, zOffset, minorRadius, elongation, triangularity float64) (geometry.Polygon, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(n int, majorRadius, zOffset, minorRadius, elongation, triangularity float64) (geometry.Polygon, error)

func (f GeneratorFunc) Generate(n int, r0, z0, a, kappa, delta float64) (geometry.Polygon, error) {
	return f(n, r0, z0, a, kappa, delta)
}

// Isoflux samples the up-down symmetric Miller parameterisation
//
//	R(θ) = R0 + a·cos(θ + asin(δ)·sin θ)
//	Z(θ) = Z0 + κ·a·sin θ
//
// at n evenly spaced angles starting from the outboard midplane.
type Isoflux struct{}

func (Isoflux) Generate(n int, r0, z0, a, kappa, delta float64) (geometry.Polygon, error) {
	if n < 3 {
		return nil, fmt.Errorf("isoflux with %d points: %w", n, geometry.ErrDegenerate)
	}
	if delta < -1 || delta > 1 {
		return nil, fmt.Errorf("triangularity %g outside [-1, 1]: %w", delta, ErrOutOfRange)
	}
	shift := math.Asin(delta)
	pts := make(geometry.Polygon, n)
	for i := range pts {
		th := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = geometry.Point{
			R: r0 + a*math.Cos(th+shift*math.Sin(th)),
			Z: z0 + kappa*a*math.Sin(th),
		}
	}
	return pts, nil
}

// Boundary derives the plasma boundary for s the way the editor always does:
// BoundaryPoints samples centred on the midplane.
func Boundary(g Generator, s Shape) (geometry.Polygon, error) {
	if g == nil {
		g = Isoflux{}
	}
	poly, err := g.Generate(BoundaryPoints, s.MajorRadius, 0.0, s.MinorRadius, s.Elongation, s.Triangularity)
	if err != nil {
		return nil, fmt.Errorf("generate plasma boundary: %w", err)
	}
	return poly, nil
}
