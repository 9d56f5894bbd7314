package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerate is returned when a polygon has too few vertices (or only
// coincident ones) for the requested operation to be defined.
var ErrDegenerate = errors.New("degenerate polygon")

// Polygon is an ordered, implicitly closed ring of vertices. The last vertex
// connects back to the first.
type Polygon []Point

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Prev returns the vertex before index i, wrapping around.
func (p Polygon) Prev(i int) Point { return p[(i-1+len(p))%len(p)] }

// Next returns the vertex after index i, wrapping around.
func (p Polygon) Next(i int) Point { return p[(i+1)%len(p)] }

// SignedArea uses the shoelace formula. Counter-clockwise rings are positive.
func (p Polygon) SignedArea() float64 {
	var sum float64
	for i, a := range p {
		b := p.Next(i)
		sum += a.R*b.Z - b.R*a.Z
	}
	return sum / 2
}

// Centroid returns the area centroid of the polygon. Rings with no area fall
// back to the vertex average.
func (p Polygon) Centroid() (Point, error) {
	if len(p) < 3 {
		return Point{}, fmt.Errorf("centroid of %d vertices: %w", len(p), ErrDegenerate)
	}
	area := p.SignedArea()
	if math.Abs(area) < 1e-12 {
		var c Point
		for _, v := range p {
			c = c.Add(v)
		}
		return c.Scale(1 / float64(len(p))), nil
	}
	var cr, cz float64
	for i, a := range p {
		b := p.Next(i)
		cross := a.R*b.Z - b.R*a.Z
		cr += (a.R + b.R) * cross
		cz += (a.Z + b.Z) * cross
	}
	f := 1 / (6 * area)
	return Point{cr * f, cz * f}, nil
}

// Bounds returns the axis-aligned bounding box of the polygon.
func (p Polygon) Bounds() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	lo, hi := p[0], p[0]
	for _, v := range p[1:] {
		lo.R = min(lo.R, v.R)
		lo.Z = min(lo.Z, v.Z)
		hi.R = max(hi.R, v.R)
		hi.Z = max(hi.Z, v.Z)
	}
	return Rect{Min: lo, Max: hi}
}

// NearestVertex returns the index of the vertex closest to pt. Ties resolve
// to the lowest index. It returns -1 for an empty polygon.
func (p Polygon) NearestVertex(pt Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, v := range p {
		if d := v.Dist(pt); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Rect is an axis-aligned box in the poloidal plane.
type Rect struct {
	Min Point
	Max Point
}

func (r Rect) Width() float64  { return r.Max.R - r.Min.R }
func (r Rect) Height() float64 { return r.Max.Z - r.Min.Z }

// IsEmpty reports whether the rect has zero or negative area.
func (r Rect) IsEmpty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Contains reports whether pt lies inside the rect, edges included.
func (r Rect) Contains(pt Point) bool {
	return pt.R >= r.Min.R && pt.R <= r.Max.R && pt.Z >= r.Min.Z && pt.Z <= r.Max.Z
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	return Rect{
		Min: Point{min(r.Min.R, other.Min.R), min(r.Min.Z, other.Min.Z)},
		Max: Point{max(r.Max.R, other.Max.R), max(r.Max.Z, other.Max.Z)},
	}
}

// Expand grows the rect by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{Min: Point{r.Min.R - d, r.Min.Z - d}, Max: Point{r.Max.R + d, r.Max.Z + d}}
}

// ExpandToInclude grows the rect to cover pt.
func (r Rect) ExpandToInclude(pt Point) Rect {
	return Rect{
		Min: Point{min(r.Min.R, pt.R), min(r.Min.Z, pt.Z)},
		Max: Point{max(r.Max.R, pt.R), max(r.Max.Z, pt.Z)},
	}
}
