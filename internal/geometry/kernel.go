package geometry

import (
	"fmt"
)

// OffsetPolygon builds the wall outline drawn around the vessel. Vertex i of
// the result is the previous input vertex moved distance along the unit
// direction from the previous to the next vertex (cyclic). This displaces
// along the local tangent, not the normal, so it only approximates a parallel
// offset for smooth rings and distances small against the local curvature
// radius.
//
// When prev and next coincide the direction of the preceding vertex is
// reused; the first vertex borrows the first non-zero direction in the ring.
func OffsetPolygon(poly Polygon, distance float64) (Polygon, error) {
	n := len(poly)
	if n < 2 {
		return nil, fmt.Errorf("offset %d vertices: %w", n, ErrDegenerate)
	}

	dirs := make([]Point, n)
	seed := -1
	for i := range poly {
		v := poly.Next(i).Sub(poly.Prev(i))
		if l := v.Norm(); l > 0 {
			dirs[i] = v.Scale(1 / l)
			if seed < 0 {
				seed = i
			}
		}
	}
	if seed < 0 {
		return nil, fmt.Errorf("offset: all tangents vanish: %w", ErrDegenerate)
	}

	out := make(Polygon, n)
	last := dirs[seed]
	for i := range poly {
		if dirs[i] == (Point{}) {
			dirs[i] = last
		}
		last = dirs[i]
		out[i] = poly.Prev(i).Add(dirs[i].Scale(distance))
	}
	return out, nil
}

// PointInPolygon is an even-odd ray cast towards +R. An edge is crossed when
// pt.Z lies in (min(z1,z2), max(z1,z2)] and pt.R is at or left of the edge
// at that height. Horizontal edges never satisfy the half-open interval and
// are skipped before any intersection is computed.
func PointInPolygon(pt Point, poly Polygon) (bool, error) {
	n := len(poly)
	if n < 3 {
		return false, fmt.Errorf("containment in %d vertices: %w", n, ErrDegenerate)
	}

	inside := false
	a := poly[n-1]
	for _, b := range poly {
		if a.Z != b.Z && pt.Z > min(a.Z, b.Z) && pt.Z <= max(a.Z, b.Z) {
			xr := (pt.Z-a.Z)*(b.R-a.R)/(b.Z-a.Z) + a.R
			if pt.R <= xr {
				inside = !inside
			}
		}
		a = b
	}
	return inside, nil
}

// ValidateCoilPositions pushes every coil that sits inside the vessel out to
// safetyMargin beyond the nearest vessel vertex, on the line running from
// the coil through that vertex. A coil that coincides with the vertex moves
// along +R. Coils outside the vessel are returned unchanged.
//
// plasmaBoundary is accepted but not consulted: only vessel overlap triggers
// a move. Overlap with the plasma is reported by ClassifyCoils instead.
func ValidateCoilPositions(coils []Point, vessel, plasmaBoundary Polygon, safetyMargin float64) ([]Point, error) {
	out := make([]Point, len(coils))
	for i, c := range coils {
		inside, err := PointInPolygon(c, vessel)
		if err != nil {
			return nil, fmt.Errorf("coil %d: %w", i, err)
		}
		if !inside {
			out[i] = c
			continue
		}

		v := vessel[vessel.NearestVertex(c)]
		dir := v.Sub(c)
		if l := dir.Norm(); l > 0 {
			dir = dir.Scale(1 / l)
		} else {
			dir = Point{1, 0}
		}
		out[i] = v.Add(dir.Scale(safetyMargin))
	}
	return out, nil
}

// CoilStatus is the containment state of a single coil.
type CoilStatus struct {
	InsideVessel bool `json:"insideVessel"`
	InsidePlasma bool `json:"insidePlasma"`
}

// Valid reports whether the coil clears both the vessel and the plasma.
func (s CoilStatus) Valid() bool { return !s.InsideVessel && !s.InsidePlasma }

// CheckCoil tests one coil position against the vessel and plasma boundary.
func CheckCoil(c Point, vessel, plasmaBoundary Polygon) (CoilStatus, error) {
	inVessel, err := PointInPolygon(c, vessel)
	if err != nil {
		return CoilStatus{}, fmt.Errorf("vessel: %w", err)
	}
	inPlasma, err := PointInPolygon(c, plasmaBoundary)
	if err != nil {
		return CoilStatus{}, fmt.Errorf("plasma: %w", err)
	}
	return CoilStatus{InsideVessel: inVessel, InsidePlasma: inPlasma}, nil
}

// ClassifyCoils splits coil indices into valid and invalid sets without
// moving anything. A coil is invalid when it is inside the vessel or inside
// the plasma boundary. Both slices are non-nil.
func ClassifyCoils(coils []Point, vessel, plasmaBoundary Polygon) (valid, invalid []int, err error) {
	valid, invalid = []int{}, []int{}
	for i, c := range coils {
		st, err := CheckCoil(c, vessel, plasmaBoundary)
		if err != nil {
			return nil, nil, fmt.Errorf("coil %d: %w", i, err)
		}
		if st.Valid() {
			valid = append(valid, i)
		} else {
			invalid = append(invalid, i)
		}
	}
	return valid, invalid, nil
}
