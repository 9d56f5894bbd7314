package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vessel = Polygon{
	{3.25, -0.75}, {3.75, -1.25}, {4.5, -1.85}, {6.0, -1.85},
	{6.0, 1.85}, {4.5, 1.85}, {3.75, 1.25}, {3.25, 1.0},
}

func regularPolygon(n int, c Point, r float64) Polygon {
	p := make(Polygon, n)
	for i := range p {
		th := 2 * math.Pi * float64(i) / float64(n)
		p[i] = Point{c.R + r*math.Cos(th), c.Z + r*math.Sin(th)}
	}
	return p
}

func TestPointInPolygon(t *testing.T) {
	convex := map[string]Polygon{
		"square":     {{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		"triangle":   {{0, 0}, {4, 0}, {2, 3}},
		"hexagon":    regularPolygon(6, Point{4.5, 0}, 1.5),
		"clockwise":  {{0, 0}, {0, 2}, {3, 2}, {3, 0}},
		"circle-ish": regularPolygon(64, Point{-2, 7}, 0.25),
	}

	for name, poly := range convex {
		t.Run(name, func(t *testing.T) {
			c, err := poly.Centroid()
			require.NoError(t, err)

			in, err := PointInPolygon(c, poly)
			require.NoError(t, err)
			assert.True(t, in, "centroid %v should be inside", c)

			b := poly.Bounds()
			far := Point{b.Max.R + 100, b.Max.Z + 100}
			in, err = PointInPolygon(far, poly)
			require.NoError(t, err)
			assert.False(t, in)
		})
	}

	t.Run("should not double count a shared vertex", func(t *testing.T) {
		diamond := Polygon{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
		in, err := PointInPolygon(Point{-0.5, 0}, diamond)
		require.NoError(t, err)
		assert.True(t, in)

		in, err = PointInPolygon(Point{-2, 0}, diamond)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("should ignore horizontal edges at the query height", func(t *testing.T) {
		// Edge (3,1)-(1,1) is horizontal and level with the query point.
		poly := Polygon{{0, 0}, {4, 0}, {4, 2}, {3, 1}, {1, 1}, {0, 2}}
		in, err := PointInPolygon(Point{2, 1}, poly)
		require.NoError(t, err)
		assert.True(t, in)

		in, err = PointInPolygon(Point{2, 0.5}, poly)
		require.NoError(t, err)
		assert.True(t, in)

		in, err = PointInPolygon(Point{2, 1.5}, poly)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("should handle a concave vessel", func(t *testing.T) {
		in, err := PointInPolygon(Point{4.5, 0}, vessel)
		require.NoError(t, err)
		assert.True(t, in)

		in, err = PointInPolygon(Point{2.8, 0.25}, vessel)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("should reject fewer than three vertices", func(t *testing.T) {
		_, err := PointInPolygon(Point{}, Polygon{{0, 0}, {1, 1}})
		assert.ErrorIs(t, err, ErrDegenerate)
	})
}

func TestOffsetPolygon(t *testing.T) {
	t.Run("zero distance reproduces the previous vertex", func(t *testing.T) {
		out, err := OffsetPolygon(vessel, 0)
		require.NoError(t, err)
		require.Len(t, out, len(vessel))
		for i := range vessel {
			assert.Equal(t, vessel.Prev(i), out[i], "vertex %d", i)
		}
	})

	t.Run("displacement follows the prev to next tangent", func(t *testing.T) {
		square := Polygon{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
		out, err := OffsetPolygon(square, 0.5)
		require.NoError(t, err)

		// Vertex 1: prev (0,0), next (2,2), unit (1,1)/sqrt2.
		d := 0.5 / math.Sqrt2
		assert.InDelta(t, d, out[1].R, 1e-12)
		assert.InDelta(t, d, out[1].Z, 1e-12)
		for i := range square {
			assert.InDelta(t, 0.5, out[i].Dist(square.Prev(i)), 1e-12)
		}
	})

	t.Run("tangential approximation stays close on a smooth ring", func(t *testing.T) {
		// Only a rough parallel offset: for a fine circle each new vertex is
		// about distance away from the ring, along its tangent.
		ring := regularPolygon(360, Point{}, 10)
		out, err := OffsetPolygon(ring, 0.04)
		require.NoError(t, err)
		for i, p := range out {
			assert.InDelta(t, 0.04, p.Dist(ring.Prev(i)), 1e-9)
			assert.InDelta(t, 10, p.Norm(), 0.2)
		}
	})

	t.Run("zero-length tangent reuses a neighbouring direction", func(t *testing.T) {
		// Vertex 1 has prev == next.
		poly := Polygon{{0, 0}, {1, 0}, {0, 0}, {0, 1}}
		out, err := OffsetPolygon(poly, 1)
		require.NoError(t, err)
		for _, p := range out {
			assert.True(t, p.IsFinite())
		}
	})

	t.Run("should reject fewer than two vertices", func(t *testing.T) {
		_, err := OffsetPolygon(Polygon{{1, 1}}, 0.1)
		assert.ErrorIs(t, err, ErrDegenerate)
	})

	t.Run("should reject rings without any tangent", func(t *testing.T) {
		_, err := OffsetPolygon(Polygon{{1, 1}, {3, 3}}, 0.1)
		assert.ErrorIs(t, err, ErrDegenerate)
	})
}

func TestValidateCoilPositions(t *testing.T) {
	const margin = 0.5

	t.Run("should move a coil inside the vessel past the nearest vertex", func(t *testing.T) {
		coil := Point{4.5, 0}
		out, err := ValidateCoilPositions([]Point{coil}, vessel, nil, margin)
		require.NoError(t, err)
		require.Len(t, out, 1)

		nearest := vessel[vessel.NearestVertex(coil)]
		assert.Equal(t, Point{3.25, -0.75}, nearest)
		assert.InDelta(t, margin, out[0].Dist(nearest), 1e-12)

		// Collinear with the coil and the vertex.
		a, b := out[0].Sub(nearest), coil.Sub(nearest)
		assert.InDelta(t, 0, a.R*b.Z-a.Z*b.R, 1e-12)

		in, err := PointInPolygon(out[0], vessel)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("should clear a coil sitting at the vessel centroid", func(t *testing.T) {
		c, err := vessel.Centroid()
		require.NoError(t, err)

		out, err := ValidateCoilPositions([]Point{c}, vessel, nil, margin)
		require.NoError(t, err)
		in, err := PointInPolygon(out[0], vessel)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("should pass through coils outside the vessel", func(t *testing.T) {
		coils := []Point{{4.0, 2.5}, {2.8, -0.25}}
		out, err := ValidateCoilPositions(coils, vessel, nil, margin)
		require.NoError(t, err)
		assert.Equal(t, coils, out)
	})

	t.Run("should ignore the plasma boundary when moving", func(t *testing.T) {
		plasma := regularPolygon(30, Point{2.8, 0.25}, 0.3)
		coil := Point{2.8, 0.25}
		out, err := ValidateCoilPositions([]Point{coil}, vessel, plasma, margin)
		require.NoError(t, err)
		assert.Equal(t, coil, out[0])
	})

	t.Run("should use +R when the coil sits on a vertex", func(t *testing.T) {
		// The ray cast counts the apex (2, 1) as inside.
		tri := Polygon{{0, 0}, {2, 1}, {0, 2}}
		out, err := ValidateCoilPositions([]Point{{2, 1}}, tri, nil, margin)
		require.NoError(t, err)
		assert.Equal(t, Point{2.5, 1}, out[0])
	})

	t.Run("should accept an empty coil set", func(t *testing.T) {
		out, err := ValidateCoilPositions(nil, vessel, nil, margin)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestClassifyCoils(t *testing.T) {
	plasma := regularPolygon(30, Point{4.55, 0}, 1.2)
	coils := []Point{
		{4.0, 2.5},  // clear
		{4.5, 0},    // in vessel and plasma
		{3.4, 1.05}, // in vessel only
		{7.0, 0},    // clear
	}

	valid, invalid, err := ClassifyCoils(coils, vessel, plasma)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, valid)
	assert.Equal(t, []int{1, 2}, invalid)

	t.Run("plasma overlap alone is invalid", func(t *testing.T) {
		far := regularPolygon(16, Point{10, 10}, 1)
		st, err := CheckCoil(Point{10, 10}, vessel, far)
		require.NoError(t, err)
		assert.False(t, st.InsideVessel)
		assert.True(t, st.InsidePlasma)
		assert.False(t, st.Valid())
	})

	t.Run("empty input yields empty, non-nil sets", func(t *testing.T) {
		valid, invalid, err := ClassifyCoils(nil, vessel, plasma)
		require.NoError(t, err)
		assert.NotNil(t, valid)
		assert.NotNil(t, invalid)
	})
}

func TestPointJSON(t *testing.T) {
	data, err := json.Marshal(Polygon{{3.25, -0.75}, {4, 2.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[3.25,-0.75],[4,2.5]]`, string(data))

	var p Point
	require.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &p))
	require.NoError(t, json.Unmarshal([]byte(`[6.5,-0.5]`), &p))
	assert.Equal(t, Point{6.5, -0.5}, p)
}
