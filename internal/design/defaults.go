package design

import (
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
)

// DefaultVessel returns a fresh copy of the eight-vertex starting vessel.
func DefaultVessel() geometry.Polygon {
	return geometry.Polygon{
		{R: 3.25, Z: -0.75}, {R: 3.75, Z: -1.25}, {R: 4.5, Z: -1.85}, {R: 6.0, Z: -1.85},
		{R: 6.0, Z: 1.85}, {R: 4.5, Z: 1.85}, {R: 3.75, Z: 1.25}, {R: 3.25, Z: 1.0},
	}
}

// DefaultCoils returns a fresh copy of the eight-coil starting layout, all
// of which sit clear of the default vessel and plasma.
func DefaultCoils() []geometry.Point {
	return []geometry.Point{
		{R: 4.0, Z: 2.5}, {R: 4.0, Z: -2.5}, {R: 5.25, Z: 2.25}, {R: 5.25, Z: -2.25},
		{R: 6.5, Z: 0.5}, {R: 6.5, Z: -0.5}, {R: 2.8, Z: 0.25}, {R: 2.8, Z: -0.25},
	}
}

func DefaultAdvanced() AdvancedParams {
	return AdvancedParams{
		B0:            11.0,
		IpTarget:      8e6,
		IpRatioTarget: 0.333,
		FFPAlpha:      2.15,
		FFPGamma:      1.7,
		PPAlpha:       2.15,
		PPGamma:       1.7,
	}
}

// DefaultDesign is the state of a new session.
func DefaultDesign() Design {
	return Design{
		Vessel:   DefaultVessel(),
		Coils:    DefaultCoils(),
		Shape:    plasma.DefaultShape(),
		Advanced: DefaultAdvanced(),
	}
}
