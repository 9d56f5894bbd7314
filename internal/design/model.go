package design

import (
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
)

// Kind names which editable point set a vertex belongs to.
type Kind string

const (
	KindVesselVertex Kind = "vessel_vertex"
	KindCoil         Kind = "coil"
)

func (k Kind) Valid() bool { return k == KindVesselVertex || k == KindCoil }

// AdvancedParams are physics inputs handed through to the analysis pipeline.
// They play no part in the geometry.
type AdvancedParams struct {
	B0            float64 `json:"B0"`
	IpTarget      float64 `json:"Ip_target"`
	IpRatioTarget float64 `json:"Ip_ratio_target"`
	FFPAlpha      float64 `json:"ffp_alpha"`
	FFPGamma      float64 `json:"ffp_gamma"`
	PPAlpha       float64 `json:"pp_alpha"`
	PPGamma       float64 `json:"pp_gamma"`
}

// Design is a point-in-time copy of the store contents.
type Design struct {
	Vessel   geometry.Polygon `json:"vessel"`
	Coils    []geometry.Point `json:"coils"`
	Shape    plasma.Shape     `json:"shape"`
	Advanced AdvancedParams   `json:"advanced"`
	Version  int64            `json:"version"`
}

// Clone returns a deep copy of the design.
func (d Design) Clone() Design {
	out := d
	out.Vessel = d.Vessel.Clone()
	out.Coils = geometry.Polygon(d.Coils).Clone()
	return out
}

// Points returns the point set for kind, or nil for an unknown kind.
func (d Design) Points(kind Kind) []geometry.Point {
	switch kind {
	case KindVesselVertex:
		return d.Vessel
	case KindCoil:
		return d.Coils
	}
	return nil
}
