// Package record freezes a design into the locked record handed to the
// analysis pipeline, and persists those records.
package record

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
	"github.com/inamate/tokamak/internal/typeid"
)

// TimestampLayout is YYYYMMDD_HHMMSS, used for both the record timestamp
// and its file name.
const TimestampLayout = "20060102_150405"

var (
	ErrNotFound    = errors.New("record not found")
	ErrPartialSave = errors.New("record saved with mirror failures")
)

// Store persists locked records.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Latest(ctx context.Context) (*Record, error)
	List(ctx context.Context) ([]Summary, error)
}

type Vessel struct {
	BoundaryCoordinates geometry.Polygon `json:"boundary_coordinates"`
}

type Validation struct {
	ValidCoils   []int `json:"valid_coils"`
	InvalidCoils []int `json:"invalid_coils"`
}

// Record is an immutable snapshot of a design at lock time. The JSON layout
// is what the analysis notebook reads.
type Record struct {
	ID               string                `json:"id"`
	Timestamp        string                `json:"timestamp"`
	PlasmaParameters plasma.Shape          `json:"plasma_parameters"`
	AdvancedSettings design.AdvancedParams `json:"advanced_settings"`
	VacuumVessel     Vessel                `json:"vacuum_vessel"`
	CoilCoordinates  []geometry.Point      `json:"coil_coordinates"`
	Validation       Validation            `json:"validation"`
}

// Lock recomputes the plasma boundary for d, classifies every coil without
// moving any, and packages the result. A coil is invalid when it sits inside
// the vessel or inside the plasma.
func Lock(d design.Design, gen plasma.Generator, now time.Time) (*Record, error) {
	boundary, err := plasma.Boundary(gen, d.Shape)
	if err != nil {
		return nil, fmt.Errorf("lock design: %w", err)
	}
	valid, invalid, err := geometry.ClassifyCoils(d.Coils, d.Vessel, boundary)
	if err != nil {
		return nil, fmt.Errorf("lock design: %w", err)
	}

	coils := geometry.Polygon(d.Coils).Clone()
	if coils == nil {
		coils = geometry.Polygon{}
	}
	return &Record{
		ID:               typeid.NewRecordID(),
		Timestamp:        now.Format(TimestampLayout),
		PlasmaParameters: d.Shape,
		AdvancedSettings: d.Advanced,
		VacuumVessel:     Vessel{BoundaryCoordinates: d.Vessel.Clone()},
		CoilCoordinates:  coils,
		Validation:       Validation{ValidCoils: valid, InvalidCoils: invalid},
	}, nil
}

// FileName is the name the record is written under.
func (r *Record) FileName() string {
	return "design_" + r.Timestamp + ".json"
}

// LockedAt parses the record timestamp in loc.
func (r *Record) LockedAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, r.Timestamp, loc)
}

// Summary is the short status shown after locking.
type Summary struct {
	ID           string       `json:"id"`
	Timestamp    string       `json:"timestamp"`
	Shape        plasma.Shape `json:"shape"`
	ValidCoils   int          `json:"validCoils"`
	TotalCoils   int          `json:"totalCoils"`
	InvalidCoils []int        `json:"invalidCoils"`
}

func (r *Record) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		Shape:        r.PlasmaParameters,
		ValidCoils:   len(r.Validation.ValidCoils),
		TotalCoils:   len(r.CoilCoordinates),
		InvalidCoils: slices.Clone(r.Validation.InvalidCoils),
	}
}
