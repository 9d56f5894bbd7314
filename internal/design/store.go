// Package design holds the authoritative vessel, coil and parameter state of
// one editing session.
package design

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
)

var (
	ErrVesselFloor      = errors.New("vessel needs at least 4 vertices")
	ErrVesselCeiling    = errors.New("vessel vertex limit reached")
	ErrCoilFloor        = errors.New("coil count at minimum")
	ErrCoilCeiling      = errors.New("coil count at maximum")
	ErrTooFewPoints     = errors.New("need at least 2 points to derive a midpoint")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrUnknownKind      = errors.New("unknown point kind")
	ErrNonFinite        = errors.New("coordinate is not finite")
	ErrInvalidAdvanced  = errors.New("advanced parameter is not finite")
	ErrUnknownResetKind = errors.New("unknown reset target")
)

// Policy bounds the number of points the store will hold. The geometry
// kernel itself accepts any count; these limits are editor policy.
type Policy struct {
	MinVessel int `json:"minVessel"`
	MaxVessel int `json:"maxVessel"`
	MinCoils  int `json:"minCoils"`
	MaxCoils  int `json:"maxCoils"`
}

func DefaultPolicy() Policy {
	return Policy{MinVessel: 4, MaxVessel: 64, MinCoils: 4, MaxCoils: 8}
}

type Option func(*Store)

// WithSeed makes vertex insertion reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Store) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithDesign starts the store from d instead of the defaults.
func WithDesign(d Design) Option {
	return func(s *Store) { s.d = d.Clone() }
}

// Store is the single source of truth for a design. Every method is atomic:
// readers never observe a half-applied mutation.
type Store struct {
	mu     sync.RWMutex
	d      Design
	rng    *rand.Rand
	policy Policy
}

// NewStore creates a store holding the default design.
func NewStore(opts ...Option) *Store {
	s := &Store{
		d:      DefaultDesign(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current design.
func (s *Store) Snapshot() Design {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.Clone()
}

func (s *Store) Policy() Policy { return s.policy }

// Vertex returns the current coordinates of one point.
func (s *Store) Vertex(kind Kind, index int) (geometry.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, err := s.pointsLocked(kind)
	if err != nil {
		return geometry.Point{}, err
	}
	if index < 0 || index >= len(pts) {
		return geometry.Point{}, fmt.Errorf("%s %d of %d: %w", kind, index, len(pts), ErrIndexOutOfRange)
	}
	return pts[index], nil
}

// AddVesselVertex appends the midpoint of two distinct vessel vertices chosen
// uniformly at random.
func (s *Store) AddVesselVertex() (geometry.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addVesselVertexLocked()
}

// RemoveLastVesselVertex drops the last vertex unless that would leave fewer
// than the policy minimum. A refusal leaves the vessel untouched.
func (s *Store) RemoveLastVesselVertex() (geometry.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLastVesselVertexLocked()
}

// AddCoil appends the midpoint of two distinct coils, up to the policy cap.
func (s *Store) AddCoil() (geometry.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCoilLocked()
}

func (s *Store) RemoveLastCoil() (geometry.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLastCoilLocked()
}

func (s *Store) ResetVessel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.resetLocked(ResetVessel)
}

func (s *Store) ResetCoils() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.resetLocked(ResetCoils)
}

// ResetAll restores the default geometry and parameters.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.resetLocked(ResetAll)
}

// Reset dispatches on a named target.
func (s *Store) Reset(target ResetTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(target)
}

// SetVertex overwrites one point.
func (s *Store) SetVertex(kind Kind, index int, pt geometry.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVertexLocked(kind, index, pt)
}

// SetCoils replaces the whole coil set, e.g. with auto-corrected positions.
func (s *Store) SetCoils(coils []geometry.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCoilsLocked(coils)
}

func (s *Store) SetShape(shape plasma.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setShapeLocked(shape)
}

func (s *Store) SetAdvanced(p AdvancedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAdvancedLocked(p)
}

// --- locked helpers (caller must hold s.mu) ---

func (s *Store) pointsLocked(kind Kind) ([]geometry.Point, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	return s.d.Points(kind), nil
}

// midpointLocked picks i uniformly, then j uniformly from the rest.
func (s *Store) midpointLocked(pts []geometry.Point) (geometry.Point, error) {
	n := len(pts)
	if n < 2 {
		return geometry.Point{}, fmt.Errorf("have %d: %w", n, ErrTooFewPoints)
	}
	i := s.rng.IntN(n)
	j := s.rng.IntN(n - 1)
	if j >= i {
		j++
	}
	return pts[i].Midpoint(pts[j]), nil
}

func (s *Store) addVesselVertexLocked() (geometry.Point, error) {
	if len(s.d.Vessel) >= s.policy.MaxVessel {
		return geometry.Point{}, fmt.Errorf("add vessel vertex: %w", ErrVesselCeiling)
	}
	mid, err := s.midpointLocked(s.d.Vessel)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("add vessel vertex: %w", err)
	}
	s.d.Vessel = append(s.d.Vessel, mid)
	s.d.Version++
	return mid, nil
}

func (s *Store) removeLastVesselVertexLocked() (geometry.Point, error) {
	n := len(s.d.Vessel)
	if n-1 < s.policy.MinVessel {
		return geometry.Point{}, fmt.Errorf("remove vessel vertex at %d: %w", n, ErrVesselFloor)
	}
	last := s.d.Vessel[n-1]
	s.d.Vessel = s.d.Vessel[:n-1]
	s.d.Version++
	return last, nil
}

func (s *Store) addCoilLocked() (geometry.Point, error) {
	if len(s.d.Coils) >= s.policy.MaxCoils {
		return geometry.Point{}, fmt.Errorf("add coil: %w", ErrCoilCeiling)
	}
	mid, err := s.midpointLocked(s.d.Coils)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("add coil: %w", err)
	}
	s.d.Coils = append(s.d.Coils, mid)
	s.d.Version++
	return mid, nil
}

func (s *Store) removeLastCoilLocked() (geometry.Point, error) {
	n := len(s.d.Coils)
	if n <= s.policy.MinCoils {
		return geometry.Point{}, fmt.Errorf("remove coil at %d: %w", n, ErrCoilFloor)
	}
	last := s.d.Coils[n-1]
	s.d.Coils = s.d.Coils[:n-1]
	s.d.Version++
	return last, nil
}

func (s *Store) resetLocked(target ResetTarget) error {
	switch target {
	case ResetVessel:
		s.d.Vessel = DefaultVessel()
	case ResetCoils:
		s.d.Coils = DefaultCoils()
	case ResetAll:
		version := s.d.Version
		s.d = DefaultDesign()
		s.d.Version = version
	default:
		return fmt.Errorf("%q: %w", target, ErrUnknownResetKind)
	}
	s.d.Version++
	return nil
}

func (s *Store) setVertexLocked(kind Kind, index int, pt geometry.Point) error {
	pts, err := s.pointsLocked(kind)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pts) {
		return fmt.Errorf("set %s %d of %d: %w", kind, index, len(pts), ErrIndexOutOfRange)
	}
	if !pt.IsFinite() {
		return fmt.Errorf("set %s %d: %w", kind, index, ErrNonFinite)
	}
	pts[index] = pt
	s.d.Version++
	return nil
}

func (s *Store) setCoilsLocked(coils []geometry.Point) error {
	for i, c := range coils {
		if !c.IsFinite() {
			return fmt.Errorf("set coil %d: %w", i, ErrNonFinite)
		}
	}
	s.d.Coils = geometry.Polygon(coils).Clone()
	if s.d.Coils == nil {
		s.d.Coils = []geometry.Point{}
	}
	s.d.Version++
	return nil
}

func (s *Store) setShapeLocked(shape plasma.Shape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("set shape: %w", err)
	}
	s.d.Shape = shape
	s.d.Version++
	return nil
}

func (s *Store) setAdvancedLocked(p AdvancedParams) error {
	for _, v := range []float64{p.B0, p.IpTarget, p.IpRatioTarget, p.FFPAlpha, p.FFPGamma, p.PPAlpha, p.PPGamma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("set advanced: %w", ErrInvalidAdvanced)
		}
	}
	s.d.Advanced = p
	s.d.Version++
	return nil
}
