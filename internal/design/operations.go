package design

import (
	"errors"
	"fmt"

	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
)

// ResetTarget selects what Reset restores.
type ResetTarget string

const (
	ResetVessel ResetTarget = "vessel"
	ResetCoils  ResetTarget = "coils"
	ResetAll    ResetTarget = "all"
)

// Operation types accepted by Apply.
const (
	OpVesselAdd        = "vessel.add"
	OpVesselRemoveLast = "vessel.removeLast"
	OpCoilAdd          = "coil.add"
	OpCoilRemoveLast   = "coil.removeLast"
	OpPointSet         = "point.set"
	OpCoilsSet         = "coils.set"
	OpShapeSet         = "shape.set"
	OpAdvancedSet      = "advanced.set"
	OpReset            = "reset"
)

var ErrMalformedOperation = errors.New("malformed operation")

// Operation is a serialisable store mutation, as submitted by remote
// clients over the live channel.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// For point.set
	Kind  Kind            `json:"kind,omitempty"`
	Index *int            `json:"index,omitempty"`
	Point *geometry.Point `json:"point,omitempty"`

	// For coils.set
	Coils []geometry.Point `json:"coils,omitempty"`

	// For shape.set / advanced.set
	Shape    *plasma.Shape   `json:"shape,omitempty"`
	Advanced *AdvancedParams `json:"advanced,omitempty"`

	// For reset
	Target ResetTarget `json:"target,omitempty"`
}

// Apply runs op against the store and returns the resulting design version.
func (s *Store) Apply(op Operation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyOperationLocked(op); err != nil {
		return 0, err
	}
	return s.d.Version, nil
}

func (s *Store) applyOperationLocked(op Operation) error {
	var err error
	switch op.Type {
	case OpVesselAdd:
		_, err = s.addVesselVertexLocked()
	case OpVesselRemoveLast:
		_, err = s.removeLastVesselVertexLocked()
	case OpCoilAdd:
		_, err = s.addCoilLocked()
	case OpCoilRemoveLast:
		_, err = s.removeLastCoilLocked()
	case OpPointSet:
		if op.Index == nil || op.Point == nil {
			return fmt.Errorf("%s without index or point: %w", op.Type, ErrMalformedOperation)
		}
		err = s.setVertexLocked(op.Kind, *op.Index, *op.Point)
	case OpCoilsSet:
		err = s.setCoilsLocked(op.Coils)
	case OpShapeSet:
		if op.Shape == nil {
			return fmt.Errorf("%s without shape: %w", op.Type, ErrMalformedOperation)
		}
		err = s.setShapeLocked(*op.Shape)
	case OpAdvancedSet:
		if op.Advanced == nil {
			return fmt.Errorf("%s without params: %w", op.Type, ErrMalformedOperation)
		}
		err = s.setAdvancedLocked(*op.Advanced)
	case OpReset:
		err = s.resetLocked(op.Target)
	default:
		return fmt.Errorf("unknown operation type %q: %w", op.Type, ErrMalformedOperation)
	}
	return err
}
