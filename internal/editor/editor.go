// Package editor turns point selections on the rendered design into edit
// sessions that either commit a new coordinate or roll back cleanly.
package editor

import (
	"errors"
	"fmt"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
	"github.com/inamate/tokamak/internal/typeid"
)

var (
	ErrUnrecognizedSelection = errors.New("unrecognized selection")
	ErrSessionActive         = errors.New("edit session already active")
	ErrNoSession             = errors.New("no active edit session")
	ErrOutOfRange            = errors.New("candidate outside editing range")
)

// State of the editor.
type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "editing":
		*s = Editing
	default:
		return fmt.Errorf("unknown editor state %q", b)
	}
	return nil
}

// Limits bound the coordinates a candidate may take while editing.
type Limits struct {
	RMin float64 `json:"rMin"`
	RMax float64 `json:"rMax"`
	ZMin float64 `json:"zMin"`
	ZMax float64 `json:"zMax"`
	Step float64 `json:"step"`
}

func (l Limits) Contains(p geometry.Point) bool {
	return p.R >= l.RMin && p.R <= l.RMax && p.Z >= l.ZMin && p.Z <= l.ZMax
}

var (
	VesselLimits = Limits{RMin: 0.5, RMax: 8.0, ZMin: -3.0, ZMax: 3.0, Step: 0.1}
	CoilLimits   = Limits{RMin: 1.0, RMax: 8.0, ZMin: -4.0, ZMax: 4.0, Step: 0.05}
)

// LimitsFor returns the editing range for kind.
func LimitsFor(kind design.Kind) Limits {
	if kind == design.KindCoil {
		return CoilLimits
	}
	return VesselLimits
}

// Target identifies one editable point.
type Target struct {
	Kind  design.Kind `json:"kind"`
	Index int         `json:"index"`
}

// Session is the transient state between a selection and its resolution.
type Session struct {
	ID        string         `json:"id"`
	Target    Target         `json:"target"`
	Original  geometry.Point `json:"original"`
	Candidate geometry.Point `json:"candidate"`
	Adjusted  bool           `json:"adjusted"`
}

// Preview reports what a candidate would look like if committed. Status is
// set only for coils.
type Preview struct {
	Target    Target               `json:"target"`
	Candidate geometry.Point       `json:"candidate"`
	Status    *geometry.CoilStatus `json:"status,omitempty"`
	Valid     bool                 `json:"valid"`
}

// Source is the slice of the design store the editor reads and writes.
type Source interface {
	Vertex(kind design.Kind, index int) (geometry.Point, error)
	SetVertex(kind design.Kind, index int, pt geometry.Point) error
	Snapshot() design.Design
}

// Editor is the Idle/Editing state machine. It is not safe for concurrent
// use; callers serialise access.
type Editor struct {
	src     Source
	gen     plasma.Generator
	session *Session
}

func New(src Source, gen plasma.Generator) *Editor {
	if gen == nil {
		gen = plasma.Isoflux{}
	}
	return &Editor{src: src, gen: gen}
}

func (e *Editor) State() State {
	if e.session != nil {
		return Editing
	}
	return Idle
}

// Session returns a copy of the active session, if any.
func (e *Editor) Session() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// Select opens a session on t and snapshots its current coordinates. An
// active session must be committed or cancelled first.
func (e *Editor) Select(t Target) (Session, error) {
	if e.session != nil {
		return Session{}, fmt.Errorf("select %s %d while editing %s %d: %w",
			t.Kind, t.Index, e.session.Target.Kind, e.session.Target.Index, ErrSessionActive)
	}
	orig, err := e.src.Vertex(t.Kind, t.Index)
	if err != nil {
		return Session{}, fmt.Errorf("select: %w", err)
	}
	e.session = &Session{
		ID:        typeid.NewSessionID(),
		Target:    t,
		Original:  orig,
		Candidate: orig,
	}
	return *e.session, nil
}

// SelectEvent resolves a render selection and opens a session on it.
// Unrecognised curves leave the editor untouched.
func (e *Editor) SelectEvent(ev SelectionEvent) (Session, error) {
	t, err := Resolve(ev)
	if err != nil {
		return Session{}, err
	}
	return e.Select(t)
}

// Adjust holds pt as the candidate without touching the store. For coils the
// preview reports containment against the current vessel and plasma.
func (e *Editor) Adjust(pt geometry.Point) (Preview, error) {
	if e.session == nil {
		return Preview{}, ErrNoSession
	}
	t := e.session.Target
	if !pt.IsFinite() || !LimitsFor(t.Kind).Contains(pt) {
		return Preview{}, fmt.Errorf("adjust %s %d to %v: %w", t.Kind, t.Index, pt, ErrOutOfRange)
	}

	p := Preview{Target: t, Candidate: pt, Valid: true}
	if t.Kind == design.KindCoil {
		d := e.src.Snapshot()
		boundary, err := plasma.Boundary(e.gen, d.Shape)
		if err != nil {
			return Preview{}, fmt.Errorf("adjust preview: %w", err)
		}
		st, err := geometry.CheckCoil(pt, d.Vessel, boundary)
		if err != nil {
			return Preview{}, fmt.Errorf("adjust preview: %w", err)
		}
		p.Status = &st
		p.Valid = st.Valid()
	}

	e.session.Candidate = pt
	e.session.Adjusted = true
	return p, nil
}

// Commit writes the candidate into the store and returns to Idle. A failed
// write keeps the session open so the caller can retry or cancel.
func (e *Editor) Commit() (Session, error) {
	if e.session == nil {
		return Session{}, ErrNoSession
	}
	s := *e.session
	if err := e.src.SetVertex(s.Target.Kind, s.Target.Index, s.Candidate); err != nil {
		return Session{}, fmt.Errorf("commit: %w", err)
	}
	e.session = nil
	return s, nil
}

// Cancel discards the candidate. The store was never written, so the point
// keeps its pre-selection value.
func (e *Editor) Cancel() (Session, error) {
	if e.session == nil {
		return Session{}, ErrNoSession
	}
	s := *e.session
	e.session = nil
	return s, nil
}

// Abort drops any session without writing, e.g. after a reset replaced the
// geometry underneath it.
func (e *Editor) Abort() bool {
	had := e.session != nil
	e.session = nil
	return had
}
