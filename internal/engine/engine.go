// Package engine owns a design session: the design store, the point editor
// and everything that happens after a design is locked. HTTP handlers, the
// live channel and the browser build all drive it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/inamate/tokamak/internal/analysis"
	"github.com/inamate/tokamak/internal/asset"
	"github.com/inamate/tokamak/internal/cache"
	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/plasma"
	"github.com/inamate/tokamak/internal/record"
	"github.com/inamate/tokamak/internal/render"
)

var (
	ErrNotLocked   = errors.New("design is not locked")
	ErrUnavailable = errors.New("not available in this build")
	ErrNothingHit  = errors.New("no editable point under cursor")
)

const (
	DefaultSafetyMargin = 0.5
	DefaultVesselWall   = 0.04
)

// Config wires the engine to its collaborators. Only the design side is
// required; lock, run and result operations report ErrUnavailable when
// their dependency is missing.
type Config struct {
	Generator    plasma.Generator
	SafetyMargin float64
	VesselWall   float64

	Records    record.Store
	RecordsDir string
	Cache      cache.Cache
	Runner     *analysis.Runner
	Results    *asset.Handler

	Now func() time.Time
}

// Engine serialises every design and editor operation behind one mutex.
type Engine struct {
	mu     sync.Mutex
	store  *design.Store
	editor *editor.Editor
	cfg    Config

	listenersMu sync.RWMutex
	listeners   []func()
}

// New creates an engine around store.
func New(store *design.Store, cfg Config) *Engine {
	if cfg.Generator == nil {
		cfg.Generator = plasma.Isoflux{}
	}
	if cfg.SafetyMargin == 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.VesselWall == 0 {
		cfg.VesselWall = DefaultVesselWall
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:  store,
		editor: editor.New(store, cfg.Generator),
		cfg:    cfg,
	}
}

// OnChange registers fn to be called after every successful mutation of the
// design. fn runs outside the engine lock.
func (e *Engine) OnChange(fn func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) notify() {
	e.listenersMu.RLock()
	fns := append([]func(){}, e.listeners...)
	e.listenersMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// --- Queries ---

// View is the design plus everything derived from it.
type View struct {
	Design   design.Design                 `json:"design"`
	Boundary geometry.Polygon              `json:"plasmaBoundary"`
	Outer    geometry.Polygon              `json:"vesselOuter"`
	Valid    []int                         `json:"validCoils"`
	Invalid  []int                         `json:"invalidCoils"`
	State    editor.State                  `json:"state"`
	Session  *editor.Session               `json:"session,omitempty"`
	Policy   design.Policy                 `json:"policy"`
	Limits   map[design.Kind]editor.Limits `json:"limits"`
	Ranges   map[string]plasma.Range       `json:"ranges"`
}

// View derives the current view. Nothing derived is cached.
func (e *Engine) View() (*View, error) {
	e.mu.Lock()
	d := e.store.Snapshot()
	state := e.editor.State()
	sess, ok := e.editor.Session()
	e.mu.Unlock()

	s, err := e.scene(d)
	if err != nil {
		return nil, err
	}
	v := &View{
		Design:   d,
		Boundary: s.Traces[render.CurvePlasma].Points,
		Outer:    s.Traces[render.CurveVesselOuter].Points,
		Valid:    s.Valid,
		Invalid:  s.Invalid,
		State:    state,
		Policy:   e.store.Policy(),
		Limits: map[design.Kind]editor.Limits{
			design.KindVesselVertex: editor.VesselLimits,
			design.KindCoil:         editor.CoilLimits,
		},
		Ranges: map[string]plasma.Range{
			"major_radius":  plasma.MajorRadiusRange,
			"minor_radius":  plasma.MinorRadiusRange,
			"elongation":    plasma.ElongationRange,
			"triangularity": plasma.TriangularityRange,
		},
	}
	if ok {
		v.Session = &sess
	}
	return v, nil
}

// Snapshot returns a copy of the design.
func (e *Engine) Snapshot() design.Design {
	return e.store.Snapshot()
}

// Scene builds the render scene for the current design.
func (e *Engine) Scene() (*render.Scene, error) {
	return e.scene(e.store.Snapshot())
}

func (e *Engine) scene(d design.Design) (*render.Scene, error) {
	boundary, err := plasma.Boundary(e.cfg.Generator, d.Shape)
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	s, err := render.Build(d, boundary, e.cfg.VesselWall)
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	return s, nil
}

// --- Design mutations ---

// Apply runs a store operation. A reset drops any edit session, and so does
// any operation that removes the point being edited.
func (e *Engine) Apply(op design.Operation) (int64, error) {
	e.mu.Lock()
	version, err := e.store.Apply(op)
	if err == nil {
		e.reconcileSessionLocked(op.Type == design.OpReset)
	}
	e.mu.Unlock()

	if err != nil {
		return 0, err
	}
	e.notify()
	return version, nil
}

func (e *Engine) reconcileSessionLocked(force bool) {
	sess, ok := e.editor.Session()
	if !ok {
		return
	}
	if !force {
		if _, err := e.store.Vertex(sess.Target.Kind, sess.Target.Index); err == nil {
			return
		}
	}
	e.editor.Abort()
	slog.Info("edit session dropped", "session", sess.ID, "kind", sess.Target.Kind, "index", sess.Target.Index)
}

// ValidateCoils moves every coil that sits inside the vessel to just outside
// its nearest vessel vertex and stores the result. Coils overlapping only the
// plasma are left where they are.
func (e *Engine) ValidateCoils() ([]geometry.Point, error) {
	e.mu.Lock()
	d := e.store.Snapshot()
	boundary, err := plasma.Boundary(e.cfg.Generator, d.Shape)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("validate coils: %w", err)
	}
	moved, err := geometry.ValidateCoilPositions(d.Coils, d.Vessel, boundary, e.cfg.SafetyMargin)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("validate coils: %w", err)
	}
	if err := e.store.SetCoils(moved); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("validate coils: %w", err)
	}
	if sess, ok := e.editor.Session(); ok && sess.Target.Kind == design.KindCoil {
		e.editor.Abort()
	}
	e.mu.Unlock()

	e.notify()
	return moved, nil
}

// --- Editor ---

func (e *Engine) Select(t editor.Target) (editor.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor.Select(t)
}

func (e *Engine) SelectEvent(ev editor.SelectionEvent) (editor.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor.SelectEvent(ev)
}

// SelectAt hit-tests a click in world coordinates and opens a session on
// the point found.
func (e *Engine) SelectAt(pt geometry.Point, tolerance float64) (editor.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.scene(e.store.Snapshot())
	if err != nil {
		return editor.Session{}, err
	}
	ev, ok := s.HitTest(pt, tolerance)
	if !ok {
		return editor.Session{}, fmt.Errorf("select at %v: %w", pt, ErrNothingHit)
	}
	return e.editor.SelectEvent(ev)
}

func (e *Engine) Adjust(pt geometry.Point) (editor.Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor.Adjust(pt)
}

func (e *Engine) Commit() (editor.Session, error) {
	e.mu.Lock()
	s, err := e.editor.Commit()
	e.mu.Unlock()
	if err != nil {
		return editor.Session{}, err
	}
	slog.Info("point committed", "kind", s.Target.Kind, "index", s.Target.Index, "point", s.Candidate)
	e.notify()
	return s, nil
}

func (e *Engine) Cancel() (editor.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor.Cancel()
}

// --- Lock, analysis, results ---

// Lock snapshots the design into a record, persists it and remembers it as
// the locked design. Mirror failures are logged; the record still counts as
// locked because the primary copy was written.
func (e *Engine) Lock(ctx context.Context, by string) (*cache.LockState, error) {
	if e.cfg.Records == nil {
		return nil, fmt.Errorf("lock design: %w", ErrUnavailable)
	}
	now := e.cfg.Now()
	rec, err := record.Lock(e.store.Snapshot(), e.cfg.Generator, now)
	if err != nil {
		return nil, err
	}

	if err := e.cfg.Records.Save(ctx, rec); err != nil {
		if !errors.Is(err, record.ErrPartialSave) {
			return nil, fmt.Errorf("save record: %w", err)
		}
		slog.Warn("record mirror failed", "id", rec.ID, "error", err)
	}

	state := &cache.LockState{
		Record:   rec,
		LockedAt: now,
		LockedBy: by,
	}
	if e.cfg.RecordsDir != "" {
		state.Path = filepath.Join(e.cfg.RecordsDir, rec.FileName())
	}
	if err := e.cfg.Cache.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("remember lock: %w", err)
	}
	slog.Info("design locked", "id", rec.ID, "path", state.Path, "valid", len(rec.Validation.ValidCoils), "invalid", rec.Validation.InvalidCoils)
	return state, nil
}

// LockStatus returns the locked design, or ErrNotLocked.
func (e *Engine) LockStatus(ctx context.Context) (*cache.LockState, error) {
	s, err := e.cfg.Cache.Get(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNotLocked
		}
		return nil, err
	}
	return s, nil
}

// RunAnalysis executes the pipeline against the locked design. The call
// blocks for the whole run; ctx cancellation does not interrupt it.
func (e *Engine) RunAnalysis(ctx context.Context) (*cache.LockState, error) {
	if e.cfg.Runner == nil {
		return nil, fmt.Errorf("run analysis: %w", ErrUnavailable)
	}
	state, err := e.LockStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("run analysis: %w", err)
	}

	res, err := e.cfg.Runner.Run(ctx)
	if err != nil {
		slog.Error("analysis failed", "record", state.Record.ID, "error", err)
		return nil, err
	}
	slog.Info("analysis completed", "run", res.RunID, "duration", res.Duration, "results", res.ResultsDir)

	state.AnalysisCompleted = true
	state.OutputFolder = res.ResultsDir
	state.LastRun = res
	if err := e.cfg.Cache.Put(context.WithoutCancel(ctx), state); err != nil {
		return nil, fmt.Errorf("remember analysis: %w", err)
	}
	return state, nil
}

// Results lists the pipeline artifacts along with what is needed to explain
// an empty listing.
type Results struct {
	*asset.Listing
	AnalysisCompleted bool   `json:"analysis_completed"`
	ProjectRoot       string `json:"projectRoot,omitempty"`
}

func (e *Engine) Results(ctx context.Context) (*Results, error) {
	if e.cfg.Results == nil {
		return nil, fmt.Errorf("list results: %w", ErrUnavailable)
	}
	l, err := e.cfg.Results.List()
	if err != nil {
		return nil, err
	}
	out := &Results{Listing: l}
	if e.cfg.Runner != nil {
		out.ProjectRoot = e.cfg.Runner.ProjectRoot()
	}
	if s, err := e.cfg.Cache.Get(ctx); err == nil {
		out.AnalysisCompleted = s.AnalysisCompleted
	}
	return out, nil
}

// ClearReport says what Clear removed.
type ClearReport struct {
	Removed int `json:"removed"`
}

// Clear deletes everything in the results and records folders and forgets
// the locked design. It keeps going past individual failures.
func (e *Engine) Clear(ctx context.Context) (*ClearReport, error) {
	dirs := []*asset.Handler{}
	if e.cfg.Results != nil {
		dirs = append(dirs, e.cfg.Results)
	}
	if e.cfg.RecordsDir != "" && (e.cfg.Results == nil || filepath.Clean(e.cfg.RecordsDir) != filepath.Clean(e.cfg.Results.Dir())) {
		dirs = append(dirs, asset.NewHandler(e.cfg.RecordsDir, ""))
	}

	report := &ClearReport{}
	var errs []error
	for _, h := range dirs {
		n, err := h.Clear()
		report.Removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.cfg.Cache.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("forget lock: %w", err))
	}
	slog.Info("results cleared", "removed", report.Removed)
	return report, errors.Join(errs...)
}
