package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/tokamak/internal/analysis"
	"github.com/inamate/tokamak/internal/asset"
	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/record"
)

var lockTime = time.Date(2025, 7, 14, 9, 5, 3, 0, time.UTC)

type fixture struct {
	eng     *Engine
	root    string
	records string
	results string
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "tokamak_psp_2025")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "AOE_tokamaker.ipynb"), []byte("{}"), 0o644))

	f := &fixture{
		root:    root,
		records: filepath.Join(t.TempDir(), "examples", "testing_1"),
		results: filepath.Join(root, "examples", "testing_1"),
	}
	f.eng = New(design.NewStore(design.WithSeed(7)), Config{
		Records:    record.NewFileStore(f.records),
		RecordsDir: f.records,
		Runner: analysis.NewRunner(analysis.Config{
			Command:       "sh",
			Args:          []string{"-c", script},
			ProjectRoot:   root,
			Notebook:      "AOE_tokamaker.ipynb",
			ResultsSubdir: "examples/testing_1",
		}),
		Results: asset.NewHandler(f.results, "/results/"),
		Now:     func() time.Time { return lockTime },
	})
	return f
}

func TestView(t *testing.T) {
	eng := New(design.NewStore(), Config{})
	v, err := eng.View()
	require.NoError(t, err)

	assert.Len(t, v.Boundary, 30)
	assert.Len(t, v.Outer, 8)
	assert.Len(t, v.Valid, 8)
	assert.Empty(t, v.Invalid)
	assert.Equal(t, editor.Idle, v.State)
	assert.Nil(t, v.Session)
	assert.Equal(t, editor.CoilLimits, v.Limits[design.KindCoil])
	assert.Equal(t, 8, v.Policy.MaxCoils)
}

func TestApply(t *testing.T) {
	t.Run("should notify listeners", func(t *testing.T) {
		eng := New(design.NewStore(design.WithSeed(1)), Config{})
		calls := 0
		eng.OnChange(func() { calls++ })

		_, err := eng.Apply(design.Operation{Type: design.OpVesselAdd})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)

		_, err = eng.Apply(design.Operation{Type: "bogus"})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "failed operations are silent")
	})

	t.Run("should drop the session on reset", func(t *testing.T) {
		eng := New(design.NewStore(), Config{})
		_, err := eng.Select(editor.Target{Kind: design.KindVesselVertex, Index: 1})
		require.NoError(t, err)

		_, err = eng.Apply(design.Operation{Type: design.OpReset, Target: design.ResetAll})
		require.NoError(t, err)
		v, err := eng.View()
		require.NoError(t, err)
		assert.Equal(t, editor.Idle, v.State)
	})

	t.Run("should drop the session when its point is removed", func(t *testing.T) {
		eng := New(design.NewStore(), Config{})
		_, err := eng.Select(editor.Target{Kind: design.KindCoil, Index: 7})
		require.NoError(t, err)

		_, err = eng.Apply(design.Operation{Type: design.OpCoilRemoveLast})
		require.NoError(t, err)
		_, err = eng.Commit()
		assert.ErrorIs(t, err, editor.ErrNoSession)
	})

	t.Run("should keep an unrelated session", func(t *testing.T) {
		eng := New(design.NewStore(), Config{})
		_, err := eng.Select(editor.Target{Kind: design.KindCoil, Index: 0})
		require.NoError(t, err)

		_, err = eng.Apply(design.Operation{Type: design.OpCoilRemoveLast})
		require.NoError(t, err)
		_, err = eng.Cancel()
		assert.NoError(t, err)
	})
}

func TestValidateCoils(t *testing.T) {
	d := design.DefaultDesign()
	d.Coils[0] = geometry.Pt(4.5, 0)
	eng := New(design.NewStore(design.WithDesign(d)), Config{})

	moved, err := eng.ValidateCoils()
	require.NoError(t, err)
	assert.InDelta(t, 2.8213, moved[0].R, 1e-3)
	assert.InDelta(t, -1.0072, moved[0].Z, 1e-3)
	assert.Equal(t, d.Coils[1:], moved[1:], "valid coils stay put")

	v, err := eng.View()
	require.NoError(t, err)
	assert.Equal(t, moved, v.Design.Coils)
	assert.Empty(t, v.Invalid)
}

func TestEditing(t *testing.T) {
	eng := New(design.NewStore(), Config{})
	changed := 0
	eng.OnChange(func() { changed++ })

	s, err := eng.SelectAt(geometry.Pt(6.45, 0.55), 0.2)
	require.NoError(t, err)
	assert.Equal(t, editor.Target{Kind: design.KindCoil, Index: 4}, s.Target)

	p, err := eng.Adjust(geometry.Pt(7.0, 0.5))
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Zero(t, changed, "adjusting does not touch the design")

	_, err = eng.Commit()
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, geometry.Pt(7.0, 0.5), eng.Snapshot().Coils[4])

	_, err = eng.SelectAt(geometry.Pt(4.55, 0), 0.2)
	assert.ErrorIs(t, err, ErrNothingHit)
}

func TestLockRunClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "mkdir -p examples/testing_1 && touch examples/testing_1/psi.png")

	_, err := f.eng.RunAnalysis(ctx)
	require.ErrorIs(t, err, ErrNotLocked)

	state, err := f.eng.Lock(ctx, "anonymous")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.records, "design_20250714_090503.json"), state.Path)
	assert.FileExists(t, state.Path)
	assert.False(t, state.AnalysisCompleted)

	state, err = f.eng.RunAnalysis(ctx)
	require.NoError(t, err)
	assert.True(t, state.AnalysisCompleted)
	assert.Equal(t, f.results, state.OutputFolder)
	require.NotNil(t, state.LastRun)

	res, err := f.eng.Results(ctx)
	require.NoError(t, err)
	assert.True(t, res.AnalysisCompleted)
	assert.True(t, res.Exists)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "psi.png", res.Artifacts[0].Name)
	assert.Equal(t, f.root, res.ProjectRoot)

	rep, err := f.eng.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Removed)
	assert.NoFileExists(t, state.Path)

	_, err = f.eng.LockStatus(ctx)
	assert.ErrorIs(t, err, ErrNotLocked)
}

func TestRunFailureKeepsLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "echo 'kernel died' >&2; exit 2")

	_, err := f.eng.Lock(ctx, "anonymous")
	require.NoError(t, err)

	_, err = f.eng.RunAnalysis(ctx)
	var exitErr *analysis.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Stderr, "kernel died")

	state, err := f.eng.LockStatus(ctx)
	require.NoError(t, err)
	assert.False(t, state.AnalysisCompleted)
}

func TestUnavailable(t *testing.T) {
	eng := New(design.NewStore(), Config{})
	ctx := context.Background()

	_, err := eng.Lock(ctx, "anonymous")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = eng.RunAnalysis(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = eng.Results(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = eng.Clear(ctx)
	assert.NoError(t, err)
}
