package record

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/geometry"
	"github.com/inamate/tokamak/internal/typeid"
)

var lockTime = time.Date(2025, 7, 14, 9, 5, 3, 0, time.UTC)

func lockedDefault(t *testing.T) *Record {
	t.Helper()
	d := design.DefaultDesign()
	d.Coils[1] = geometry.Pt(4.5, 0)    // vessel and plasma
	d.Coils[6] = geometry.Pt(3.4, 1.05) // vessel only
	r, err := Lock(d, nil, lockTime)
	require.NoError(t, err)
	return r
}

func TestLock(t *testing.T) {
	r := lockedDefault(t)

	assert.NoError(t, typeid.Validate(r.ID, typeid.PrefixRecord))
	assert.Equal(t, "20250714_090503", r.Timestamp)
	assert.Equal(t, "design_20250714_090503.json", r.FileName())
	assert.Equal(t, []int{0, 2, 3, 4, 5, 7}, r.Validation.ValidCoils)
	assert.Equal(t, []int{1, 6}, r.Validation.InvalidCoils)

	t.Run("does not move invalid coils", func(t *testing.T) {
		assert.Equal(t, geometry.Pt(4.5, 0), r.CoilCoordinates[1])
	})

	t.Run("summary counts", func(t *testing.T) {
		s := r.Summary()
		assert.Equal(t, 6, s.ValidCoils)
		assert.Equal(t, 8, s.TotalCoils)
		assert.Equal(t, []int{1, 6}, s.InvalidCoils)
	})

	t.Run("later design edits do not leak in", func(t *testing.T) {
		d := design.DefaultDesign()
		r, err := Lock(d, nil, lockTime)
		require.NoError(t, err)
		d.Vessel[0] = geometry.Pt(0, 0)
		d.Coils[0] = geometry.Pt(0, 0)
		assert.Equal(t, design.DefaultVessel(), r.VacuumVessel.BoundaryCoordinates)
		assert.Equal(t, design.DefaultCoils(), r.CoilCoordinates)
	})

	t.Run("layout matches what the notebook reads", func(t *testing.T) {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &m))
		for _, key := range []string{"timestamp", "plasma_parameters", "advanced_settings", "vacuum_vessel", "coil_coordinates", "validation"} {
			assert.Contains(t, m, key)
		}
		assert.JSONEq(t, `{"major_radius":4.55,"minor_radius":1.2,"elongation":1.4,"triangularity":-0.5}`, string(m["plasma_parameters"]))
		assert.JSONEq(t, `{"B0":11,"Ip_target":8000000,"Ip_ratio_target":0.333,"ffp_alpha":2.15,"ffp_gamma":1.7,"pp_alpha":2.15,"pp_gamma":1.7}`, string(m["advanced_settings"]))
	})

	t.Run("empty coil set locks to empty lists", func(t *testing.T) {
		d := design.DefaultDesign()
		d.Coils = nil
		r, err := Lock(d, nil, lockTime)
		require.NoError(t, err)
		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"coil_coordinates":[]`)
		assert.Contains(t, string(data), `"valid_coils":[]`)
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "examples", "testing_1")
	s := NewFileStore(dir)

	_, err := s.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := lockedDefault(t)
	require.NoError(t, s.Save(ctx, first))

	data, err := os.ReadFile(filepath.Join(dir, "design_20250714_090503.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"timestamp\": \"20250714_090503\"")

	second, err := Lock(design.DefaultDesign(), nil, lockTime.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, second))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	t.Run("corrupt files are skipped", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "design_20990101_000000.json"), []byte("{"), 0o644))
		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)

	_, err = s.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := lockedDefault(t)
	second, err := Lock(design.DefaultDesign(), nil, lockTime)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	t.Run("same second orders by insertion", func(t *testing.T) {
		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	})

	t.Run("round trips the body", func(t *testing.T) {
		got, err := s.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first, got)

		_, err = s.Get(ctx, "design_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		assert.Error(t, s.Save(ctx, first))
	})

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type brokenStore struct{ Store }

func (brokenStore) Save(context.Context, *Record) error { return errors.New("index offline") }

func TestMulti(t *testing.T) {
	ctx := context.Background()
	primary := NewFileStore(t.TempDir())
	r := lockedDefault(t)

	t.Run("mirror failure keeps the primary write", func(t *testing.T) {
		m := NewMulti(primary, brokenStore{})
		err := m.Save(ctx, r)
		assert.ErrorIs(t, err, ErrPartialSave)
		assert.ErrorContains(t, err, "index offline")

		got, err := m.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
	})

	t.Run("primary failure is returned as is", func(t *testing.T) {
		m := NewMulti(brokenStore{}, primary)
		err := m.Save(ctx, r)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPartialSave)
	})
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, os.Getenv("TEST_DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s, err := NewPostgresStore(ctx, pool)
	require.NoError(t, err)

	r := lockedDefault(t)
	require.NoError(t, s.Save(ctx, r))
	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}
