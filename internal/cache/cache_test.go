package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/record"
)

func exercise(t *testing.T, c Cache) {
	ctx := context.Background()
	require.NoError(t, c.Clear(ctx))

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	rec, err := record.Lock(design.DefaultDesign(), nil, time.Date(2025, 7, 14, 9, 5, 3, 0, time.UTC))
	require.NoError(t, err)
	in := &LockState{Record: rec, LockedAt: time.Date(2025, 7, 14, 9, 5, 3, 0, time.UTC), LockedBy: "anonymous"}
	require.NoError(t, c.Put(ctx, in))

	out, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, out.Record.ID)
	assert.False(t, out.AnalysisCompleted)

	out.AnalysisCompleted = true
	out.OutputFolder = "examples/testing_1"
	require.NoError(t, c.Put(ctx, out))

	again, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, again.AnalysisCompleted)
	assert.Equal(t, "examples/testing_1", again.OutputFolder)

	require.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())

	t.Run("returned state is a copy", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Put(context.Background(), &LockState{LockedBy: "a"}))
		s, err := m.Get(context.Background())
		require.NoError(t, err)
		s.LockedBy = "b"
		s2, err := m.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", s2.LockedBy)
	})
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	rdb, err := DialRedis(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	exercise(t, NewRedis(rdb, "tokamak:test:lock"))
}
