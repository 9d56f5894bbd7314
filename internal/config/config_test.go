package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, BackendFile, cfg.RecordBackend)
		assert.Equal(t, "examples/testing_1", cfg.RecordsDir)
		assert.Equal(t, 0.5, cfg.SafetyMargin)
		assert.Equal(t, 0.04, cfg.VesselWall)
	})

	t.Run("should read the environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("RECORD_BACKEND", "sqlite")
		t.Setenv("SAFETY_MARGIN", "0.75")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, BackendSQLite, cfg.RecordBackend)
		assert.Equal(t, 0.75, cfg.SafetyMargin)
	})

	t.Run("should reject postgres without a url", func(t *testing.T) {
		t.Setenv("RECORD_BACKEND", "postgres")
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("should reject an unknown backend", func(t *testing.T) {
		t.Setenv("RECORD_BACKEND", "s3")
		_, err := Load()
		assert.Error(t, err)
	})
}
