package asset

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImages(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "frames"), 0o755))

	f, err := os.Create(filepath.Join(dir, "psi.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 40, 30))))
	require.NoError(t, f.Close())

	f, err = os.Create(filepath.Join(dir, "evolution.GIF"))
	require.NoError(t, err)
	pal := image.NewPaletted(image.Rect(0, 0, 12, 8), color.Palette{color.Black, color.White})
	require.NoError(t, gif.Encode(f, pal, nil))
	require.NoError(t, f.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "design_20250714_090503.json"), []byte("{}"), 0o644))
}

func TestList(t *testing.T) {
	t.Run("missing folder is reported, not an error", func(t *testing.T) {
		l, err := NewHandler(filepath.Join(t.TempDir(), "nope"), "/results/").List()
		require.NoError(t, err)
		assert.False(t, l.Exists)
		assert.Empty(t, l.Artifacts)
	})

	dir := t.TempDir()
	writeImages(t, dir)
	l, err := NewHandler(dir, "/results/").List()
	require.NoError(t, err)

	assert.True(t, l.Exists)
	assert.Len(t, l.Files, 5)
	require.Len(t, l.Artifacts, 3)

	byName := map[string]Artifact{}
	for _, a := range l.Artifacts {
		byName[a.Name] = a
	}

	psi := byName["psi.png"]
	assert.Equal(t, 40, psi.Width)
	assert.Equal(t, 30, psi.Height)
	assert.Equal(t, "/results/psi.png", psi.URL)
	assert.Empty(t, psi.Err)

	evo := byName["evolution.GIF"]
	assert.Equal(t, "gif", evo.Type)
	assert.Equal(t, 12, evo.Width)

	assert.NotEmpty(t, byName["broken.png"].Err, "decode failures are per item")
}

func TestServe(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir)
	h := NewHandler(dir, "/results/").Serve()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/psi.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir)
	h := NewHandler(dir, "/results/")

	n, err := h.Clear()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.DirExists(t, dir)

	l, err := h.List()
	require.NoError(t, err)
	assert.Empty(t, l.Files)

	n, err = NewHandler(filepath.Join(dir, "absent"), "/results/").Clear()
	require.NoError(t, err)
	assert.Zero(t, n)
}
