// Package asset lists, serves and clears the image artifacts the analysis
// pipeline leaves in its results folder.
package asset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Artifact is one result image. Err is set when the file is listed but
// could not be read or decoded; the rest of the listing is unaffected.
type Artifact struct {
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Type    string    `json:"type"`
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	Err     string    `json:"error,omitempty"`
}

// Listing is the content of the results folder. When no artifacts are
// found, Exists and Files say why.
type Listing struct {
	Dir       string     `json:"dir"`
	Exists    bool       `json:"exists"`
	Files     []string   `json:"files"`
	Artifacts []Artifact `json:"artifacts"`
}

// Handler serves the results folder.
type Handler struct {
	dir    string // results folder
	prefix string // URL prefix artifacts are served under
}

// NewHandler creates a handler for dir, served under prefix (e.g. "/results/").
func NewHandler(dir, prefix string) *Handler {
	return &Handler{dir: dir, prefix: prefix}
}

func (h *Handler) Dir() string { return h.dir }

// List reports the .png and .gif files in the results folder, sorted by
// name. A missing folder is not an error.
func (h *Handler) List() (*Listing, error) {
	l := &Listing{Dir: h.dir, Files: []string{}, Artifacts: []Artifact{}}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	l.Exists = true

	for _, e := range entries {
		l.Files = append(l.Files, e.Name())
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".png" && ext != ".gif" {
			continue
		}
		l.Artifacts = append(l.Artifacts, h.describe(e, ext))
	}
	slices.SortFunc(l.Artifacts, func(a, b Artifact) int { return strings.Compare(a.Name, b.Name) })
	return l, nil
}

func (h *Handler) describe(e fs.DirEntry, ext string) Artifact {
	a := Artifact{
		Name: e.Name(),
		URL:  h.prefix + e.Name(),
		Type: strings.TrimPrefix(ext, "."),
	}
	if info, err := e.Info(); err == nil {
		a.Size = info.Size()
		a.ModTime = info.ModTime()
	}

	f, err := os.Open(filepath.Join(h.dir, e.Name()))
	if err != nil {
		a.Err = err.Error()
		slog.Warn("open artifact", "name", e.Name(), "error", err)
		return a
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		a.Err = fmt.Sprintf("decode: %v", err)
		slog.Warn("decode artifact", "name", e.Name(), "error", err)
		return a
	}
	a.Width, a.Height = cfg.Width, cfg.Height
	return a
}

// Serve returns an http.Handler for the artifact files. Results are
// regenerated in place, so nothing is cached.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(h.prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		fs.ServeHTTP(w, r)
	}))
}

// Clear removes every file and directory inside the results folder, keeping
// the folder itself. It carries on past failures and reports them together.
func (h *Handler) Clear() (int, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read results dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(h.dir, e.Name())); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.Name(), err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
