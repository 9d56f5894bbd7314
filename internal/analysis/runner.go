// Package analysis invokes the external physics pipeline on a locked design.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/inamate/tokamak/internal/typeid"
)

var ErrRunInProgress = errors.New("analysis already running")

// MissingEntryPointError reports a notebook that is not where the runner
// expects it, with the paths needed to diagnose why.
type MissingEntryPointError struct {
	Notebook    string
	ProjectRoot string
	Cwd         string
}

func (e *MissingEntryPointError) Error() string {
	return fmt.Sprintf("notebook %s not found (project root %s, cwd %s)", e.Notebook, e.ProjectRoot, e.Cwd)
}

// ExitError is a pipeline run that finished with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("analysis exited with status %d: %s", e.Code, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ResolveProjectRoot returns cwd when it already is the project directory,
// otherwise cwd/name.
func ResolveProjectRoot(cwd, name string) string {
	cwd = filepath.Clean(cwd)
	if filepath.Base(cwd) == name {
		return cwd
	}
	return filepath.Join(cwd, name)
}

type Config struct {
	Command       string
	Args          []string
	ProjectRoot   string
	Notebook      string
	ResultsSubdir string
}

// Result describes a completed run.
type Result struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	ResultsDir string        `json:"resultsDir"`
	Output     string        `json:"output,omitempty"`
}

// Runner executes the notebook in place. At most one run is in flight.
type Runner struct {
	cfg Config
	mu  sync.Mutex
}

func NewRunner(cfg Config) *Runner {
	if cfg.Command == "" {
		cfg.Command = "jupyter"
	}
	if cfg.Args == nil {
		cfg.Args = []string{"nbconvert", "--execute", "--to", "notebook", "--inplace", cfg.Notebook}
	}
	return &Runner{cfg: cfg}
}

func (r *Runner) ProjectRoot() string { return r.cfg.ProjectRoot }

// ResultsDir is where the pipeline leaves its images.
func (r *Runner) ResultsDir() string {
	return filepath.Join(r.cfg.ProjectRoot, r.cfg.ResultsSubdir)
}

// Run blocks until the pipeline finishes. Cancelling ctx does not stop it.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	nb := filepath.Join(r.cfg.ProjectRoot, r.cfg.Notebook)
	if _, err := os.Stat(nb); err != nil {
		cwd, _ := os.Getwd()
		return nil, &MissingEntryPointError{Notebook: nb, ProjectRoot: r.cfg.ProjectRoot, Cwd: cwd}
	}

	res := &Result{
		RunID:      typeid.NewRunID(),
		StartedAt:  time.Now(),
		ResultsDir: r.ResultsDir(),
	}
	slog.Info("analysis started", "run", res.RunID, "command", r.cfg.Command, "dir", r.cfg.ProjectRoot)

	cmd := exec.CommandContext(context.WithoutCancel(ctx), r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.ProjectRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return nil, fmt.Errorf("start analysis: %w: %s", err, stderr.String())
	}

	res.Output = stdout.String()
	slog.Info("analysis complete", "run", res.RunID, "duration", res.Duration)
	return res, nil
}
