// Package cache keeps the locked design and analysis status between
// requests, either in process or in Redis so several replicas agree.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inamate/tokamak/internal/analysis"
	"github.com/inamate/tokamak/internal/record"
)

var ErrMiss = errors.New("no locked design")

// LockState is what the dashboard remembers after a lock.
type LockState struct {
	Record            *record.Record   `json:"record"`
	LockedAt          time.Time        `json:"lockedAt"`
	LockedBy          string           `json:"lockedBy"`
	Path              string           `json:"path,omitempty"`
	AnalysisCompleted bool             `json:"analysis_completed"`
	OutputFolder      string           `json:"output_folder,omitempty"`
	LastRun           *analysis.Result `json:"lastRun,omitempty"`
}

type Cache interface {
	Get(ctx context.Context) (*LockState, error)
	Put(ctx context.Context, s *LockState) error
	Clear(ctx context.Context) error
}

// Memory is an in-process Cache.
type Memory struct {
	mu    sync.RWMutex
	state *LockState
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Get(context.Context) (*LockState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, ErrMiss
	}
	s := *m.state
	return &s, nil
}

func (m *Memory) Put(_ context.Context, s *LockState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.state = &cp
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
