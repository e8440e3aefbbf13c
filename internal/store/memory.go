package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]Run        // id -> run
	order []string              // ids in creation order
	snaps map[string][]Snapshot // run id -> snapshots
}

func NewMemory() *Memory {
	return &Memory{
		runs:  map[string]Run{},
		snaps: map[string][]Snapshot{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if _, ok := m.runs[run.ID]; ok {
		return Run{}, fmt.Errorf("create run %s: already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = prev.CreatedAt
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns pages in creation order; the cursor is the last id returned.
func (m *Memory) ListRuns(ctx context.Context, kind, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		start = -1
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", fmt.Errorf("list runs: cursor %q: %w", cursor, ErrBadCursor)
		}
	}
	limit = clampLimit(limit)
	out := []Run{}
	next := ""
	for _, id := range m.order[start:] {
		r := m.runs[id]
		if kind != "" && r.Kind != kind {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, r)
	}
	return out, next, nil
}

func (m *Memory) SaveSnapshots(ctx context.Context, runID string, snaps []Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	m.snaps[runID] = append(m.snaps[runID], snaps...)
	return nil
}

func (m *Memory) ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Snapshot{}, m.snaps[runID]...), nil
}
