package store

import (
	"context"
	"errors"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run Run) (Run, error)
	UpdateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, kind, cursor string, limit int) (items []Run, nextCursor string, err error)

	// Optimizer cost snapshots
	SaveSnapshots(ctx context.Context, runID string, snaps []Snapshot) error
	ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error)
}

var ErrNotFound = errors.New("not found")

// ErrBadCursor is returned by ListRuns for a cursor that names no run.
var ErrBadCursor = errors.New("bad cursor")

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
