// Package store journals pipeline runs. One row per invocation,
// written when the run starts and finalized with outcome stats when it
// ends. The pipeline treats journal failures as log-and-continue, so
// implementations must never be load-bearing for checkpointing.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// ErrNotFound is returned when no run exists for the given id.
var ErrNotFound = eris.New("store: run not found")

// Store defines the run journal interface.
type Store interface {
	// CreateRun inserts a new journal entry. The store assigns the id
	// and start time; the returned Run carries both.
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)

	// CompleteRun finalizes a run with its status, stats, and optional
	// error text. Returns ErrNotFound for unknown ids.
	CompleteRun(ctx context.Context, id string, status model.RunStatus, stats model.StatsSnapshot, runErr string) error

	// GetRun fetches one run. Returns ErrNotFound for unknown ids.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
