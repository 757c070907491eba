package model

import (
	"sync/atomic"
	"time"
)

// RunStats counts row outcomes for one pipeline run. Counters are
// atomics because gather workers may record skips concurrently; totals
// are read once at run end.
type RunStats struct {
	Found    atomic.Int64
	NotFound atomic.Int64
	Skipped  atomic.Int64
}

// Snapshot returns a plain-value copy for logging and journaling.
func (s *RunStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Found:    s.Found.Load(),
		NotFound: s.NotFound.Load(),
		Skipped:  s.Skipped.Load(),
	}
}

// StatsSnapshot is the serializable form of RunStats.
type StatsSnapshot struct {
	Found    int64 `json:"found"`
	NotFound int64 `json:"not_found"`
	Skipped  int64 `json:"skipped"`
}

// Processed returns the number of rows that went through arbitration.
func (s StatsSnapshot) Processed() int64 { return s.Found + s.NotFound }

// RunStatus tracks a journaled run's lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one journaled pipeline invocation.
type Run struct {
	ID         string         `json:"id"`
	InputPath  string         `json:"input_path"`
	OutputPath string         `json:"output_path"`
	Backends   []string       `json:"backends"`
	BatchSize  int            `json:"batch_size"`
	Status     RunStatus      `json:"status"`
	Stats      *StatsSnapshot `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Duration returns the run's wall time, or zero while still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
