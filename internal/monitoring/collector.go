package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Summary holds aggregate outcomes over a window of journaled runs.
type Summary struct {
	TotalRuns       int       `json:"total_runs"`
	Completed       int       `json:"completed"`
	Failed          int       `json:"failed"`
	Running         int       `json:"running"`
	Found           int64     `json:"found"`
	NotFound        int64     `json:"not_found"`
	Skipped         int64     `json:"skipped"`
	AvgDurationSecs float64   `json:"avg_duration_seconds"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector aggregates journaled runs from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new run summary collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarizes the most recent runs, newest first. A non-positive
// limit uses the store's default window.
func (c *Collector) Collect(ctx context.Context, limit int) (*Summary, error) {
	runs, err := c.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	sum := &Summary{
		TotalRuns:   len(runs),
		CollectedAt: time.Now().UTC(),
	}

	var totalDur time.Duration
	var finished int
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			sum.Completed++
		case model.RunStatusFailed:
			sum.Failed++
		case model.RunStatusRunning:
			sum.Running++
		}
		if r.Stats != nil {
			sum.Found += r.Stats.Found
			sum.NotFound += r.Stats.NotFound
			sum.Skipped += r.Stats.Skipped
		}
		if d := r.Duration(); d > 0 {
			totalDur += d
			finished++
		}
	}

	if finished > 0 {
		sum.AvgDurationSecs = (totalDur / time.Duration(finished)).Seconds()
	}
	return sum, nil
}
