package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/blocklist"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/search"
	"github.com/sells-group/enrich-cli/internal/store"
)

// fakeStore serves canned runs for router tests.
type fakeStore struct {
	runs []model.Run
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) CreateRun(_ context.Context, run model.Run) (*model.Run, error) {
	run.ID = "fake-run-id"
	run.Status = model.RunStatusRunning
	run.StartedAt = time.Now().UTC()
	f.runs = append(f.runs, run)
	return &run, nil
}

func (f *fakeStore) CompleteRun(context.Context, string, model.RunStatus, model.StatsSnapshot, string) error {
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListRuns(context.Context, int) ([]model.Run, error) {
	return f.runs, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func testEnv(st store.Store) *pipelineEnv {
	cfg := &config.Config{}
	cfg.Columns = config.ColumnsConfig{
		Seller:   "Seller",
		Business: "Business Name",
		Category: "Category",
		Output:   "domain from custom script",
	}
	searcher := search.NewMulti(nil, &pipeline.StubBackend{})
	gatherer := pipeline.NewGatherer(searcher, blocklist.Default(), pipeline.GatherConfigFromPipeline(cfg))
	arbiter := pipeline.NewArbiter(&pipeline.StubArbiterClient{}, cfg.Anthropic)
	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, gatherer, arbiter, st),
	}
}

func completedRun() model.Run {
	finished := time.Date(2026, 2, 10, 9, 32, 0, 0, time.UTC)
	return model.Run{
		ID:         "11111111-2222-3333-4444-555555555555",
		InputPath:  "sellers.csv",
		OutputPath: "sellers.csv",
		Backends:   []string{"serp", "google"},
		BatchSize:  5,
		Status:     model.RunStatusCompleted,
		Stats:      &model.StatsSnapshot{Found: 7, NotFound: 2, Skipped: 1},
		StartedAt:  finished.Add(-3 * time.Minute),
		FinishedAt: &finished,
	}
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestRouter_ListRuns(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{runs: []model.Run{completedRun()}}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "11111111-2222-3333-4444-555555555555")
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestRouter_GetRun(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{runs: []model.Run{completedRun()}}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/11111111-2222-3333-4444-555555555555", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"found":7`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/absent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run not found")
}

func TestRouter_Summary(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{runs: []model.Run{completedRun()}}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_runs":1`)
	assert.Contains(t, rec.Body.String(), `"found":7`)
}

func TestRouter_EnrichValidation(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(`{"output":"x.csv"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "input is required")
}

func TestRouter_EnrichAccepted(t *testing.T) {
	t.Parallel()

	router := newRouter(context.Background(), testEnv(&fakeStore{}))
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"input":"no-such-file.csv"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", body))

	// Accepted immediately; the missing file fails asynchronously and
	// is only logged.
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)
	assert.Contains(t, rec.Body.String(), "no-such-file.csv")
}
