package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/blocklist"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/recordio"
	"github.com/sells-group/enrich-cli/internal/search"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Columns = config.ColumnsConfig{
		Seller:      "Seller",
		Business:    "Business Name",
		Category:    "Category",
		Subcategory: "Primary Subcategory",
		Region:      "State",
		Output:      "domain from custom script",
	}
	cfg.Pipeline.BatchSize = 5
	cfg.Pipeline.Concurrency = 2
	cfg.Search.PerQuery = 8
	return cfg
}

// inputHeader matches the SmartScout export defaults in testConfig.
var inputHeader = []string{"Seller", "Business Name", "Category", "Primary Subcategory", "State"}

func writeInput(t *testing.T, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	table := &recordio.Table{Header: inputHeader, Rows: rows}
	require.NoError(t, recordio.WriteSnapshot(path, table))
	return path
}

// newOfflinePipeline wires the stub backend and stub arbiter, the same
// composition the --offline flag uses.
func newOfflinePipeline(cfg *config.Config, st store.Store, llm anthropic.Client) *Pipeline {
	if llm == nil {
		llm = &StubArbiterClient{}
	}
	multi := search.NewMulti(nil, &StubBackend{})
	gatherer := NewGatherer(multi, blocklist.Default(), GatherConfigFromPipeline(cfg))
	arbiter := NewArbiter(llm, cfg.Anthropic)
	return New(cfg, gatherer, arbiter, st)
}

func TestRun_EndToEndOffline(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Comfier", "XYZ LLC", "Massage Chairs", "Massage", "WA"},
		{"Acme Gadgets", "Acme Holdings LLC", "Electronics", "", "TX"},
	})
	p := newOfflinePipeline(testConfig(), nil, nil)

	res, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, int64(2), res.Stats.Found)
	assert.Zero(t, res.Stats.NotFound)
	assert.Empty(t, res.RunID)

	out, err := recordio.Read(input)
	require.NoError(t, err)
	domainCol := out.ColumnIndex("domain from custom script")
	require.GreaterOrEqual(t, domainCol, 0)
	assert.Equal(t, "comfier.com", out.Cell(0, domainCol))
	assert.Equal(t, "acmegadgets.com", out.Cell(1, domainCol))
}

func TestRun_ResumeIsIdempotent(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Comfier", "XYZ LLC", "Massage Chairs", "", "WA"},
		{"Acme Gadgets", "Acme Holdings LLC", "Electronics", "", "TX"},
		{"Beta Brands", "Beta Brands Inc", "Toys", "", "CA"},
	})
	cfg := testConfig()

	p1 := newOfflinePipeline(cfg, nil, nil)
	res1, err := p1.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	require.Equal(t, 3, res1.Processed)

	firstPass, err := os.ReadFile(input)
	require.NoError(t, err)

	p2 := newOfflinePipeline(cfg, nil, nil)
	res2, err := p2.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)

	assert.Zero(t, res2.Processed)
	assert.Zero(t, res2.Batches)
	assert.Equal(t, int64(3), res2.Stats.Skipped)

	secondPass, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, firstPass, secondPass)
}

func TestRun_PreservesRowOrder(t *testing.T) {
	t.Parallel()

	sellers := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta"}
	var rows [][]string
	for _, s := range sellers {
		rows = append(rows, []string{s, s + " LLC", "Toys", "", "NY"})
	}
	input := writeInput(t, "sellers.csv", rows)

	cfg := testConfig()
	cfg.Pipeline.BatchSize = 3
	p := newOfflinePipeline(cfg, nil, nil)

	_, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)

	out, err := recordio.Read(input)
	require.NoError(t, err)
	require.Len(t, out.Rows, len(sellers))
	for i, s := range sellers {
		assert.Equal(t, s, out.Cell(i, 0), "row %d", i)
	}
}

// cancelAfterFirstCall lets the first arbitration through and then
// cancels the run context, simulating a kill between batches.
type cancelAfterFirstCall struct {
	inner  anthropic.Client
	cancel context.CancelFunc
	calls  int
}

func (c *cancelAfterFirstCall) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls++
	resp, err := c.inner.CreateMessage(ctx, req)
	if c.calls == 1 {
		c.cancel()
	}
	return resp, err
}

func TestRun_CheckpointSurvivesKilledRun(t *testing.T) {
	t.Parallel()

	var rows [][]string
	sellers := []string{"S01", "S02", "S03", "S04", "S05", "S06", "S07", "S08", "S09", "S10", "S11", "S12"}
	for _, s := range sellers {
		rows = append(rows, []string{s, s + " LLC", "Toys", "", "NY"})
	}
	input := writeInput(t, "sellers.csv", rows)
	cfg := testConfig()
	cfg.Pipeline.BatchSize = 5

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupted := &cancelAfterFirstCall{inner: &StubArbiterClient{}, cancel: cancel}

	p1 := newOfflinePipeline(cfg, nil, interrupted)
	_, err := p1.Run(ctx, Options{InputPath: input})
	require.Error(t, err)

	// First batch checkpointed; rows 6-12 untouched.
	out, err := recordio.Read(input)
	require.NoError(t, err)
	domainCol := out.ColumnIndex("domain from custom script")
	for i := 0; i < 5; i++ {
		assert.NotEmpty(t, out.Cell(i, domainCol), "row %d should be resolved", i)
	}
	for i := 5; i < 12; i++ {
		assert.Empty(t, out.Cell(i, domainCol), "row %d should be untouched", i)
	}

	// A fresh run picks up only the remaining rows.
	p2 := newOfflinePipeline(cfg, nil, nil)
	res, err := p2.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Processed)
	assert.Equal(t, int64(5), res.Stats.Skipped)

	out, err = recordio.Read(input)
	require.NoError(t, err)
	for i := range sellers {
		assert.NotEmpty(t, out.Cell(i, domainCol), "row %d", i)
	}
}

func TestRun_MisalignedResponseDegradesBatch(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Alpha", "Alpha LLC", "Toys", "", "NY"},
		{"Beta", "Beta LLC", "Toys", "", "NY"},
		{"Gamma", "Gamma LLC", "Toys", "", "NY"},
	})
	// One decision for a three-entity batch: alignment failure.
	llm := &fakeLLM{text: `[{"company": 1, "domain": "alpha.com", "confidence": "high"}]`}
	p := newOfflinePipeline(testConfig(), nil, llm)

	res, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Stats.NotFound)
	assert.Zero(t, res.Stats.Found)

	out, err := recordio.Read(input)
	require.NoError(t, err)
	domainCol := out.ColumnIndex("domain from custom script")
	for i := 0; i < 3; i++ {
		assert.Equal(t, model.NotFoundMarker, out.Cell(i, domainCol))
	}
}

func TestRun_ArbiterFailureDegradesToNotFound(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Alpha", "Alpha LLC", "Toys", "", "NY"},
		{"Beta", "Beta LLC", "Toys", "", "NY"},
	})
	llm := &fakeLLM{err: errors.New("api unavailable")}
	p := newOfflinePipeline(testConfig(), nil, llm)

	res, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Stats.NotFound)
}

func TestRun_LimitCapsProcessedRows(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Alpha", "Alpha LLC", "Toys", "", "NY"},
		{"Beta", "Beta LLC", "Toys", "", "NY"},
		{"Gamma", "Gamma LLC", "Toys", "", "NY"},
	})
	p := newOfflinePipeline(testConfig(), nil, nil)

	res, err := p.Run(context.Background(), Options{InputPath: input, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	out, err := recordio.Read(input)
	require.NoError(t, err)
	domainCol := out.ColumnIndex("domain from custom script")
	assert.NotEmpty(t, out.Cell(0, domainCol))
	assert.NotEmpty(t, out.Cell(1, domainCol))
	assert.Empty(t, out.Cell(2, domainCol))
}

func TestRun_NamelessRowsLeftUntouched(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Alpha", "Alpha LLC", "Toys", "", "NY"},
		{"", "", "Toys", "", "NY"},
	})
	p := newOfflinePipeline(testConfig(), nil, nil)

	res, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, int64(1), res.Stats.Skipped)

	out, err := recordio.Read(input)
	require.NoError(t, err)
	domainCol := out.ColumnIndex("domain from custom script")
	assert.NotEmpty(t, out.Cell(0, domainCol))
	assert.Empty(t, out.Cell(1, domainCol))
}

func TestRun_SeparateOutputPathLeavesInputIntact(t *testing.T) {
	t.Parallel()

	input := writeInput(t, "sellers.csv", [][]string{
		{"Comfier", "XYZ LLC", "Massage Chairs", "", "WA"},
	})
	output := filepath.Join(filepath.Dir(input), "enriched.csv")
	p := newOfflinePipeline(testConfig(), nil, nil)

	_, err := p.Run(context.Background(), Options{InputPath: input, OutputPath: output})
	require.NoError(t, err)

	in, err := recordio.Read(input)
	require.NoError(t, err)
	assert.Equal(t, -1, in.ColumnIndex("domain from custom script"))

	out, err := recordio.Read(output)
	require.NoError(t, err)
	assert.Equal(t, "comfier.com", out.Cell(0, out.ColumnIndex("domain from custom script")))
}

func TestRun_XLSXRecordStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sellers.xlsx")
	table := &recordio.Table{
		Header: inputHeader,
		Rows:   [][]string{{"Comfier", "XYZ LLC", "Massage Chairs", "", "WA"}},
	}
	require.NoError(t, recordio.WriteSnapshot(path, table))

	p := newOfflinePipeline(testConfig(), nil, nil)
	_, err := p.Run(context.Background(), Options{InputPath: path})
	require.NoError(t, err)

	out, err := recordio.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "comfier.com", out.Cell(0, out.ColumnIndex("domain from custom script")))
}

func TestRun_MissingRequiredColumn(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sellers.csv")
	table := &recordio.Table{
		Header: []string{"Seller", "Category"},
		Rows:   [][]string{{"Comfier", "Massage"}},
	}
	require.NoError(t, recordio.WriteSnapshot(path, table))

	p := newOfflinePipeline(testConfig(), nil, nil)
	_, err := p.Run(context.Background(), Options{InputPath: path})
	require.Error(t, err)

	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Business Name", missing.Column)
}

func TestRun_MissingInputFile(t *testing.T) {
	t.Parallel()

	p := newOfflinePipeline(testConfig(), nil, nil)
	_, err := p.Run(context.Background(), Options{InputPath: filepath.Join(t.TempDir(), "absent.csv")})
	require.Error(t, err)
}

func TestRun_JournalsLifecycle(t *testing.T) {
	t.Parallel()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	input := writeInput(t, "sellers.csv", [][]string{
		{"Comfier", "XYZ LLC", "Massage Chairs", "", "WA"},
	})
	p := newOfflinePipeline(testConfig(), st, nil)

	res, err := p.Run(context.Background(), Options{InputPath: input})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"stub"}, run.Backends)
	assert.Equal(t, 5, run.BatchSize)
	require.NotNil(t, run.Stats)
	assert.Equal(t, int64(1), run.Stats.Found)
	require.NotNil(t, run.FinishedAt)
}
