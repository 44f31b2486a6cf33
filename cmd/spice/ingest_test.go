package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ingest/internal/config"
	"github.com/Veraticus/spice-ingest/internal/discover"
	"github.com/Veraticus/spice-ingest/internal/export"
	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/registry"
	spicetest "github.com/Veraticus/spice-ingest/internal/testutil"
)

const testConfig = `
file_formats:
  - id: bank_a
    path_rule: ["!DIRS!", "statement.csv"]
    csv:
      first_row_is_header: true
      columns:
        - {name: title, type: string}
        - {name: date, type: date, format: "YYYY-MM-DD"}
        - {name: charge, type: numeric, format: "0.00"}
        - {name: category, type: string, special: true}
suggestions:
  rules:
    - {pattern: coffee, category: Dining}
`

var testFiles = map[string]string{
	"acct/2024/statement.csv": "Desc,Date,Amount,Category\n" +
		"Coffee Shop,2024-03-01,4.50,\n" +
		"Grocer,2024-03-02,20.00,\n" +
		"Bad,2024-13-01,1.00,\n",
	"photos/cat.jpg": "not a csv",
}

func testSettings(t *testing.T, doc string) (*config.Settings, *registry.Registry) {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	settings, err := config.Load(v)
	require.NoError(t, err)
	reg, err := buildRegistry(settings)
	require.NoError(t, err)
	return settings, reg
}

func newTestJob(t *testing.T, db *spicetest.TestDB) *ingestJob {
	t.Helper()
	settings, reg := testSettings(t, testConfig)
	fsys := os.DirFS(spicetest.WriteTree(t, testFiles))

	paths, err := discover.Expand(context.Background(), fsys, []string{"."}, reg)
	require.NoError(t, err)

	return &ingestJob{
		settings: settings,
		registry: reg,
		fsys:     fsys,
		store:    db.Storage,
		paths:    paths,
	}
}

func TestIngestJob_EndToEnd(t *testing.T) {
	db := spicetest.SetupTestDB(t, model.Vendor{Name: "grocer", Category: "Groceries"})
	job := newTestJob(t, db)

	var jsonl bytes.Buffer
	job.jsonl = &jsonl
	job.xlsxPath = filepath.Join(t.TempDir(), "out.xlsx")
	reg := prometheus.NewRegistry()
	job.metrics = reg
	var progressed []string
	job.progress = func(path string, _ bool) { progressed = append(progressed, path) }

	result, err := job.execute(context.Background())
	require.NoError(t, err)

	report := result.report
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 2, report.Records)
	require.Len(t, report.SkippedFiles, 1)
	assert.Equal(t, "photos/cat.jpg", report.SkippedFiles[0].Path)
	assert.Equal(t, "no_matching_format", report.SkippedFiles[0].Reason)
	require.Len(t, report.DroppedRows, 1)
	assert.Equal(t, 4, report.DroppedRows[0].Line)
	assert.Equal(t, []string{"acct/2024/statement.csv", "photos/cat.jpg"}, progressed)

	run := result.run
	require.NotNil(t, run)
	assert.True(t, run.Done())
	assert.Equal(t, 1, run.Files)
	assert.Equal(t, 2, run.Records)
	assert.Equal(t, 0, run.Duplicates)
	assert.Equal(t, 1, run.SkippedFiles)
	assert.Equal(t, 1, run.DroppedRows)

	records := db.MustRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "Coffee Shop", records[0].Title)
	assert.Equal(t, "Dining", records[0].Category, "rule suggestion")
	assert.Equal(t, "Grocer", records[1].Title)
	assert.Equal(t, "Groceries", records[1].Category, "vendor suggestion")

	learned, err := db.Storage.GetVendor(context.Background(), "coffee shop")
	require.NoError(t, err)
	assert.Equal(t, "Dining", learned.Category)
	assert.Equal(t, model.SourceLearned, learned.Source)

	var lines []export.Line
	scanner := bufio.NewScanner(&jsonl)
	for scanner.Scan() {
		var l export.Line
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "record", lines[0].Type)
	assert.Equal(t, "row_error", lines[2].Type)
	assert.Equal(t, "date_parse_error", lines[2].Kind)
	assert.Equal(t, "file_error", lines[3].Type)

	assert.FileExists(t, job.xlsxPath)

	count, err := testutil.GatherAndCount(reg, "spice_ingest_records_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestJob_SecondRunCountsDuplicates(t *testing.T) {
	db := spicetest.SetupTestDB(t)
	job := newTestJob(t, db)

	_, err := job.execute(context.Background())
	require.NoError(t, err)

	result, err := job.execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.report.Records, "the pipeline still parses both rows")
	assert.Equal(t, 0, result.run.Records)
	assert.Equal(t, 2, result.run.Duplicates)
	assert.Len(t, db.MustRecords(), 2)
}

func TestIngestJob_NoDatabase(t *testing.T) {
	settings, reg := testSettings(t, testConfig)
	fsys := os.DirFS(spicetest.WriteTree(t, testFiles))

	job := &ingestJob{
		settings: settings,
		registry: reg,
		fsys:     fsys,
		paths:    []string{"acct/2024/statement.csv"},
	}
	result, err := job.execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.run)
	assert.Equal(t, 2, result.report.Records)
}
