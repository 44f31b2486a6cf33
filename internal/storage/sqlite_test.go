package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test records.
func createTestRecords(count int) []model.Record {
	records := make([]model.Record, count)
	baseDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		records[i] = model.Record{
			FormatID:   "bank_a",
			SourcePath: "cards/2024/jan.csv",
			Line:       i + 2,
			Date:       baseDate.AddDate(0, 0, i),
			Title:      "Merchant #" + string(rune('A'+i)),
			Charge:     decimal.NewFromInt(int64(i+1) * 10),
		}
	}
	return records
}

func TestSQLiteStorage_SaveRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	records := createTestRecords(3)
	inserted, err := store.SaveRecords(ctx, "run-1", records)
	if err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	if inserted != 3 {
		t.Errorf("SaveRecords() inserted = %d, want 3", inserted)
	}

	// The same rows again are duplicates.
	inserted, err = store.SaveRecords(ctx, "run-2", records)
	if err != nil {
		t.Fatalf("SaveRecords() second call error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("SaveRecords() duplicates inserted = %d, want 0", inserted)
	}

	got, err := store.GetRecords(ctx, service.RecordFilter{})
	if err != nil {
		t.Fatalf("GetRecords() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetRecords() returned %d records, want 3", len(got))
	}
	if !got[1].Charge.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Charge = %s, want 20", got[1].Charge)
	}
	if !got[0].Date.Equal(records[0].Date) {
		t.Errorf("Date = %v, want %v", got[0].Date, records[0].Date)
	}
	if got[2].Line != 4 || got[2].SourcePath != "cards/2024/jan.csv" {
		t.Errorf("provenance not preserved: %+v", got[2])
	}
}

func TestSQLiteStorage_SaveRecordsKeepsRepeatedRowsInOneFile(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Two identical coffees on the same day, on consecutive lines.
	first := createTestRecords(1)[0]
	second := first
	second.Line = first.Line + 1
	records := []model.Record{first, second}

	inserted, err := store.SaveRecords(ctx, "run-1", records)
	if err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("SaveRecords() inserted = %d, want 2", inserted)
	}

	// Re-importing the same file still dedups both.
	again := []model.Record{first, second}
	inserted, err = store.SaveRecords(ctx, "run-2", again)
	if err != nil {
		t.Fatalf("SaveRecords() second call error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("SaveRecords() re-import inserted = %d, want 0", inserted)
	}

	got, err := store.GetRecords(ctx, service.RecordFilter{})
	if err != nil {
		t.Fatalf("GetRecords() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetRecords() returned %d records, want 2", len(got))
	}
}

func TestSQLiteStorage_SaveRecordsRoundTripsFields(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rec := model.Record{
		FormatID:        "brokerage",
		Date:            time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Title:           "Dividend",
		Charge:          decimal.RequireFromString("-12.34"),
		Category:        "Income",
		Handler:         "joint",
		SpecialMetadata: `{"account":"9921"}`,
		FlagForReview:   true,
		Recurring:       true,
	}
	if _, err := store.SaveRecords(ctx, "run-1", []model.Record{rec}); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}

	got, err := store.GetRecords(ctx, service.RecordFilter{FormatID: "brokerage", Limit: 1})
	if err != nil {
		t.Fatalf("GetRecords() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetRecords() returned %d records, want 1", len(got))
	}
	g := got[0]
	if g.Title != rec.Title || g.Category != rec.Category || g.Handler != rec.Handler ||
		g.SpecialMetadata != rec.SpecialMetadata || !g.FlagForReview || !g.Recurring {
		t.Errorf("round trip mismatch: got %+v", g)
	}
	if !g.Charge.Equal(rec.Charge) {
		t.Errorf("Charge = %s, want %s", g.Charge, rec.Charge)
	}

	none, err := store.GetRecords(ctx, service.RecordFilter{FormatID: "bank_a"})
	if err != nil {
		t.Fatalf("GetRecords() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("filter by format returned %d records, want 0", len(none))
	}
}

func TestSQLiteStorage_SaveRecordsValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.SaveRecords(context.Background(), "run-1", []model.Record{{Title: "no format"}})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("SaveRecords() error = %v, want ErrInvalidRecord", err)
	}

	inserted, err := store.SaveRecords(context.Background(), "run-1", nil)
	if err != nil || inserted != 0 {
		t.Errorf("SaveRecords(nil) = %d, %v", inserted, err)
	}
}

func TestSQLiteStorage_Runs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if run.ID == "" || run.Done() {
		t.Fatalf("StartRun() returned %+v", run)
	}

	run.Files = 2
	run.Records = 10
	run.Duplicates = 1
	run.SkippedFiles = 1
	run.DroppedRows = 3
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	if !run.Done() {
		t.Error("run should be done after FinishRun")
	}
	if err := store.FinishRun(ctx, run); !errors.Is(err, ErrRunFinished) {
		t.Errorf("second FinishRun() error = %v, want ErrRunFinished", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.Done() || got.Files != 2 || got.Records != 10 || got.Duplicates != 1 || got.SkippedFiles != 1 || got.DroppedRows != 3 {
		t.Errorf("GetRun() = %+v", got)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}

type kindedErr struct{ kind string }

func (e kindedErr) Error() string { return "bad " + e.kind }
func (e kindedErr) Kind() string  { return e.kind }

func TestSQLiteStorage_IngestErrors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	events := []model.Event{
		{Kind: model.EventFileError, Path: "photos/cat.jpg", Err: kindedErr{"no_matching_format"}},
		{Kind: model.EventRowError, Path: "cards/a.csv", FormatID: "bank_a", Line: 7, Err: kindedErr{"coercion_failed"}},
	}
	if err := store.SaveIngestErrors(ctx, run.ID, events); err != nil {
		t.Fatalf("SaveIngestErrors() error = %v", err)
	}

	got, err := store.GetIngestErrors(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetIngestErrors() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetIngestErrors() returned %d, want 2", len(got))
	}
	if got[0].Level != "file_error" || got[0].Kind != "no_matching_format" || got[0].Path != "photos/cat.jpg" {
		t.Errorf("file error stored as %+v", got[0])
	}
	if got[1].Level != "row_error" || got[1].Line != 7 || got[1].FormatID != "bank_a" || got[1].Message != "bad coercion_failed" {
		t.Errorf("row error stored as %+v", got[1])
	}

	err = store.SaveIngestErrors(ctx, run.ID, []model.Event{{Kind: model.EventRecord}})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("SaveIngestErrors(record) error = %v, want ErrInvalidEvent", err)
	}
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	// Test initial migration
	store1, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err2 := store1.Migrate(ctx); err2 != nil {
		t.Fatalf("Initial migration failed: %v", err2)
	}
	_ = store1.Close()

	// Test idempotency - running migrations again should not error
	store2, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store2.Close() }()

	if err := store2.Migrate(ctx); err != nil {
		t.Fatalf("Repeated migration failed: %v", err)
	}

	version, err := store2.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Verify database is functional after migrations
	if _, err := store2.SaveRecords(ctx, "run-1", createTestRecords(1)); err != nil {
		t.Errorf("Database not functional after migration: %v", err)
	}

	var indexCount int
	err = store2.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_vendors_source'
	`).Scan(&indexCount)
	if err != nil {
		t.Fatalf("Failed to check index: %v", err)
	}
	if indexCount != 1 {
		t.Error("Source column index was not created")
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if store.Path() != ":memory:" {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestSQLiteStorage_ConcurrentAccess(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.WarmVendorCache(ctx); err != nil {
		t.Fatalf("Failed to warm vendor cache: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	// Concurrent writers
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rec := createTestRecords(5)[id]
			if _, err := store.SaveRecords(ctx, "run-1", []model.Record{rec}); err != nil {
				errs <- err
			}
		}(i)
	}

	// Concurrent readers
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetRecords(ctx, service.RecordFilter{}); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent operation error: %v", err)
	}

	got, err := store.GetRecords(ctx, service.RecordFilter{})
	if err != nil {
		t.Fatalf("GetRecords() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("GetRecords() returned %d, want 5", len(got))
	}
}
