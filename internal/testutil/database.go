// Package testutil provides shared fixtures for tests that cross package
// boundaries: a migrated in-memory database and on-disk CSV trees.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
	"github.com/Veraticus/spice-ingest/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Vendors        []model.Vendor
	SkipMigrations bool
}

// SetupTestDB creates a new migrated in-memory database seeded with vendors.
// It is closed automatically when the test ends.
func SetupTestDB(t *testing.T, vendors ...model.Vendor) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Vendors: vendors})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for i := range opts.Vendors {
		if err := store.SaveVendor(ctx, &opts.Vendors[i]); err != nil {
			t.Fatalf("failed to seed vendor %q: %v", opts.Vendors[i].Name, err)
		}
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// MustRecords returns every stored record or fails the test.
func (db *TestDB) MustRecords() []model.Record {
	db.t.Helper()
	records, err := db.Storage.GetRecords(context.Background(), service.RecordFilter{})
	if err != nil {
		db.t.Fatalf("failed to load records: %v", err)
	}
	return records
}
