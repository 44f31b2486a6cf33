// Package service defines the interfaces between the ingestion core and its
// collaborators.
package service

import (
	"context"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// SuggestionRequest carries one special column value to a Suggester.
type SuggestionRequest struct {
	// Record is the row as coerced so far. Suggesters must treat it as
	// read-only.
	Record   *model.Record
	FormatID string
	Column   string
	Value    string
}

// Suggester refines values of special columns, typically categories. It
// returns ok=false to decline. Implementations must honor ctx; a call that
// outlives its deadline is treated as declined.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestionRequest) (value string, ok bool, err error)
}

// Sink receives ingestion output. The pipeline calls a Sink from a single
// goroutine, so implementations need no locking of their own.
type Sink interface {
	// Emit receives one record, row error, or file error.
	Emit(ctx context.Context, event model.Event) error
	// Flush is called after every file's events have been emitted.
	Flush(ctx context.Context) error
}

// VendorLookup finds the learned category for a merchant title.
type VendorLookup interface {
	GetVendor(ctx context.Context, name string) (*model.Vendor, error)
}

// Storage is the persistence layer behind the SQLite sink.
type Storage interface {
	VendorLookup

	SaveRecords(ctx context.Context, runID string, records []model.Record) (inserted int, err error)
	SaveIngestErrors(ctx context.Context, runID string, events []model.Event) error
	SaveVendor(ctx context.Context, vendor *model.Vendor) error
	GetAllVendors(ctx context.Context) ([]model.Vendor, error)
	GetRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)

	StartRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RecordFilter narrows GetRecords.
type RecordFilter struct {
	FormatID string
	Limit    int
}
