// Package storage provides the data persistence layer for spice.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidVendor = errors.New("invalid vendor")
	ErrInvalidEvent  = errors.New("invalid ingest event")
	ErrRunFinished   = errors.New("run already finished")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecords validates a slice of records. An empty slice is valid.
func validateRecords(records []model.Record) error {
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

func validateRecord(rec *model.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.FormatID == "" {
		return fmt.Errorf("%w: missing format id", ErrInvalidRecord)
	}
	return nil
}

// validateVendor validates a vendor.
func validateVendor(vendor *model.Vendor) error {
	if vendor == nil {
		return fmt.Errorf("%w: vendor", ErrNilParameter)
	}
	if strings.TrimSpace(vendor.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidVendor)
	}
	if strings.TrimSpace(vendor.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidVendor)
	}
	switch vendor.Source {
	case "", model.SourceLearned, model.SourceManual:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidVendor, vendor.Source)
	}
	return nil
}

// validateErrorEvents ensures every event is an error notification.
func validateErrorEvents(events []model.Event) error {
	for i, e := range events {
		if e.Kind == model.EventRecord || e.Err == nil {
			return fmt.Errorf("%w: event at index %d is not an error", ErrInvalidEvent, i)
		}
	}
	return nil
}
