package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// Sheet names.
const (
	RecordsSheet = "Records"
	ErrorsSheet  = "Errors"
)

var (
	recordHeaders = []string{
		"date", "title", "charge", "category", "flag_for_review", "recurring",
		"handler", "special_metadata", "format_id", "source_path", "line",
	}
	errorHeaders = []string{"type", "kind", "path", "format_id", "line", "error"}
)

// XLSX collects events into a workbook with a records sheet and an errors
// sheet. Nothing is written to disk until Save.
type XLSX struct {
	f         *excelize.File
	path      string
	recordRow int
	errorRow  int
}

// NewXLSX creates a workbook sink that saves to path.
func NewXLSX(path string) (*XLSX, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), RecordsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ErrorsSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	x := &XLSX{f: f, path: path, recordRow: 1, errorRow: 1}
	if err := x.writeRow(RecordsSheet, &x.recordRow, toAny(recordHeaders)); err != nil {
		return nil, err
	}
	if err := x.writeRow(ErrorsSheet, &x.errorRow, toAny(errorHeaders)); err != nil {
		return nil, err
	}
	return x, nil
}

// Emit implements service.Sink.
func (x *XLSX) Emit(_ context.Context, e model.Event) error {
	if e.Kind == model.EventRecord {
		r := e.Record
		// Charges are written as their exact decimal text; a float cell
		// would round large or long amounts.
		return x.writeRow(RecordsSheet, &x.recordRow, []any{
			formatDate(r.Date), r.Title, r.Charge.String(), r.Category,
			r.FlagForReview, r.Recurring, r.Handler, r.SpecialMetadata,
			r.FormatID, r.SourcePath, r.Line,
		})
	}

	l := NewLine(e)
	return x.writeRow(ErrorsSheet, &x.errorRow, []any{l.Type, l.Kind, l.Path, l.FormatID, l.Line, l.Error})
}

// Flush implements service.Sink. Rows are held in memory until Save.
func (x *XLSX) Flush(_ context.Context) error {
	return nil
}

// Save writes the workbook, creating parent directories as needed.
func (x *XLSX) Save() error {
	if err := os.MkdirAll(filepath.Dir(x.path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := x.f.SaveAs(x.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return x.f.Close()
}

func (x *XLSX) writeRow(sheet string, row *int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, *row)
	if err != nil {
		return err
	}
	if err := x.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, *row, err)
	}
	*row++
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
