package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// SaveRecords inserts records, skipping any whose hash is already stored,
// and learns vendor categories from them. It returns how many rows were new.
// Identical rows of one file are numbered first so they are all kept; every
// record of a file must therefore be passed in the same call.
func (s *SQLiteStorage) SaveRecords(ctx context.Context, runID string, records []model.Record) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	model.NumberOccurrences(records)

	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		n, err := saveRecordsTx(ctx, tx, runID, records)
		if err != nil {
			return err
		}
		inserted = n
		_, err = s.learnVendorsTx(ctx, tx, records)
		return err
	})
	return inserted, err
}

func saveRecordsTx(ctx context.Context, tx *sql.Tx, runID string, records []model.Record) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records (
			hash, run_id, format_id, source_path, line, date, title, charge,
			category, flag_for_review, recurring, handler, special_metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i := range records {
		rec := &records[i]
		result, err := stmt.ExecContext(ctx,
			rec.Hash(), runID, rec.FormatID, rec.SourcePath, rec.Line, rec.Date, rec.Title, rec.Charge,
			rec.Category, rec.FlagForReview, rec.Recurring, rec.Handler, rec.SpecialMetadata)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert record from %s line %d: %w", rec.SourcePath, rec.Line, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// GetRecords returns stored records ordered by date, then insertion order.
func (s *SQLiteStorage) GetRecords(ctx context.Context, filter service.RecordFilter) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT format_id, source_path, line, date, title, charge,
		       category, flag_for_review, recurring, handler, special_metadata
		FROM records`
	var args []any
	if filter.FormatID != "" {
		query += " WHERE format_id = ?"
		args = append(args, filter.FormatID)
	}
	query += " ORDER BY date, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(
			&rec.FormatID, &rec.SourcePath, &rec.Line, &rec.Date, &rec.Title, &rec.Charge,
			&rec.Category, &rec.FlagForReview, &rec.Recurring, &rec.Handler, &rec.SpecialMetadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
