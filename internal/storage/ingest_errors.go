package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// IngestError is a stored file or row error.
type IngestError struct {
	Level    string
	Kind     string
	Path     string
	FormatID string
	Message  string
	Line     int
}

// SaveIngestErrors stores file and row error events for a run.
func (s *SQLiteStorage) SaveIngestErrors(ctx context.Context, runID string, events []model.Event) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if err := validateErrorEvents(events); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ingest_errors (run_id, level, kind, path, format_id, line, message)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx, runID, e.Kind.String(), model.ErrorKind(e.Err), e.Path, e.FormatID, e.Line, e.Err.Error()); err != nil {
				return fmt.Errorf("failed to save ingest error: %w", err)
			}
		}
		return nil
	})
}

// GetIngestErrors returns the errors recorded for a run in insertion order.
func (s *SQLiteStorage) GetIngestErrors(ctx context.Context, runID string) ([]IngestError, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, kind, path, format_id, line, message
		FROM ingest_errors WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IngestError
	for rows.Next() {
		var ie IngestError
		if err := rows.Scan(&ie.Level, &ie.Kind, &ie.Path, &ie.FormatID, &ie.Line, &ie.Message); err != nil {
			return nil, fmt.Errorf("failed to scan ingest error: %w", err)
		}
		out = append(out, ie)
	}
	return out, rows.Err()
}
