package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// StartRun creates a run row with a fresh ID.
func (s *SQLiteStorage) StartRun(ctx context.Context) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	run := &model.Run{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, started_at) VALUES (?, ?)`, run.ID, run.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stores run's counters and marks it finished.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.Done() {
		return fmt.Errorf("%w: %s", ErrRunFinished, run.ID)
	}

	finished := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, files = ?, records = ?, duplicates = ?,
			skipped_files = ?, dropped_rows = ?
		WHERE id = ? AND finished_at IS NULL
	`, finished, run.Files, run.Records, run.Duplicates, run.SkippedFiles, run.DroppedRows, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, sql.ErrNoRows)
	}

	run.FinishedAt = finished
	return nil
}

// GetRun loads a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var run model.Run
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, files, records, duplicates, skipped_files, dropped_rows
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.StartedAt, &finished, &run.Files, &run.Records, &run.Duplicates, &run.SkippedFiles, &run.DroppedRows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}
