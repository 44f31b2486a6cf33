package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/spice-ingest/internal/common"
	"github.com/Veraticus/spice-ingest/internal/model"
)

// flushRetry bounds how long a flush waits out a locked database.
var flushRetry = common.RetryOptions{
	MaxAttempts:  5,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     time.Second,
}

// Sink persists pipeline output under a single run. Events are buffered
// until Flush, which the pipeline calls once per file, so each file is
// written in one transaction.
type Sink struct {
	store   *SQLiteStorage
	run     *model.Run
	records []model.Record
	errs    []model.Event
}

// NewSink starts a run and returns a sink that records into it.
func NewSink(ctx context.Context, store *SQLiteStorage) (*Sink, error) {
	run, err := store.StartRun(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("Started ingest run", "run_id", run.ID)
	return &Sink{store: store, run: run}, nil
}

// Run returns the run being recorded. Counters reflect flushed files only.
func (s *Sink) Run() *model.Run {
	return s.run
}

// Emit implements service.Sink.
func (s *Sink) Emit(_ context.Context, event model.Event) error {
	switch event.Kind {
	case model.EventRecord:
		s.records = append(s.records, event.Record)
	case model.EventRowError, model.EventFileError:
		s.errs = append(s.errs, event)
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidEvent, event.Kind)
	}
	return nil
}

// Flush implements service.Sink.
func (s *Sink) Flush(ctx context.Context) error {
	var inserted int
	err := common.WithRetry(ctx, func() error {
		n, err := s.store.SaveRecords(ctx, s.run.ID, s.records)
		inserted = n
		return retryable(err)
	}, flushRetry)
	if err != nil {
		return err
	}
	err = common.WithRetry(ctx, func() error {
		return retryable(s.store.SaveIngestErrors(ctx, s.run.ID, s.errs))
	}, flushRetry)
	if err != nil {
		return err
	}

	fileFailed := false
	for _, e := range s.errs {
		if e.Kind == model.EventFileError {
			fileFailed = true
			s.run.SkippedFiles++
		} else {
			s.run.DroppedRows++
		}
	}
	if !fileFailed {
		s.run.Files++
	}
	s.run.Records += inserted
	s.run.Duplicates += len(s.records) - inserted

	s.records = s.records[:0]
	s.errs = s.errs[:0]
	return nil
}

// Finish flushes anything still buffered and closes the run.
func (s *Sink) Finish(ctx context.Context) error {
	if len(s.records) > 0 || len(s.errs) > 0 {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	if err := s.store.FinishRun(ctx, s.run); err != nil {
		return err
	}
	slog.Info("Finished ingest run",
		"run_id", s.run.ID,
		"files", s.run.Files,
		"records", s.run.Records,
		"duplicates", s.run.Duplicates)
	return nil
}

// retryable marks SQLite lock contention as worth retrying and everything
// else as permanent.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", common.ErrBusy, err)
	}
	return common.Permanent(err)
}
