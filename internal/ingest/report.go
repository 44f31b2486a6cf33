package ingest

import (
	"time"
)

// FileFailure is one skipped file.
type FileFailure struct {
	Err    error
	Path   string
	Reason string
}

// RowFailure is one dropped row.
type RowFailure struct {
	Err    error
	Path   string
	Reason string
	Line   int
}

// Report summarizes a run so callers can reconcile what was and was not
// ingested.
type Report struct {
	SkippedFiles []FileFailure
	DroppedRows  []RowFailure
	Files        int
	Records      int
	Duration     time.Duration
}

// SkippedByReason counts skipped files per error kind.
func (r *Report) SkippedByReason() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.SkippedFiles {
		counts[f.Reason]++
	}
	return counts
}

// DroppedByReason counts dropped rows per error kind.
func (r *Report) DroppedByReason() map[string]int {
	counts := make(map[string]int)
	for _, row := range r.DroppedRows {
		counts[row.Reason]++
	}
	return counts
}

// Clean reports whether nothing was skipped or dropped.
func (r *Report) Clean() bool {
	return len(r.SkippedFiles) == 0 && len(r.DroppedRows) == 0
}
