package model

import "time"

// Run is the bookkeeping row for one ingest invocation.
type Run struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	ID           string
	Files        int
	Records      int
	Duplicates   int
	SkippedFiles int
	DroppedRows  int
}

// Done reports whether the run has been finished.
func (r *Run) Done() bool {
	return !r.FinishedAt.IsZero()
}
