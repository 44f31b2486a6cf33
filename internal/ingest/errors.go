package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// File-level failure kinds that do not come from a wrapped error.
const (
	OpenErrorKind = "open_error"
	ReadErrorKind = "read_error"
	CanceledKind  = "canceled"
	TimeoutKind   = "timeout"
)

// Stage names where a file failed.
const (
	StageDispatch = "dispatch"
	StageResolve  = "resolve"
	StageOpen     = "open"
	StageParse    = "parse"
)

// FileError reports a file that was skipped. Other files are unaffected.
type FileError struct {
	Err      error
	Path     string
	FormatID string
	Stage    string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Kind returns the wrapped error's kind when it has one, otherwise a kind
// derived from the failure itself.
func (e *FileError) Kind() string {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return TimeoutKind
	case errors.Is(e.Err, context.Canceled):
		return CanceledKind
	}
	if kind := model.ErrorKind(e.Err); kind != "unknown" {
		return kind
	}
	if e.Stage == StageOpen {
		return OpenErrorKind
	}
	return ReadErrorKind
}
