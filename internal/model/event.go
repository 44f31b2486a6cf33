package model

import "errors"

// EventKind discriminates pipeline output.
type EventKind int

// Event kinds.
const (
	EventRecord EventKind = iota
	EventRowError
	EventFileError
)

func (k EventKind) String() string {
	switch k {
	case EventRowError:
		return "row_error"
	case EventFileError:
		return "file_error"
	default:
		return "record"
	}
}

// Event is one item of ingestion output: a record, a dropped row, or a
// skipped file.
type Event struct {
	Err      error
	Path     string
	FormatID string
	Record   Record
	Line     int
	Kind     EventKind
}

// Kinded is implemented by errors that carry a stable machine-readable kind.
type Kinded interface {
	Kind() string
}

// ErrorKind returns the kind of err if it (or anything it wraps) is Kinded,
// and "unknown" otherwise.
func ErrorKind(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "unknown"
}
