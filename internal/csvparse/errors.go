package csvparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// Parse errors.
var (
	ErrRowShape       = errors.New("row width does not match column count")
	ErrMalformedRow   = errors.New("malformed csv row")
	ErrHeaderMismatch = errors.New("header does not match configured columns")
)

// Error kinds reported by this package. Coercion failures keep the kind of
// the wrapped coercion error.
const (
	RowShapeKind       = "row_shape_error"
	MalformedRowKind   = "malformed_row"
	HeaderMismatchKind = "header_mismatch"
)

// RowShapeError reports a row with the wrong number of fields. The row is
// dropped; the file continues.
type RowShapeError struct {
	Line int
	Got  int
	Want int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("line %d: %s: got %d fields, want %d", e.Line, ErrRowShape, e.Got, e.Want)
}

// Kind returns RowShapeKind.
func (e *RowShapeError) Kind() string { return RowShapeKind }

// Is matches ErrRowShape.
func (e *RowShapeError) Is(target error) bool { return target == ErrRowShape }

// RowError reports a row that could not be turned into a record, either
// because a cell failed coercion or because the CSV itself was malformed.
type RowError struct {
	Err    error
	Column string
	Raw    string
	Line   int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Kind returns the kind of the underlying failure.
func (e *RowError) Kind() string {
	if errors.Is(e.Err, ErrMalformedRow) {
		return MalformedRowKind
	}
	return model.ErrorKind(e.Err)
}

// HeaderError reports a header row that does not match the configured
// column headers. It is a file-level error.
type HeaderError struct {
	Got  []string
	Want []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: got [%s], want [%s]", ErrHeaderMismatch, strings.Join(e.Got, ", "), strings.Join(e.Want, ", "))
}

// Kind returns HeaderMismatchKind.
func (e *HeaderError) Kind() string { return HeaderMismatchKind }

// Is matches ErrHeaderMismatch.
func (e *HeaderError) Is(target error) bool { return target == ErrHeaderMismatch }
