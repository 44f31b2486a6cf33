// Package coerce converts raw CSV cell text into typed values.
//
// Numeric and date columns are driven by declarative format strings; see
// numeric.go and date.go for the syntax. Coercion never panics: every
// failure is returned as a *CoercionError carrying the column name and the
// raw text so callers can decide how to report it.
package coerce

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// Coercion failure kinds.
var (
	ErrDateParse     = errors.New("date does not match layout")
	ErrNumericParse  = errors.New("not a number")
	ErrBoolParse     = errors.New("not a boolean")
	ErrInvalidFormat = errors.New("invalid format string")
)

// Kind names a class of coercion failure.
type Kind string

// Coercion error kinds.
const (
	DateParseError    Kind = "date_parse_error"
	NumericParseError Kind = "numeric_parse_error"
	BoolParseError    Kind = "bool_parse_error"
)

// CoercionError reports a cell that could not be converted.
type CoercionError struct {
	Err    error
	Column string
	Raw    string
	Code   Kind
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %q: %s: %q: %v", e.Column, e.Code, e.Raw, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Kind returns the failure kind.
func (e *CoercionError) Kind() string { return string(e.Code) }

// Value is a coerced cell. Exactly one of Text, Number, Time is meaningful,
// according to Type. Empty is set when a date or numeric cell was blank.
type Value struct {
	Time   time.Time
	Number decimal.Decimal
	Text   string
	Type   model.ColumnType
	Empty  bool
}

// String renders the value in its canonical text form.
func (v Value) String() string {
	if v.Empty {
		return ""
	}
	switch v.Type {
	case model.Date:
		return v.Time.Format("2006-01-02")
	case model.Numeric:
		return v.Number.String()
	default:
		return v.Text
	}
}

// Coerce converts raw according to col's type and format.
func Coerce(col model.ColumnSpec, raw string) (Value, error) {
	switch col.Type {
	case model.Date:
		return coerceDate(col, raw)
	case model.Numeric:
		return coerceNumeric(col, raw)
	default:
		return Value{Type: model.String, Text: strings.TrimSpace(raw)}, nil
	}
}

func coerceDate(col model.ColumnSpec, raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{Type: model.Date, Empty: true}, nil
	}

	t, err := ParseDate(s, col.Format)
	if err != nil {
		return Value{}, &CoercionError{Code: DateParseError, Column: col.Name, Raw: raw, Err: err}
	}
	return Value{Type: model.Date, Time: t}, nil
}

func coerceNumeric(col model.ColumnSpec, raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{Type: model.Numeric, Empty: true}, nil
	}

	d, err := ParseNumber(s, col.Format)
	if err != nil {
		return Value{}, &CoercionError{Code: NumericParseError, Column: col.Name, Raw: raw, Err: err}
	}
	return Value{Type: model.Numeric, Number: d}, nil
}

// Bool reads a flag cell. Blank cells are false.
func Bool(column, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "y", "1", "x":
		return true, nil
	case "false", "f", "no", "n", "0", "":
		return false, nil
	default:
		return false, &CoercionError{Code: BoolParseError, Column: column, Raw: raw, Err: ErrBoolParse}
	}
}

// ValidateFormat checks that col's format string is usable for its type.
func ValidateFormat(col model.ColumnSpec) error {
	switch col.Type {
	case model.Date:
		_, err := compileDateLayout(col.Format)
		return err
	case model.Numeric:
		_, err := compileNumberFormat(col.Format)
		return err
	default:
		return nil
	}
}
