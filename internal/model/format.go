// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ingest/internal/pathmatch"
)

// ColumnType is the declared type of a CSV column.
type ColumnType int

// Column types.
const (
	String ColumnType = iota
	Date
	Numeric
)

func (c ColumnType) String() string {
	switch c {
	case Date:
		return "date"
	case Numeric:
		return "numeric"
	case String:
		return "string"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(c))
	}
}

// ParseColumnType converts a configured type name into a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date":
		return Date, nil
	case "numeric", "number":
		return Numeric, nil
	case "string", "text", "":
		return String, nil
	default:
		return String, fmt.Errorf("unknown column type %q", s)
	}
}

// ColumnSpec describes one positional CSV column.
type ColumnSpec struct {
	Name    string
	Format  string // date layout or numeric pattern
	Header  string // expected header text, checked only when validation is on
	Type    ColumnType
	Special bool // eligible for tagging suggestions
}

// FormatSpec describes one recognizable file type: how to find it and how to
// read it.
type FormatSpec struct {
	ID      string
	Handler string // default handler for records without a handler column
	Rule    pathmatch.Rule
	Columns []ColumnSpec

	SkipRows        int
	Delimiter       rune
	HasHeaderRow    bool
	ValidateHeader  bool
	FlagUnsuggested bool
}

// Comma returns the field delimiter, defaulting to ','.
func (f *FormatSpec) Comma() rune {
	if f.Delimiter == 0 {
		return ','
	}
	return f.Delimiter
}

// Column returns the column with the given name.
func (f *FormatSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}
