package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Classification sentinels, matched with errors.Is.
var (
	ErrNoMatchingFormat = errors.New("no matching file format")
	ErrAmbiguousFormat  = errors.New("ambiguous file format")
	ErrInvalidConfig    = errors.New("invalid file format configuration")
)

// ClassificationKind distinguishes classification failures.
type ClassificationKind string

// Classification failure kinds.
const (
	NoMatchingFormat ClassificationKind = "no_matching_format"
	AmbiguousFormat  ClassificationKind = "ambiguous_format"
)

// ClassificationError reports a path that did not resolve to exactly one
// format. It is file-level: only that file is skipped.
type ClassificationError struct {
	Path       string
	Code       ClassificationKind
	Candidates []string // IDs of every matching format, for AmbiguousFormat
}

func (e *ClassificationError) Error() string {
	if e.Code == AmbiguousFormat {
		return fmt.Sprintf("%s: %s matches formats %s", ErrAmbiguousFormat, e.Path, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrNoMatchingFormat, e.Path)
}

// Kind returns the failure kind.
func (e *ClassificationError) Kind() string { return string(e.Code) }

// Is makes errors.Is work against the package sentinels.
func (e *ClassificationError) Is(target error) bool {
	switch target {
	case ErrNoMatchingFormat:
		return e.Code == NoMatchingFormat
	case ErrAmbiguousFormat:
		return e.Code == AmbiguousFormat
	}
	return false
}

// ConfigKind distinguishes configuration problems.
type ConfigKind string

// Configuration error kinds.
const (
	DuplicateFormatID   ConfigKind = "duplicate_format_id"
	DuplicateColumnName ConfigKind = "duplicate_column_name"
	MissingFormatString ConfigKind = "missing_format_string"
	InvalidFormatString ConfigKind = "invalid_format_string"
	InvalidPathToken    ConfigKind = "invalid_path_token"
	EmptyColumns        ConfigKind = "empty_columns"
	FieldTypeMismatch   ConfigKind = "field_type_mismatch"
	InvalidOption       ConfigKind = "invalid_option"
)

// ConfigurationError reports an unusable FormatSpec. Any configuration error
// is fatal: the registry refuses to build.
type ConfigurationError struct {
	Err      error
	FormatID string
	Column   string
	Detail   string
	Code     ConfigKind
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "format %q", e.FormatID)
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Code)
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Kind returns the problem kind.
func (e *ConfigurationError) Kind() string { return string(e.Code) }

// Is makes every ConfigurationError match ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfig }
