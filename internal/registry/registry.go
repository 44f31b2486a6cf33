// Package registry holds the immutable set of configured file formats and
// decides which one applies to a given path.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ingest/internal/coerce"
	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/pathmatch"
)

// Registry is a validated, read-only set of FormatSpecs. It is safe for
// concurrent use without locking because nothing mutates it after New.
type Registry struct {
	formats []model.FormatSpec
}

// New validates specs and returns a registry. Every problem found is
// reported; a registry is never built from a partially valid set.
func New(specs []model.FormatSpec) (*Registry, error) {
	if err := Validate(specs); err != nil {
		return nil, err
	}

	formats := make([]model.FormatSpec, len(specs))
	copy(formats, specs)
	for i := range formats {
		formats[i].Columns = append([]model.ColumnSpec(nil), specs[i].Columns...)
	}

	slog.Debug("Built format registry", "formats", len(formats))
	return &Registry{formats: formats}, nil
}

// Validate checks specs for configuration errors and joins all of them.
func Validate(specs []model.FormatSpec) error {
	var errs []error
	seen := make(map[string]bool, len(specs))

	for i := range specs {
		spec := &specs[i]
		if spec.ID == "" || seen[spec.ID] {
			errs = append(errs, &ConfigurationError{
				Code:     DuplicateFormatID,
				FormatID: spec.ID,
				Detail:   fmt.Sprintf("format at index %d needs a unique, non-empty id", i),
			})
		}
		seen[spec.ID] = true
		errs = append(errs, validateRule(spec)...)
		errs = append(errs, validateColumns(spec)...)
	}

	return errors.Join(errs...)
}

func validateRule(spec *model.FormatSpec) []error {
	var errs []error
	if spec.Rule.Name.Value == "" {
		errs = append(errs, &ConfigurationError{
			Code: InvalidPathToken, FormatID: spec.ID, Detail: "path rule has no filename matcher",
			Err: pathmatch.ErrInvalidPathToken,
		})
	}
	if spec.Rule.Name.Kind == pathmatch.NamePattern {
		if _, err := pathmatch.NewNameMatcher(pathmatch.NamePattern, spec.Rule.Name.Value); err != nil {
			errs = append(errs, &ConfigurationError{Code: InvalidPathToken, FormatID: spec.ID, Err: err})
		}
	}
	for i, tok := range spec.Rule.Dirs {
		bad := (tok.Kind == pathmatch.AnyDirN && tok.N < 0) ||
			(tok.Kind == pathmatch.Literal && tok.Text == "")
		if bad {
			errs = append(errs, &ConfigurationError{
				Code: InvalidPathToken, FormatID: spec.ID,
				Detail: fmt.Sprintf("token %d (%s)", i, tok.Kind), Err: pathmatch.ErrInvalidPathToken,
			})
		}
	}
	return errs
}

func validateColumns(spec *model.FormatSpec) []error {
	if len(spec.Columns) == 0 {
		return []error{&ConfigurationError{Code: EmptyColumns, FormatID: spec.ID}}
	}

	var errs []error
	names := make(map[string]bool, len(spec.Columns))
	for _, col := range spec.Columns {
		if names[col.Name] {
			errs = append(errs, &ConfigurationError{Code: DuplicateColumnName, FormatID: spec.ID, Column: col.Name})
		}
		names[col.Name] = true

		if col.Type == model.Date || col.Type == model.Numeric {
			if col.Format == "" {
				errs = append(errs, &ConfigurationError{
					Code: MissingFormatString, FormatID: spec.ID, Column: col.Name,
					Detail: col.Type.String() + " columns need a format",
				})
			} else if err := coerce.ValidateFormat(col); err != nil {
				errs = append(errs, &ConfigurationError{Code: InvalidFormatString, FormatID: spec.ID, Column: col.Name, Err: err})
			}
		}

		if want, canonical := model.FieldType(col.Name); canonical && want != col.Type {
			errs = append(errs, &ConfigurationError{
				Code: FieldTypeMismatch, FormatID: spec.ID, Column: col.Name,
				Detail: fmt.Sprintf("field %s must be %s, not %s", col.Name, want, col.Type),
			})
		}
	}
	return errs
}

// Resolve returns the single format whose rule matches path. Every rule is
// evaluated so that overlapping rules are reported instead of silently
// resolved by configuration order.
func (r *Registry) Resolve(path string) (*model.FormatSpec, error) {
	segments := pathmatch.Split(path)

	var matched []int
	for i := range r.formats {
		if pathmatch.Match(r.formats[i].Rule, segments) == pathmatch.Succeed {
			matched = append(matched, i)
		}
	}

	switch len(matched) {
	case 0:
		return nil, &ClassificationError{Code: NoMatchingFormat, Path: path}
	case 1:
		return &r.formats[matched[0]], nil
	default:
		ids := make([]string, len(matched))
		for i, idx := range matched {
			ids[i] = r.formats[idx].ID
		}
		return nil, &ClassificationError{Code: AmbiguousFormat, Path: path, Candidates: ids}
	}
}

// Prune reports whether files under dir could still match any format. It
// returns the most permissive outcome across all rules: Succeed if some
// rule's directory tokens match dir exactly, Undetermined if some rule needs
// deeper directories, Fail if no rule can match anything below dir.
func (r *Registry) Prune(dir string) pathmatch.Outcome {
	segments := pathmatch.Split(dir)
	best := pathmatch.Fail
	for i := range r.formats {
		switch pathmatch.MatchPartial(r.formats[i].Rule.Dirs, segments) {
		case pathmatch.Succeed:
			return pathmatch.Succeed
		case pathmatch.Undetermined:
			best = pathmatch.Undetermined
		}
	}
	return best
}

// Formats returns the configured formats in configuration order.
func (r *Registry) Formats() []model.FormatSpec {
	out := make([]model.FormatSpec, len(r.formats))
	copy(out, r.formats)
	return out
}

// Len returns the number of configured formats.
func (r *Registry) Len() int { return len(r.formats) }
