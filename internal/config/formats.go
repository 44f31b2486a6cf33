package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/pathmatch"
	"github.com/Veraticus/spice-ingest/internal/registry"
)

// FormatConfig is one entry of the file_formats list.
type FormatConfig struct {
	Name            *NameConfig `mapstructure:"name"`
	ID              string      `mapstructure:"id"`
	Handler         string      `mapstructure:"handler"`
	PathRule        []string    `mapstructure:"path_rule"`
	CSV             CSVConfig   `mapstructure:"csv"`
	FlagUnsuggested bool        `mapstructure:"flag_unsuggested"`
}

// NameConfig selects a filename matcher other than the last path_rule
// segment.
type NameConfig struct {
	Literal string `mapstructure:"literal"`
	Prefix  string `mapstructure:"prefix"`
	Pattern string `mapstructure:"pattern"`
}

// CSVConfig describes how a matched file is read.
type CSVConfig struct {
	Delimiter        string         `mapstructure:"delimiter"`
	Columns          []ColumnConfig `mapstructure:"columns"`
	SkipRows         int            `mapstructure:"skip_rows"`
	FirstRowIsHeader bool           `mapstructure:"first_row_is_header"`
	ValidateHeader   bool           `mapstructure:"validate_header"`
}

// ColumnConfig is one positional column.
type ColumnConfig struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	Format  string `mapstructure:"format"`
	Header  string `mapstructure:"header"`
	Special bool   `mapstructure:"special"`
}

// BuildFormats converts configured formats into FormatSpecs. Problems that
// only the config layer can see (path rule syntax, column types,
// delimiters) are reported as registry.ConfigurationErrors, all at once.
// Semantic validation is left to registry.New.
func BuildFormats(configs []FormatConfig) ([]model.FormatSpec, error) {
	specs := make([]model.FormatSpec, 0, len(configs))
	var errs []error

	for _, fc := range configs {
		spec := model.FormatSpec{
			ID:              fc.ID,
			Handler:         fc.Handler,
			SkipRows:        fc.CSV.SkipRows,
			HasHeaderRow:    fc.CSV.FirstRowIsHeader,
			ValidateHeader:  fc.CSV.ValidateHeader,
			FlagUnsuggested: fc.FlagUnsuggested,
		}

		var name *pathmatch.NameSpec
		if fc.Name != nil {
			name = &pathmatch.NameSpec{Literal: fc.Name.Literal, Prefix: fc.Name.Prefix, Pattern: fc.Name.Pattern}
		}
		rule, err := pathmatch.ParseRule(fc.PathRule, name)
		if err != nil {
			errs = append(errs, &registry.ConfigurationError{Code: registry.InvalidPathToken, FormatID: fc.ID, Err: err})
		}
		spec.Rule = rule

		delim, err := parseDelimiter(fc.CSV.Delimiter)
		if err != nil {
			errs = append(errs, &registry.ConfigurationError{Code: registry.InvalidOption, FormatID: fc.ID, Err: err})
		}
		spec.Delimiter = delim

		if fc.CSV.SkipRows < 0 {
			errs = append(errs, &registry.ConfigurationError{Code: registry.InvalidOption, FormatID: fc.ID, Detail: "skip_rows cannot be negative"})
		}

		for _, cc := range fc.CSV.Columns {
			typ, err := model.ParseColumnType(cc.Type)
			if err != nil {
				errs = append(errs, &registry.ConfigurationError{Code: registry.InvalidOption, FormatID: fc.ID, Column: cc.Name, Err: err})
			}
			spec.Columns = append(spec.Columns, model.ColumnSpec{
				Name:    cc.Name,
				Type:    typ,
				Format:  cc.Format,
				Header:  cc.Header,
				Special: cc.Special,
			})
		}

		specs = append(specs, spec)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return specs, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter %q must be a single character other than a quote or newline", s)
	}
	return r, nil
}
